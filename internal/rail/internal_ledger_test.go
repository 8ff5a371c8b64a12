package rail

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

type fakeSettlementReader struct {
	rows map[uuid.UUID]*models.MilestoneSettlement
	err  error
}

func (f *fakeSettlementReader) FindByID(_ context.Context, id uuid.UUID) (*models.MilestoneSettlement, error) {
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone settlement not found")
	}
	return row, nil
}

func newLedgerRail(t *testing.T, reader *fakeSettlementReader) *InternalLedgerRail {
	t.Helper()
	r, err := NewInternalLedgerRail(reader)
	require.NoError(t, err)
	return r
}

func TestInternalLedgerRail_ProcessSettlement(t *testing.T) {
	milestoneID := uuid.New()
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	reader := &fakeSettlementReader{rows: map[uuid.UUID]*models.MilestoneSettlement{
		milestoneID: {ID: milestoneID, Status: enums.SettlementStatusPending},
	}}
	r := newLedgerRail(t, reader)
	r.now = func() time.Time { return fixed }

	res, err := r.ProcessSettlement(context.Background(), Request{
		MilestoneID: milestoneID,
		Amount:      decimal.NewFromFloat(700.00),
		Currency:    enums.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, enums.RailInternalLedger, res.Provider)
	assert.Equal(t, fmt.Sprintf("INTERNAL_LEDGER:%d:%s", fixed.Unix(), milestoneID), res.Reference)
	assert.Equal(t, fixed, res.ProcessedAt)
}

func TestInternalLedgerRail_ProcessSettlement_Delayed(t *testing.T) {
	milestoneID := uuid.New()
	reader := &fakeSettlementReader{rows: map[uuid.UUID]*models.MilestoneSettlement{
		milestoneID: {ID: milestoneID, Status: enums.SettlementStatusDelayed},
	}}
	r := newLedgerRail(t, reader)

	res, err := r.ProcessSettlement(context.Background(), Request{
		MilestoneID: milestoneID,
		Amount:      decimal.NewFromInt(100),
		Currency:    enums.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestInternalLedgerRail_ProcessSettlement_Rejections(t *testing.T) {
	settledID := uuid.New()
	reader := &fakeSettlementReader{rows: map[uuid.UUID]*models.MilestoneSettlement{
		settledID: {ID: settledID, Status: enums.SettlementStatusSettled},
	}}
	r := newLedgerRail(t, reader)

	tests := []struct {
		name string
		req  Request
		code pkgerrors.Code
	}{
		{
			name: "missing milestone id",
			req:  Request{Amount: decimal.NewFromInt(10), Currency: enums.CurrencyUSD},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "negative amount",
			req:  Request{MilestoneID: settledID, Amount: decimal.NewFromInt(-1), Currency: enums.CurrencyUSD},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "invalid currency",
			req:  Request{MilestoneID: settledID, Amount: decimal.NewFromInt(10), Currency: enums.Currency("JPY")},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "not executable status",
			req:  Request{MilestoneID: settledID, Amount: decimal.NewFromInt(10), Currency: enums.CurrencyUSD},
			code: pkgerrors.CodeStateConflict,
		},
		{
			name: "unknown milestone",
			req:  Request{MilestoneID: uuid.New(), Amount: decimal.NewFromInt(10), Currency: enums.CurrencyUSD},
			code: pkgerrors.CodeRail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.ProcessSettlement(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tt.code, typed.Code())
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reader := &fakeSettlementReader{rows: map[uuid.UUID]*models.MilestoneSettlement{}}
	ledger := newLedgerRail(t, reader)

	registry := NewRegistry(ledger)

	resolved, err := registry.Resolve(enums.RailInternalLedger)
	require.NoError(t, err)
	assert.Same(t, ledger, resolved)

	_, err = registry.Resolve(enums.RailProvider("CARRIER_PIGEON"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = registry.Resolve(enums.RailStripe)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
