package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

type stubIntentReader struct {
	intents map[uuid.UUID]*models.PaymentIntent
}

func (s *stubIntentReader) FindByID(_ context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	intent, ok := s.intents[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return intent, nil
}

func (s *stubIntentReader) FindByShipmentID(_ context.Context, shipmentID uuid.UUID) ([]models.PaymentIntent, error) {
	var out []models.PaymentIntent
	for _, intent := range s.intents {
		if intent.ShipmentID == shipmentID {
			out = append(out, *intent)
		}
	}
	return out, nil
}

type stubSettlementReader struct {
	rows []models.MilestoneSettlement
}

func (s *stubSettlementReader) ListByIntentID(_ context.Context, intentID uuid.UUID) ([]models.MilestoneSettlement, error) {
	var out []models.MilestoneSettlement
	for _, row := range s.rows {
		if row.PaymentIntentID == intentID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubSettlementReader) ListByIntentIDs(ctx context.Context, intentIDs []uuid.UUID) ([]models.MilestoneSettlement, error) {
	var out []models.MilestoneSettlement
	for _, id := range intentIDs {
		rows, _ := s.ListByIntentID(ctx, id)
		out = append(out, rows...)
	}
	return out, nil
}

type stubTrailRepo struct {
	entries []models.AuditLogEntry
}

func (s *stubTrailRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubTrailRepo) Create(_ context.Context, entry *models.AuditLogEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubTrailRepo) ListByMilestoneID(_ context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error) {
	var out []models.AuditLogEntry
	for _, entry := range s.entries {
		if entry.MilestoneID == milestoneID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func row(intentID uuid.UUID, eventType enums.ShipmentEventType, amount string, status enums.SettlementStatus) models.MilestoneSettlement {
	return models.MilestoneSettlement{
		ID:              uuid.New(),
		PaymentIntentID: intentID,
		EventType:       eventType,
		Amount:          decimal.RequireFromString(amount),
		Currency:        enums.CurrencyUSD,
		Status:          status,
	}
}

func TestShipmentReport_SummaryReconciles(t *testing.T) {
	shipmentID := uuid.New()
	intent := &models.PaymentIntent{
		ID:         uuid.New(),
		ShipmentID: shipmentID,
		Amount:     decimal.NewFromInt(1000),
		RiskTier:   enums.RiskTierLow,
		Status:     enums.IntentStatusActive,
	}
	settlements := &stubSettlementReader{rows: []models.MilestoneSettlement{
		row(intent.ID, enums.EventPickupConfirmed, "200.00", enums.SettlementStatusApproved),
		row(intent.ID, enums.EventPodConfirmed, "700.00", enums.SettlementStatusSettled),
		row(intent.ID, enums.EventClaimWindowClosed, "100.00", enums.SettlementStatusDelayed),
	}}
	svc, err := NewService(&stubIntentReader{intents: map[uuid.UUID]*models.PaymentIntent{intent.ID: intent}}, settlements, &stubTrailRepo{})
	require.NoError(t, err)

	report, err := svc.ShipmentReport(context.Background(), shipmentID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.TotalMilestones)
	assert.Equal(t, 2, report.Summary.ApprovedCount)
	assert.Equal(t, 1, report.Summary.PendingCount)
	// approved total = approved + settled amounts, exactly
	assert.True(t, report.Summary.TotalApprovedAmount.Equal(decimal.RequireFromString("900.00")),
		"got %s", report.Summary.TotalApprovedAmount)
	assert.Len(t, report.Milestones, 3)
}

func TestShipmentReport_UnknownShipment404(t *testing.T) {
	svc, err := NewService(&stubIntentReader{intents: map[uuid.UUID]*models.PaymentIntent{}}, &stubSettlementReader{}, &stubTrailRepo{})
	require.NoError(t, err)

	_, err = svc.ShipmentReport(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestIntentReport_SplitsApprovedAndPending(t *testing.T) {
	intent := &models.PaymentIntent{
		ID:        uuid.New(),
		Amount:    decimal.NewFromInt(3000),
		RiskScore: 0.85,
		RiskTier:  enums.RiskTierHigh,
	}
	settlements := &stubSettlementReader{rows: []models.MilestoneSettlement{
		row(intent.ID, enums.EventPickupConfirmed, "0.00", enums.SettlementStatusPending),
		row(intent.ID, enums.EventPodConfirmed, "2400.00", enums.SettlementStatusManualReview),
		row(intent.ID, enums.EventClaimWindowClosed, "600.00", enums.SettlementStatusApproved),
	}}
	svc, err := NewService(&stubIntentReader{intents: map[uuid.UUID]*models.PaymentIntent{intent.ID: intent}}, settlements, &stubTrailRepo{})
	require.NoError(t, err)

	report, err := svc.IntentReport(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, report.PaymentIntentID)
	assert.Equal(t, 0.85, report.RiskScore)
	assert.Equal(t, enums.RiskTierHigh, report.RiskTier)
	assert.True(t, report.Summary.ApprovedAmount.Equal(decimal.RequireFromString("600.00")))
	assert.True(t, report.Summary.PendingAmount.Equal(decimal.RequireFromString("2400.00")))
}

func TestIntentReport_CancelledExcludedFromTotals(t *testing.T) {
	intent := &models.PaymentIntent{ID: uuid.New(), Amount: decimal.NewFromInt(1000)}
	settlements := &stubSettlementReader{rows: []models.MilestoneSettlement{
		row(intent.ID, enums.EventPickupConfirmed, "200.00", enums.SettlementStatusCancelled),
		row(intent.ID, enums.EventPodConfirmed, "700.00", enums.SettlementStatusApproved),
	}}
	svc, err := NewService(&stubIntentReader{intents: map[uuid.UUID]*models.PaymentIntent{intent.ID: intent}}, settlements, &stubTrailRepo{})
	require.NoError(t, err)

	report, err := svc.IntentReport(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.True(t, report.Summary.ApprovedAmount.Equal(decimal.RequireFromString("700.00")))
	assert.True(t, report.Summary.PendingAmount.IsZero())
}

func TestIntentReport_Unknown404(t *testing.T) {
	svc, err := NewService(&stubIntentReader{intents: map[uuid.UUID]*models.PaymentIntent{}}, &stubSettlementReader{}, &stubTrailRepo{})
	require.NoError(t, err)

	_, err = svc.IntentReport(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestTrail_ReturnsEntriesForMilestone(t *testing.T) {
	milestoneID := uuid.New()
	trail := &stubTrailRepo{entries: []models.AuditLogEntry{
		{MilestoneID: milestoneID, Action: "created", TriggeredBy: enums.AuditActorSystem},
		{MilestoneID: milestoneID, Action: "approved", TriggeredBy: enums.AuditActorSweeper},
		{MilestoneID: uuid.New(), Action: "created", TriggeredBy: enums.AuditActorSystem},
	}}
	svc, err := NewService(&stubIntentReader{intents: map[uuid.UUID]*models.PaymentIntent{}}, &stubSettlementReader{}, trail)
	require.NoError(t, err)

	entries, err := svc.Trail(context.Background(), milestoneID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, "approved", entries[1].Action)
}
