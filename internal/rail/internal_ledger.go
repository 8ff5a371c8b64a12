package rail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

type settlementReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.MilestoneSettlement, error)
}

// InternalLedgerRail is the default, synchronous, deterministic rail. It
// books the settlement on the in-house ledger and never leaves the process.
type InternalLedgerRail struct {
	settlements settlementReader
	now         func() time.Time
}

// NewInternalLedgerRail builds the default rail.
func NewInternalLedgerRail(settlements settlementReader) (*InternalLedgerRail, error) {
	if settlements == nil {
		return nil, fmt.Errorf("settlement reader required")
	}
	return &InternalLedgerRail{settlements: settlements, now: time.Now}, nil
}

// Provider identifies this rail in the registry.
func (r *InternalLedgerRail) Provider() enums.RailProvider {
	return enums.RailInternalLedger
}

// ProcessSettlement validates the milestone and books it. The reference is
// deterministic given the clock: <PROVIDER>:<timestamp>:<milestone_id>.
func (r *InternalLedgerRail) ProcessSettlement(ctx context.Context, req Request) (*Result, error) {
	if req.MilestoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "milestone id is required")
	}
	if req.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if !req.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency").
			WithDetails(map[string]any{"currency": string(req.Currency)})
	}

	milestone, err := r.settlements.FindByID(ctx, req.MilestoneID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRail, err, "load milestone for settlement")
	}
	switch milestone.Status {
	case enums.SettlementStatusPending, enums.SettlementStatusDelayed:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is not executable").
			WithDetails(map[string]any{"status": string(milestone.Status)})
	}

	processedAt := r.now().UTC()
	return &Result{
		Success:     true,
		Provider:    r.Provider(),
		Reference:   fmt.Sprintf("%s:%d:%s", r.Provider(), processedAt.Unix(), req.MilestoneID),
		ProcessedAt: processedAt,
	}, nil
}
