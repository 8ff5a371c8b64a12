package rail

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/enums"
)

// Request describes one approved settlement to execute against a provider.
type Request struct {
	MilestoneID uuid.UUID
	Amount      decimal.Decimal
	Currency    enums.Currency
	Recipient   string
}

// Result is the transient outcome of a rail call. It is never persisted as
// its own entity; the processor folds it into the milestone row.
type Result struct {
	Success     bool
	Provider    enums.RailProvider
	Reference   string
	ProcessedAt time.Time
}

// Rail executes an approved settlement against a provider. Implementations
// must be transaction-safe from the caller's perspective: a failed call leaves
// the milestone untouched.
type Rail interface {
	Provider() enums.RailProvider
	ProcessSettlement(ctx context.Context, req Request) (*Result, error)
}
