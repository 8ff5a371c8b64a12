package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

// Item is one milestone of a payment schedule before persistence.
type Item struct {
	EventType  enums.ShipmentEventType
	Percentage decimal.Decimal
	Sequence   int
}

// sumTolerance bounds the acceptable drift of a schedule's percentage sum
// from exactly 1.0.
var sumTolerance = decimal.New(1, -6)

// Percentages of the total amount released per milestone, by tier. Order
// follows the canonical shipment event ordering.
var tierPercentages = map[enums.RiskTier][]string{
	enums.RiskTierLow:    {"0.2", "0.7", "0.1"},
	enums.RiskTierMedium: {"0.1", "0.7", "0.2"},
	enums.RiskTierHigh:   {"0", "0.8", "0.2"},
}

// Build produces the ordered milestone schedule for a tier. Deterministic: no
// randomness, no I/O, byte-identical output per tier. A percentage table that
// does not sum to 1.0 within tolerance is a construction error and yields no
// schedule at all.
func Build(tier enums.RiskTier) ([]Item, error) {
	percentages, ok := tierPercentages[tier]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown risk tier").
			WithDetails(map[string]any{"risk_tier": string(tier)})
	}

	events := enums.ShipmentEventTypes()
	items := make([]Item, 0, len(events))
	sum := decimal.Zero
	for i, event := range events {
		pct := decimal.RequireFromString(percentages[i])
		items = append(items, Item{
			EventType:  event,
			Percentage: pct,
			Sequence:   event.Sequence(),
		})
		sum = sum.Add(pct)
	}

	if sum.Sub(decimal.New(1, 0)).Abs().GreaterThan(sumTolerance) {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "schedule percentages do not sum to 1.0").
			WithDetails(map[string]any{"risk_tier": string(tier), "sum": sum.String()})
	}

	return items, nil
}
