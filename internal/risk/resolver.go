package risk

import (
	"time"

	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/enums"
)

// DelayedHold is the fixed hold applied when a milestone resolves to the
// delayed strategy. It is a property of the strategy, not a tunable.
const DelayedHold = 24 * time.Hour

// Resolution carries the release decision for one milestone.
type Resolution struct {
	Strategy enums.ReleaseStrategy
	Hold     time.Duration
}

// Resolve maps the raw risk score and event type onto a release strategy. It
// is a second, independent read of the score: it never consults the cached
// tier and never calls Classify.
func Resolve(score float64, eventType enums.ShipmentEventType) (Resolution, error) {
	if err := validateScore(score); err != nil {
		return Resolution{}, err
	}
	if !eventType.IsValid() {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipment event type").
			WithDetails(map[string]any{"event_type": string(eventType)})
	}

	switch {
	case score < mediumBoundary:
		return Resolution{Strategy: enums.ReleaseImmediate}, nil

	case score < highBoundary:
		if eventType == enums.EventPodConfirmed {
			return Resolution{Strategy: enums.ReleaseImmediate}, nil
		}
		return Resolution{Strategy: enums.ReleaseDelayed, Hold: DelayedHold}, nil

	default:
		if eventType == enums.EventPickupConfirmed {
			return Resolution{Strategy: enums.ReleasePending}, nil
		}
		return Resolution{Strategy: enums.ReleaseManualReview}, nil
	}
}
