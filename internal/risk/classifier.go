package risk

import (
	"fmt"

	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/enums"
)

// Canonical tier boundaries, lower-bound inclusive.
const (
	mediumBoundary = 0.33
	highBoundary   = 0.67
)

// Classify maps a continuous risk score onto a discrete tier. Scores outside
// [0, 1] fail closed rather than being clamped.
func Classify(score float64) (enums.RiskTier, error) {
	if err := validateScore(score); err != nil {
		return "", err
	}
	switch {
	case score < mediumBoundary:
		return enums.RiskTierLow, nil
	case score < highBoundary:
		return enums.RiskTierMedium, nil
	default:
		return enums.RiskTierHigh, nil
	}
}

func validateScore(score float64) error {
	if score != score || score < 0 || score > 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid risk score").
			WithDetails(map[string]any{"risk_score": fmt.Sprintf("%v", score), "allowed_range": "[0.0, 1.0]"})
	}
	return nil
}
