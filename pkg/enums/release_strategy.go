package enums

import "fmt"

// ReleaseStrategy decides when a milestone amount may be settled.
type ReleaseStrategy string

const (
	ReleaseImmediate    ReleaseStrategy = "immediate"
	ReleaseDelayed      ReleaseStrategy = "delayed"
	ReleaseManualReview ReleaseStrategy = "manual_review"
	ReleasePending      ReleaseStrategy = "pending"
)

var validReleaseStrategies = []ReleaseStrategy{
	ReleaseImmediate,
	ReleaseDelayed,
	ReleaseManualReview,
	ReleasePending,
}

// String implements fmt.Stringer.
func (s ReleaseStrategy) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReleaseStrategy.
func (s ReleaseStrategy) IsValid() bool {
	for _, candidate := range validReleaseStrategies {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReleaseStrategy converts raw input into a ReleaseStrategy.
func ParseReleaseStrategy(value string) (ReleaseStrategy, error) {
	for _, candidate := range validReleaseStrategies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release strategy %q", value)
}
