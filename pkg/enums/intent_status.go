package enums

import "fmt"

// IntentStatus tracks the lifecycle of a payment intent. Transitions are
// driven entirely by its milestone settlements reaching terminal states.
type IntentStatus string

const (
	IntentStatusActive    IntentStatus = "active"
	IntentStatusSettled   IntentStatus = "settled"
	IntentStatusCancelled IntentStatus = "cancelled"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusActive,
	IntentStatusSettled,
	IntentStatusCancelled,
}

// String implements fmt.Stringer.
func (s IntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IntentStatus.
func (s IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
