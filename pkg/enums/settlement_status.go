package enums

import "fmt"

// SettlementStatus tracks the lifecycle of a milestone settlement.
type SettlementStatus string

const (
	SettlementStatusPending      SettlementStatus = "pending"
	SettlementStatusDelayed      SettlementStatus = "delayed"
	SettlementStatusManualReview SettlementStatus = "manual_review"
	SettlementStatusApproved     SettlementStatus = "approved"
	SettlementStatusSettled      SettlementStatus = "settled"
	SettlementStatusCancelled    SettlementStatus = "cancelled"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementStatusPending,
	SettlementStatusDelayed,
	SettlementStatusManualReview,
	SettlementStatusApproved,
	SettlementStatusSettled,
	SettlementStatusCancelled,
}

// String implements fmt.Stringer.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementStatus.
func (s SettlementStatus) IsValid() bool {
	for _, candidate := range validSettlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a settlement in this status may never change again.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusSettled || s == SettlementStatusCancelled
}

// IsCancellable reports whether an intent cancellation may cancel a settlement
// in this status. Approved settlements are excluded: compensation for an
// approved-but-unsettled milestone is an unresolved product decision.
func (s SettlementStatus) IsCancellable() bool {
	switch s {
	case SettlementStatusPending, SettlementStatusDelayed, SettlementStatusManualReview:
		return true
	default:
		return false
	}
}

// ParseSettlementStatus converts raw input into a SettlementStatus.
func ParseSettlementStatus(value string) (SettlementStatus, error) {
	for _, candidate := range validSettlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement status %q", value)
}
