package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePaymentIntent       OutboxAggregateType = "payment_intent"
	AggregateMilestoneSettlement OutboxAggregateType = "milestone_settlement"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePaymentIntent,
	AggregateMilestoneSettlement,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventIntentCreated      OutboxEventType = "payment_intent_created"
	EventIntentSettled      OutboxEventType = "payment_intent_settled"
	EventIntentCancelled    OutboxEventType = "payment_intent_cancelled"
	EventSettlementCreated  OutboxEventType = "settlement_created"
	EventSettlementApproved OutboxEventType = "settlement_approved"
	EventSettlementDelayed  OutboxEventType = "settlement_delayed"
	EventSettlementFlagged  OutboxEventType = "settlement_flagged_for_review"
	EventSettlementSettled  OutboxEventType = "settlement_settled"
	EventSettlementFailed   OutboxEventType = "settlement_rail_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventIntentCreated,
	EventIntentSettled,
	EventIntentCancelled,
	EventSettlementCreated,
	EventSettlementApproved,
	EventSettlementDelayed,
	EventSettlementFlagged,
	EventSettlementSettled,
	EventSettlementFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
