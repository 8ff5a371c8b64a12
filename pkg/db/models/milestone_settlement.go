package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/enums"
)

// MilestoneSettlement is the unit of truth for one
// (payment_intent_id, event_type) pair. The composite unique index is the
// idempotency contract: duplicate event delivery can never create a second
// row. Rows are never deleted and never leave a terminal status.
type MilestoneSettlement struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentIntentID   uuid.UUID               `gorm:"column:payment_intent_id;type:uuid;not null;uniqueIndex:idx_milestone_settlements_intent_event"`
	EventType         enums.ShipmentEventType `gorm:"column:event_type;type:shipment_event_type;not null;uniqueIndex:idx_milestone_settlements_intent_event"`
	Amount            decimal.Decimal         `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency          enums.Currency          `gorm:"column:currency;type:currency;not null"`
	Status            enums.SettlementStatus  `gorm:"column:status;type:settlement_status;not null;default:'pending'"`
	DelayedUntil      *time.Time              `gorm:"column:delayed_until"`
	ProviderReference *string                 `gorm:"column:provider_reference"`
	FailureReason     *string                 `gorm:"column:failure_reason"`
	ReviewRequired    bool                    `gorm:"column:review_required;not null;default:false"`
	OccurredAt        time.Time               `gorm:"column:occurred_at;not null"`
	SettledAt         *time.Time              `gorm:"column:settled_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// UniqueIntentEventConstraint is the Postgres constraint backing idempotent
// settlement creation.
const UniqueIntentEventConstraint = "idx_milestone_settlements_intent_event"
