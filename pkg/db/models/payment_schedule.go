package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/enums"
)

// PaymentSchedule is the immutable milestone plan for one payment intent,
// derived from the intent's risk tier at creation time.
type PaymentSchedule struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentIntentID uuid.UUID      `gorm:"column:payment_intent_id;type:uuid;not null;unique"`
	RiskTier        enums.RiskTier `gorm:"column:risk_tier;type:risk_tier;not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`

	Items []ScheduleItem `gorm:"foreignKey:ScheduleID"`
}

// ScheduleItem is one (event_type, percentage, sequence) tuple of a schedule.
// Percentages across a schedule sum to 1.0; sequence follows the canonical
// shipment event ordering.
type ScheduleItem struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ScheduleID uuid.UUID               `gorm:"column:schedule_id;type:uuid;not null;uniqueIndex:idx_schedule_items_schedule_event"`
	EventType  enums.ShipmentEventType `gorm:"column:event_type;type:shipment_event_type;not null;uniqueIndex:idx_schedule_items_schedule_event"`
	Percentage decimal.Decimal         `gorm:"column:percentage;type:numeric(7,6);not null"`
	Sequence   int                     `gorm:"column:sequence;not null"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}
