package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/enums"
)

// PaymentIntent holds the total freight payment released in milestone
// fractions. Amount and risk score are immutable once the row exists; status
// moves only when milestones reach terminal states.
type PaymentIntent struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShipmentID     uuid.UUID          `gorm:"column:shipment_id;type:uuid;not null;index"`
	FreightTokenID *uuid.UUID         `gorm:"column:freight_token_id;type:uuid;index"`
	Amount         decimal.Decimal    `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency       enums.Currency     `gorm:"column:currency;type:currency;not null;default:'USD'"`
	RiskScore      float64            `gorm:"column:risk_score;not null"`
	RiskTier       enums.RiskTier     `gorm:"column:risk_tier;type:risk_tier;not null"`
	Status         enums.IntentStatus `gorm:"column:status;type:intent_status;not null;default:'active'"`
	CancelledAt    *time.Time         `gorm:"column:cancelled_at"`
	SettledAt      *time.Time         `gorm:"column:settled_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
