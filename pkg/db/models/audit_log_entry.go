package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freightline/settlement-engine/pkg/enums"
)

// AuditLogEntry records one settlement status transition. Append-only, never
// mutated or deleted.
type AuditLogEntry struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MilestoneID uuid.UUID        `gorm:"column:milestone_id;type:uuid;not null;index"`
	Action      string           `gorm:"column:action;not null"`
	Reason      string           `gorm:"column:reason"`
	TriggeredBy enums.AuditActor `gorm:"column:triggered_by;type:audit_actor;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}
