package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/pkg/db/models"
)

// Repository manages persistence for audit log entries. Entries are
// append-only; there is deliberately no update or delete surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByMilestoneID(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByMilestoneID(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	if err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
