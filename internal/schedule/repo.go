package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
)

// ErrScheduleNotFound is returned when an intent has no schedule. Callers
// treat it as a recoverable no-op, not a failure.
var ErrScheduleNotFound = errors.New("payment schedule not found")

// ErrScheduleItemNotFound is returned when a schedule carries no item for the
// requested event type.
var ErrScheduleItemNotFound = errors.New("schedule item not found")

// Repository manages persistence for payment schedules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, schedule *models.PaymentSchedule) error
	FindByIntentID(ctx context.Context, intentID uuid.UUID) (*models.PaymentSchedule, error)
	FindItem(ctx context.Context, intentID uuid.UUID, eventType enums.ShipmentEventType) (*models.ScheduleItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a schedule repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, schedule *models.PaymentSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repository) FindByIntentID(ctx context.Context, intentID uuid.UUID) (*models.PaymentSchedule, error) {
	var schedule models.PaymentSchedule
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Where("payment_intent_id = ?", intentID).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) FindItem(ctx context.Context, intentID uuid.UUID, eventType enums.ShipmentEventType) (*models.ScheduleItem, error) {
	var item models.ScheduleItem
	err := r.db.WithContext(ctx).
		Joins("JOIN payment_schedules ON payment_schedules.id = schedule_items.schedule_id").
		Where("payment_schedules.payment_intent_id = ? AND schedule_items.event_type = ?", intentID, eventType).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleItemNotFound
		}
		return nil, err
	}
	return &item, nil
}
