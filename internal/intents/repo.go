package intents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

// ErrIntentNotFound is returned when no payment intent matches. It carries
// the NOT_FOUND code so callers outside this package can classify it.
var ErrIntentNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")

// Repository manages persistence for payment intents. Amount and risk score
// are written once at creation and never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByShipmentID(ctx context.Context, shipmentID uuid.UUID) ([]models.PaymentIntent, error)
	FindByFreightTokenID(ctx context.Context, tokenID uuid.UUID) ([]models.PaymentIntent, error)
	MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByShipmentID(ctx context.Context, shipmentID uuid.UUID) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("created_at ASC").
		Find(&intents).Error
	return intents, err
}

func (r *repository) FindByFreightTokenID(ctx context.Context, tokenID uuid.UUID) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("freight_token_id = ?", tokenID).
		Order("created_at ASC").
		Find(&intents).Error
	return intents, err
}

func (r *repository) MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"status":     enums.IntentStatusSettled,
		"settled_at": at,
	})
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"status":       enums.IntentStatusCancelled,
		"cancelled_at": at,
	})
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.IntentStatusActive).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "intent transition rejected").
			WithDetails(map[string]any{"payment_intent_id": id.String()})
	}
	return nil
}
