package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/pkg/db"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

// ErrSettlementNotFound is returned when no milestone settlement matches.
var ErrSettlementNotFound = errors.New("milestone settlement not found")

// executableStatuses are the statuses a rail call may start from.
var executableStatuses = []enums.SettlementStatus{
	enums.SettlementStatusPending,
	enums.SettlementStatusDelayed,
}

// Repository manages persistence for milestone settlements. All transitions
// are conditional updates: the WHERE clause encodes the allowed source
// statuses so concurrent writers cannot move a row backwards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrGet(ctx context.Context, settlement *models.MilestoneSettlement) (*models.MilestoneSettlement, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.MilestoneSettlement, error)
	FindByIntentEvent(ctx context.Context, intentID uuid.UUID, eventType enums.ShipmentEventType) (*models.MilestoneSettlement, error)
	ListByIntentID(ctx context.Context, intentID uuid.UUID) ([]models.MilestoneSettlement, error)
	ListByIntentIDs(ctx context.Context, intentIDs []uuid.UUID) ([]models.MilestoneSettlement, error)
	MarkApproved(ctx context.Context, id uuid.UUID, providerReference string) error
	MarkDelayed(ctx context.Context, id uuid.UUID, until time.Time) error
	MarkManualReview(ctx context.Context, id uuid.UUID) error
	MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, reason string) error
	CancelWhereCancellable(ctx context.Context, intentID uuid.UUID) (int64, error)
	CountOpenByIntentID(ctx context.Context, intentID uuid.UUID) (int64, error)
	ClaimDelayedDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.MilestoneSettlement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrGet inserts the settlement, deferring to the unique
// (payment_intent_id, event_type) index for idempotency. On a duplicate it
// returns the existing row untouched and created=false.
func (r *repository) CreateOrGet(ctx context.Context, settlement *models.MilestoneSettlement) (*models.MilestoneSettlement, bool, error) {
	err := r.db.WithContext(ctx).Create(settlement).Error
	if err == nil {
		return settlement, true, nil
	}
	if !db.IsUniqueViolation(err, models.UniqueIntentEventConstraint) {
		return nil, false, err
	}
	existing, findErr := r.FindByIntentEvent(ctx, settlement.PaymentIntentID, settlement.EventType)
	if findErr != nil {
		return nil, false, findErr
	}
	return existing, false, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MilestoneSettlement, error) {
	var settlement models.MilestoneSettlement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) FindByIntentEvent(ctx context.Context, intentID uuid.UUID, eventType enums.ShipmentEventType) (*models.MilestoneSettlement, error) {
	var settlement models.MilestoneSettlement
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ? AND event_type = ?", intentID, eventType).
		First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) ListByIntentID(ctx context.Context, intentID uuid.UUID) ([]models.MilestoneSettlement, error) {
	var settlements []models.MilestoneSettlement
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		Order("occurred_at ASC, created_at ASC").
		Find(&settlements).Error
	return settlements, err
}

func (r *repository) ListByIntentIDs(ctx context.Context, intentIDs []uuid.UUID) ([]models.MilestoneSettlement, error) {
	if len(intentIDs) == 0 {
		return nil, nil
	}
	var settlements []models.MilestoneSettlement
	err := r.db.WithContext(ctx).
		Where("payment_intent_id IN ?", intentIDs).
		Order("occurred_at ASC, created_at ASC").
		Find(&settlements).Error
	return settlements, err
}

func (r *repository) MarkApproved(ctx context.Context, id uuid.UUID, providerReference string) error {
	return r.transition(ctx, id, executableStatuses, map[string]any{
		"status":             enums.SettlementStatusApproved,
		"provider_reference": providerReference,
		"delayed_until":      nil,
		"failure_reason":     nil,
	})
}

func (r *repository) MarkDelayed(ctx context.Context, id uuid.UUID, until time.Time) error {
	return r.transition(ctx, id, []enums.SettlementStatus{enums.SettlementStatusPending}, map[string]any{
		"status":        enums.SettlementStatusDelayed,
		"delayed_until": until,
	})
}

func (r *repository) MarkManualReview(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, []enums.SettlementStatus{enums.SettlementStatusPending}, map[string]any{
		"status":          enums.SettlementStatusManualReview,
		"review_required": true,
	})
}

func (r *repository) MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, []enums.SettlementStatus{enums.SettlementStatusApproved}, map[string]any{
		"status":     enums.SettlementStatusSettled,
		"settled_at": at,
	})
}

// RecordFailure stores the rail failure without changing status, so the row
// stays eligible for a retry.
func (r *repository) RecordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.MilestoneSettlement{}).
		Where("id = ?", id).
		Update("failure_reason", reason)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

// CancelWhereCancellable cancels every non-terminal, non-approved settlement
// of the intent and reports how many rows moved. Approved rows represent
// funds already released and are deliberately left alone.
func (r *repository) CancelWhereCancellable(ctx context.Context, intentID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MilestoneSettlement{}).
		Where("payment_intent_id = ? AND status IN ?", intentID, []enums.SettlementStatus{
			enums.SettlementStatusPending,
			enums.SettlementStatusDelayed,
			enums.SettlementStatusManualReview,
		}).
		Update("status", enums.SettlementStatusCancelled)
	return result.RowsAffected, result.Error
}

// CountOpenByIntentID counts settlements that have not reached a terminal
// status. Zero open rows with at least one settled row means the intent can
// be rolled up to settled.
func (r *repository) CountOpenByIntentID(ctx context.Context, intentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MilestoneSettlement{}).
		Where("payment_intent_id = ? AND status NOT IN ?", intentID, []enums.SettlementStatus{
			enums.SettlementStatusSettled,
			enums.SettlementStatusCancelled,
		}).
		Count(&count).Error
	return count, err
}

// ClaimDelayedDue claims matured delayed settlements by pushing delayed_until
// forward by the lease. The claim is a single conditional UPDATE per row:
// when two sweepers race, one update lands first and the loser's
// delayed_until predicate no longer holds, so each row is handed to exactly
// one instance. A crashed claimant leaves the row delayed and it matures
// again when the lease expires.
func (r *repository) ClaimDelayedDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.MilestoneSettlement, error) {
	var candidates []models.MilestoneSettlement
	err := r.db.WithContext(ctx).
		Where("status = ? AND delayed_until <= ?", enums.SettlementStatusDelayed, now).
		Order("delayed_until ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	leaseUntil := now.Add(lease)
	claimed := make([]models.MilestoneSettlement, 0, len(candidates))
	for _, candidate := range candidates {
		result := r.db.WithContext(ctx).
			Model(&models.MilestoneSettlement{}).
			Where("id = ? AND status = ? AND delayed_until <= ?",
				candidate.ID, enums.SettlementStatusDelayed, now).
			Update("delayed_until", leaseUntil)
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		candidate.DelayedUntil = &leaseUntil
		claimed = append(claimed, candidate)
	}
	return claimed, nil
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, from []enums.SettlementStatus, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.MilestoneSettlement{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement transition rejected").
			WithDetails(map[string]any{"settlement_id": id.String()})
	}
	return nil
}
