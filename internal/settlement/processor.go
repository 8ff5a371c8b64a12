package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/rail"
	"github.com/freightline/settlement-engine/internal/risk"
	"github.com/freightline/settlement-engine/internal/schedule"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/logger"
	"github.com/freightline/settlement-engine/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IntentStore is the slice of the intent repository the processor needs.
type IntentStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	MarkSettled(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ShipmentEvent is one delivered shipment milestone event, already resolved
// to a single payment intent.
type ShipmentEvent struct {
	IntentID   uuid.UUID
	EventType  enums.ShipmentEventType
	OccurredAt time.Time
}

// ProcessResult reports what one event did. Created=false with a non-empty
// Message is a no-op, which the webhook still acknowledges with 200.
type ProcessResult struct {
	MilestoneID uuid.UUID
	Created     bool
	Status      enums.SettlementStatus
	Strategy    enums.ReleaseStrategy
	Message     string
}

// ServiceParams wires the processor's dependencies.
type ServiceParams struct {
	Tx              txRunner
	Intents         IntentStore
	Schedules       schedule.Repository
	Settlements     Repository
	Audit           audit.Repository
	Outbox          outboxPublisher
	Rails           *rail.Registry
	DefaultProvider enums.RailProvider
	Logger          *logger.Logger
}

// Service runs the milestone settlement state machine.
type Service struct {
	tx          txRunner
	intents     IntentStore
	schedules   schedule.Repository
	settlements Repository
	audit       audit.Repository
	outbox      outboxPublisher
	rails       *rail.Registry
	provider    enums.RailProvider
	logg        *logger.Logger
	now         func() time.Time
}

// NewService validates the wiring and returns the settlement processor.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent store required")
	}
	if params.Schedules == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if params.Settlements == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Rails == nil {
		return nil, fmt.Errorf("rail registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	provider := params.DefaultProvider
	if provider == "" {
		provider = enums.RailInternalLedger
	}
	return &Service{
		tx:          params.Tx,
		intents:     params.Intents,
		schedules:   params.Schedules,
		settlements: params.Settlements,
		audit:       params.Audit,
		outbox:      params.Outbox,
		rails:       params.Rails,
		provider:    provider,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// ProcessShipmentEvent turns one shipment milestone event into at most one
// settlement. Re-delivery of the same (intent, event) pair is absorbed by the
// storage-level unique constraint and acknowledged as a no-op.
func (s *Service) ProcessShipmentEvent(ctx context.Context, event ShipmentEvent) (*ProcessResult, error) {
	if !event.EventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipment event type").
			WithDetails(map[string]any{"event_type": string(event.EventType)})
	}
	ctx = s.logg.WithIntentID(ctx, event.IntentID.String())
	ctx = s.logg.WithEventType(ctx, string(event.EventType))

	intent, err := s.intents.FindByID(ctx, event.IntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != enums.IntentStatusActive {
		s.logg.Info(ctx, "shipment event ignored, intent is not active")
		return &ProcessResult{Message: "payment intent is not active"}, nil
	}

	item, err := s.schedules.FindItem(ctx, intent.ID, event.EventType)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) || errors.Is(err, schedule.ErrScheduleItemNotFound) {
			s.logg.Warn(ctx, "no schedule item for event, nothing to settle")
			return &ProcessResult{Message: "no schedule item for event"}, nil
		}
		return nil, err
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}
	amount := intent.Amount.Mul(item.Percentage).Round(2)

	row := &models.MilestoneSettlement{
		PaymentIntentID: intent.ID,
		EventType:       event.EventType,
		Amount:          amount,
		Currency:        intent.Currency,
		Status:          enums.SettlementStatusPending,
		OccurredAt:      occurredAt,
	}

	var created bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, created, err = s.settlements.WithTx(tx).CreateOrGet(ctx, row)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		if err := s.appendAudit(ctx, tx, row.ID, "created", "settlement created for shipment event", enums.AuditActorSystem); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventSettlementCreated, row)
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithMilestoneID(ctx, row.ID.String())
	if !created {
		s.logg.Info(ctx, "duplicate shipment event absorbed")
		return &ProcessResult{
			MilestoneID: row.ID,
			Status:      row.Status,
			Message:     "settlement already exists for event",
		}, nil
	}

	resolution, err := risk.Resolve(intent.RiskScore, event.EventType)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{MilestoneID: row.ID, Created: true, Strategy: resolution.Strategy}
	switch resolution.Strategy {
	case enums.ReleaseImmediate:
		if err := s.executeImmediate(ctx, row, amount, intent.Currency); err != nil {
			result.Status = enums.SettlementStatusPending
			return result, err
		}
		result.Status = enums.SettlementStatusApproved

	case enums.ReleaseDelayed:
		until := s.now().UTC().Add(resolution.Hold)
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.settlements.WithTx(tx).MarkDelayed(ctx, row.ID, until); err != nil {
				return err
			}
			if err := s.appendAudit(ctx, tx, row.ID, "delayed", fmt.Sprintf("release held until %s", until.Format(time.RFC3339)), enums.AuditActorSystem); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventSettlementDelayed, row)
		})
		if err != nil {
			return nil, err
		}
		result.Status = enums.SettlementStatusDelayed

	case enums.ReleaseManualReview:
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.settlements.WithTx(tx).MarkManualReview(ctx, row.ID); err != nil {
				return err
			}
			if err := s.appendAudit(ctx, tx, row.ID, "flagged_for_review", "high risk release requires manual review", enums.AuditActorSystem); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventSettlementFlagged, row)
		})
		if err != nil {
			return nil, err
		}
		result.Status = enums.SettlementStatusManualReview

	case enums.ReleasePending:
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.appendAudit(ctx, tx, row.ID, "held", "high risk pickup held with no release scheduled", enums.AuditActorSystem)
		})
		if err != nil {
			return nil, err
		}
		result.Status = enums.SettlementStatusPending
	}

	s.logg.Info(ctx, "shipment event processed")
	return result, nil
}

// executeImmediate runs the rail synchronously. Failure leaves the row
// pending with the reason recorded; the caller gets a retryable error.
func (s *Service) executeImmediate(ctx context.Context, row *models.MilestoneSettlement, amount decimal.Decimal, currency enums.Currency) error {
	railImpl, err := s.rails.Resolve(s.provider)
	if err != nil {
		return err
	}
	railResult, railErr := railImpl.ProcessSettlement(ctx, rail.Request{
		MilestoneID: row.ID,
		Amount:      amount,
		Currency:    currency,
	})
	if railErr != nil || !railResult.Success {
		reason := "rail rejected settlement"
		if railErr != nil {
			reason = railErr.Error()
		}
		recordErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.settlements.WithTx(tx).RecordFailure(ctx, row.ID, reason); err != nil {
				return err
			}
			if err := s.appendAudit(ctx, tx, row.ID, "rail_failed", reason, enums.AuditActorSystem); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventSettlementFailed, row)
		})
		if recordErr != nil {
			s.logg.Error(ctx, "recording rail failure", recordErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeRail, railErr, "immediate settlement failed")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.settlements.WithTx(tx).MarkApproved(ctx, row.ID, railResult.Reference); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, tx, row.ID, "approved", fmt.Sprintf("released via %s", railResult.Provider), enums.AuditActorSystem); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventSettlementApproved, row)
	})
}

// ConfirmSettlement moves an approved settlement to settled once the rail
// confirms funds landed. When it was the last open milestone the intent is
// rolled up to settled as well.
func (s *Service) ConfirmSettlement(ctx context.Context, milestoneID uuid.UUID, actor enums.AuditActor) (*models.MilestoneSettlement, error) {
	row, err := s.settlements.FindByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, ErrSettlementNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone settlement not found")
		}
		return nil, err
	}
	if !actor.IsValid() {
		actor = enums.AuditActorSystem
	}
	ctx = s.logg.WithMilestoneID(ctx, row.ID.String())

	settledAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.settlements.WithTx(tx).MarkSettled(ctx, row.ID, settledAt); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, tx, row.ID, "settled", "settlement confirmed", actor); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventSettlementSettled, row)
	})
	if err != nil {
		return nil, err
	}

	if err := s.rollupIntent(ctx, row.PaymentIntentID, settledAt); err != nil {
		s.logg.Error(ctx, "intent settlement rollup", err)
	}

	row, err = s.settlements.FindByID(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "settlement confirmed")
	return row, nil
}

// rollupIntent flips the intent to settled once no open milestones remain.
func (s *Service) rollupIntent(ctx context.Context, intentID uuid.UUID, at time.Time) error {
	open, err := s.settlements.CountOpenByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}
	settlements, err := s.settlements.ListByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	anySettled := false
	for _, row := range settlements {
		if row.Status == enums.SettlementStatusSettled {
			anySettled = true
			break
		}
	}
	if !anySettled {
		return nil
	}
	return s.intents.MarkSettled(ctx, intentID, at)
}

func (s *Service) appendAudit(ctx context.Context, tx *gorm.DB, milestoneID uuid.UUID, action, reason string, actor enums.AuditActor) error {
	return s.audit.WithTx(tx).Create(ctx, &models.AuditLogEntry{
		MilestoneID: milestoneID,
		Action:      action,
		Reason:      reason,
		TriggeredBy: actor,
	})
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, row *models.MilestoneSettlement) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateMilestoneSettlement,
		AggregateID:   row.ID,
		Actor:         enums.AuditActorSystem,
		Data: map[string]any{
			"milestone_id":      row.ID.String(),
			"payment_intent_id": row.PaymentIntentID.String(),
			"event_type":        row.EventType,
			"amount":            row.Amount.String(),
			"currency":          row.Currency,
		},
		Version:    1,
		OccurredAt: s.now().UTC(),
	})
}
