package intents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/risk"
	"github.com/freightline/settlement-engine/internal/schedule"
	"github.com/freightline/settlement-engine/internal/settlement"
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

// CreateIntentInput carries everything needed to open a payment intent.
type CreateIntentInput struct {
	ShipmentID     uuid.UUID
	FreightTokenID *uuid.UUID
	Amount         decimal.Decimal
	Currency       enums.Currency
	RiskScore      float64
}

// IntentView is the created intent together with its derived schedule.
type IntentView struct {
	Intent   *models.PaymentIntent
	Schedule *models.PaymentSchedule
}

// CancelResult reports what a cancellation touched. ApprovedUntouched counts
// milestones whose funds were already released and therefore stayed put.
type CancelResult struct {
	Intent              *models.PaymentIntent
	CancelledMilestones int64
	ApprovedUntouched   int
}

// Service owns the payment intent lifecycle.
type Service struct {
	tx          txRunner
	repo        Repository
	schedules   schedule.Repository
	settlements settlement.Repository
	audit       audit.Repository
	outbox      outboxPublisher
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the intent lifecycle service.
func NewService(tx txRunner, repo Repository, schedules schedule.Repository, settlements settlement.Repository, auditRepo audit.Repository, ob outboxPublisher, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if schedules == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if settlements == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:          tx,
		repo:        repo,
		schedules:   schedules,
		settlements: settlements,
		audit:       auditRepo,
		outbox:      ob,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Create validates the input, classifies the risk tier, derives the
// milestone schedule, and persists all of it in one transaction.
func (s *Service) Create(ctx context.Context, input CreateIntentInput) (*IntentView, error) {
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "intent amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency").
			WithDetails(map[string]any{"currency": string(currency)})
	}

	tier, err := risk.Classify(input.RiskScore)
	if err != nil {
		return nil, err
	}
	items, err := schedule.Build(tier)
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ShipmentID:     input.ShipmentID,
		FreightTokenID: input.FreightTokenID,
		Amount:         input.Amount,
		Currency:       currency,
		RiskScore:      input.RiskScore,
		RiskTier:       tier,
		Status:         enums.IntentStatusActive,
	}

	var sched *models.PaymentSchedule
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, intent); err != nil {
			return err
		}
		sched = &models.PaymentSchedule{
			PaymentIntentID: intent.ID,
			RiskTier:        tier,
		}
		for _, item := range items {
			sched.Items = append(sched.Items, models.ScheduleItem{
				EventType:  item.EventType,
				Percentage: item.Percentage,
				Sequence:   item.Sequence,
			})
		}
		if err := s.schedules.WithTx(tx).Create(ctx, sched); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventIntentCreated,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   intent.ID,
			Actor:         enums.AuditActorSystem,
			Data: map[string]any{
				"payment_intent_id": intent.ID.String(),
				"shipment_id":       intent.ShipmentID.String(),
				"amount":            intent.Amount.String(),
				"currency":          intent.Currency,
				"risk_tier":         tier,
			},
			Version:    1,
			OccurredAt: s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithIntentID(ctx, intent.ID.String())
	s.logg.Info(ctx, "payment intent created")
	return &IntentView{Intent: intent, Schedule: sched}, nil
}

// Get returns the intent with its schedule.
func (s *Service) Get(ctx context.Context, intentID uuid.UUID) (*IntentView, error) {
	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	sched, err := s.schedules.FindByIntentID(ctx, intentID)
	if err != nil && !errors.Is(err, schedule.ErrScheduleNotFound) {
		return nil, err
	}
	return &IntentView{Intent: intent, Schedule: sched}, nil
}

// Cancel terminates the intent. Every milestone still in a cancellable
// status is cancelled with it; approved milestones stay untouched because
// those funds already left, and the caller gets the count.
func (s *Service) Cancel(ctx context.Context, intentID uuid.UUID) (*CancelResult, error) {
	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != enums.IntentStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "intent is not active").
			WithDetails(map[string]any{"status": string(intent.Status)})
	}

	cancelledAt := s.now().UTC()
	var cancelled int64
	approvedUntouched := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkCancelled(ctx, intentID, cancelledAt); err != nil {
			return err
		}
		txSettlements := s.settlements.WithTx(tx)
		var err error
		cancelled, err = txSettlements.CancelWhereCancellable(ctx, intentID)
		if err != nil {
			return err
		}
		// audit exactly the rows the conditional update moved; a milestone
		// that slipped to approved between the status check and this tx
		// stays put and is only counted
		milestones, err := txSettlements.ListByIntentID(ctx, intentID)
		if err != nil {
			return err
		}
		auditRepo := s.audit.WithTx(tx)
		for _, row := range milestones {
			switch row.Status {
			case enums.SettlementStatusCancelled:
				entry := &models.AuditLogEntry{
					MilestoneID: row.ID,
					Action:      "cancelled",
					Reason:      "payment intent cancelled",
					TriggeredBy: enums.AuditActorManual,
				}
				if err := auditRepo.Create(ctx, entry); err != nil {
					return err
				}
			case enums.SettlementStatusApproved:
				approvedUntouched++
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventIntentCancelled,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   intentID,
			Actor:         enums.AuditActorManual,
			Data: map[string]any{
				"payment_intent_id":    intentID.String(),
				"cancelled_milestones": cancelled,
				"approved_untouched":   approvedUntouched,
			},
			Version:    1,
			OccurredAt: cancelledAt,
		})
	})
	if err != nil {
		return nil, err
	}

	intent.Status = enums.IntentStatusCancelled
	intent.CancelledAt = &cancelledAt

	ctx = s.logg.WithIntentID(ctx, intentID.String())
	if approvedUntouched > 0 {
		s.logg.Warn(ctx, "intent cancelled with approved milestones left untouched")
	} else {
		s.logg.Info(ctx, "payment intent cancelled")
	}
	return &CancelResult{
		Intent:              intent,
		CancelledMilestones: cancelled,
		ApprovedUntouched:   approvedUntouched,
	}, nil
}

// ResolveForEvent maps a webhook target onto payment intents. A freight
// token can back several intents, a direct intent id exactly one.
func (s *Service) ResolveForEvent(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error) {
	switch {
	case intentID != nil && *intentID != uuid.Nil:
		intent, err := s.repo.FindByID(ctx, *intentID)
		if err != nil {
			return nil, err
		}
		return []models.PaymentIntent{*intent}, nil
	case freightTokenID != nil && *freightTokenID != uuid.Nil:
		return s.repo.FindByFreightTokenID(ctx, *freightTokenID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent_id or freight_token_id is required")
	}
}
