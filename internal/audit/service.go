package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
)

type intentReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByShipmentID(ctx context.Context, shipmentID uuid.UUID) ([]models.PaymentIntent, error)
}

type settlementReader interface {
	ListByIntentID(ctx context.Context, intentID uuid.UUID) ([]models.MilestoneSettlement, error)
	ListByIntentIDs(ctx context.Context, intentIDs []uuid.UUID) ([]models.MilestoneSettlement, error)
}

// MilestoneView is one settlement row as exposed on the audit surface.
type MilestoneView struct {
	ID                uuid.UUID               `json:"id"`
	PaymentIntentID   uuid.UUID               `json:"payment_intent_id"`
	EventType         enums.ShipmentEventType `json:"event_type"`
	Amount            decimal.Decimal         `json:"amount"`
	Currency          enums.Currency          `json:"currency"`
	Status            enums.SettlementStatus  `json:"status"`
	ProviderReference *string                 `json:"provider_reference,omitempty"`
	DelayedUntil      *string                 `json:"delayed_until,omitempty"`
}

// ShipmentSummary aggregates milestones for one shipment.
type ShipmentSummary struct {
	TotalMilestones     int             `json:"total_milestones"`
	ApprovedCount       int             `json:"approved_count"`
	PendingCount        int             `json:"pending_count"`
	TotalApprovedAmount decimal.Decimal `json:"total_approved_amount"`
}

// ShipmentView is the reconciliation report for one shipment.
type ShipmentView struct {
	ShipmentID uuid.UUID       `json:"shipment_id"`
	Milestones []MilestoneView `json:"milestones"`
	Summary    ShipmentSummary `json:"summary"`
}

// IntentSummary aggregates milestones for one payment intent.
type IntentSummary struct {
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
}

// IntentMilestonesView is the reconciliation report for one payment intent.
type IntentMilestonesView struct {
	PaymentIntentID uuid.UUID       `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	RiskScore       float64         `json:"risk_score"`
	RiskTier        enums.RiskTier  `json:"risk_tier"`
	Milestones      []MilestoneView `json:"milestones"`
	Summary         IntentSummary   `json:"summary"`
}

// Service is the read-only reconciliation surface. Summaries are computed
// from current rows at query time, never cached, so they always reconcile
// exactly against the underlying records.
type Service struct {
	intents     intentReader
	settlements settlementReader
	trail       Repository
}

// NewService wires the audit read model.
func NewService(intents intentReader, settlements settlementReader, trail Repository) (*Service, error) {
	if intents == nil {
		return nil, fmt.Errorf("intent reader required")
	}
	if settlements == nil {
		return nil, fmt.Errorf("settlement reader required")
	}
	if trail == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &Service{intents: intents, settlements: settlements, trail: trail}, nil
}

// ShipmentReport aggregates every milestone across the shipment's intents.
func (s *Service) ShipmentReport(ctx context.Context, shipmentID uuid.UUID) (*ShipmentView, error) {
	intents, err := s.intents.FindByShipmentID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if len(intents) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment has no payment intents")
	}

	intentIDs := make([]uuid.UUID, 0, len(intents))
	for _, intent := range intents {
		intentIDs = append(intentIDs, intent.ID)
	}
	rows, err := s.settlements.ListByIntentIDs(ctx, intentIDs)
	if err != nil {
		return nil, err
	}

	view := &ShipmentView{
		ShipmentID: shipmentID,
		Milestones: toMilestoneViews(rows),
		Summary: ShipmentSummary{
			TotalMilestones:     len(rows),
			TotalApprovedAmount: decimal.Zero,
		},
	}
	for _, row := range rows {
		switch {
		case isApproved(row.Status):
			view.Summary.ApprovedCount++
			view.Summary.TotalApprovedAmount = view.Summary.TotalApprovedAmount.Add(row.Amount)
		case isOpen(row.Status):
			view.Summary.PendingCount++
		}
	}
	return view, nil
}

// IntentReport scopes the same aggregation to one intent plus risk context.
func (s *Service) IntentReport(ctx context.Context, intentID uuid.UUID) (*IntentMilestonesView, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, err
	}
	rows, err := s.settlements.ListByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	view := &IntentMilestonesView{
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		RiskScore:       intent.RiskScore,
		RiskTier:        intent.RiskTier,
		Milestones:      toMilestoneViews(rows),
		Summary: IntentSummary{
			ApprovedAmount: decimal.Zero,
			PendingAmount:  decimal.Zero,
		},
	}
	for _, row := range rows {
		switch {
		case isApproved(row.Status):
			view.Summary.ApprovedAmount = view.Summary.ApprovedAmount.Add(row.Amount)
		case isOpen(row.Status):
			view.Summary.PendingAmount = view.Summary.PendingAmount.Add(row.Amount)
		}
	}
	return view, nil
}

// Trail returns the transition history of one milestone, oldest first.
func (s *Service) Trail(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error) {
	return s.trail.ListByMilestoneID(ctx, milestoneID)
}

// isApproved covers released funds: approved and settled rows both count
// toward total_approved_amount.
func isApproved(status enums.SettlementStatus) bool {
	return status == enums.SettlementStatusApproved || status == enums.SettlementStatusSettled
}

// isOpen covers rows still waiting on release: pending, delayed, and
// manual_review.
func isOpen(status enums.SettlementStatus) bool {
	return !isApproved(status) && status != enums.SettlementStatusCancelled
}

func isNotFound(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeNotFound
}

func toMilestoneViews(rows []models.MilestoneSettlement) []MilestoneView {
	views := make([]MilestoneView, 0, len(rows))
	for _, row := range rows {
		view := MilestoneView{
			ID:                row.ID,
			PaymentIntentID:   row.PaymentIntentID,
			EventType:         row.EventType,
			Amount:            row.Amount,
			Currency:          row.Currency,
			Status:            row.Status,
			ProviderReference: row.ProviderReference,
		}
		if row.DelayedUntil != nil {
			formatted := row.DelayedUntil.UTC().Format(time.RFC3339)
			view.DelayedUntil = &formatted
		}
		views = append(views, view)
	}
	return views
}
