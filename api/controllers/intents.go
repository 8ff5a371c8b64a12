package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/api/responses"
	"github.com/freightline/settlement-engine/api/validators"
	"github.com/freightline/settlement-engine/internal/intents"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/logger"
)

type intentService interface {
	Create(ctx context.Context, input intents.CreateIntentInput) (*intents.IntentView, error)
	Get(ctx context.Context, intentID uuid.UUID) (*intents.IntentView, error)
	Cancel(ctx context.Context, intentID uuid.UUID) (*intents.CancelResult, error)
}

// CreateIntentRequest opens a payment intent once a risk score is available.
type CreateIntentRequest struct {
	ShipmentID     uuid.UUID  `json:"shipment_id" validate:"required"`
	FreightTokenID *uuid.UUID `json:"freight_token_id,omitempty"`
	Amount         string     `json:"amount" validate:"required"`
	Currency       string     `json:"currency,omitempty"`
	RiskScore      float64    `json:"risk_score"`
}

type scheduleItemView struct {
	EventType  enums.ShipmentEventType `json:"event_type"`
	Percentage string                  `json:"percentage"`
	Sequence   int                     `json:"sequence"`
}

type intentView struct {
	ID             uuid.UUID          `json:"id"`
	ShipmentID     uuid.UUID          `json:"shipment_id"`
	FreightTokenID *uuid.UUID         `json:"freight_token_id,omitempty"`
	Amount         string             `json:"amount"`
	Currency       enums.Currency     `json:"currency"`
	RiskScore      float64            `json:"risk_score"`
	RiskTier       enums.RiskTier     `json:"risk_tier"`
	Status         enums.IntentStatus `json:"status"`
	Schedule       []scheduleItemView `json:"schedule,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toIntentView(view *intents.IntentView) intentView {
	out := intentView{
		ID:             view.Intent.ID,
		ShipmentID:     view.Intent.ShipmentID,
		FreightTokenID: view.Intent.FreightTokenID,
		Amount:         view.Intent.Amount.StringFixed(2),
		Currency:       view.Intent.Currency,
		RiskScore:      view.Intent.RiskScore,
		RiskTier:       view.Intent.RiskTier,
		Status:         view.Intent.Status,
		CreatedAt:      view.Intent.CreatedAt,
	}
	if view.Schedule != nil {
		for _, item := range view.Schedule.Items {
			out.Schedule = append(out.Schedule, scheduleItemView{
				EventType:  item.EventType,
				Percentage: item.Percentage.String(),
				Sequence:   item.Sequence,
			})
		}
	}
	return out
}

// CreateIntent handles POST /api/v1/payment-intents.
func CreateIntent(svc intentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req CreateIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		view, err := svc.Create(ctx, intents.CreateIntentInput{
			ShipmentID:     req.ShipmentID,
			FreightTokenID: req.FreightTokenID,
			Amount:         amount,
			Currency:       enums.Currency(req.Currency),
			RiskScore:      req.RiskScore,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toIntentView(view))
	}
}

// GetIntent handles GET /api/v1/payment-intents/{id}.
func GetIntent(svc intentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent id"))
			return
		}
		view, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toIntentView(view))
	}
}

type cancelIntentResponse struct {
	Intent              intentView `json:"intent"`
	CancelledMilestones int64      `json:"cancelled_milestones"`
	ApprovedUntouched   int        `json:"approved_untouched"`
}

// CancelIntent handles POST /api/v1/payment-intents/{id}/cancel.
func CancelIntent(svc intentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent id"))
			return
		}
		result, err := svc.Cancel(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelIntentResponse{
			Intent:              toIntentView(&intents.IntentView{Intent: result.Intent}),
			CancelledMilestones: result.CancelledMilestones,
			ApprovedUntouched:   result.ApprovedUntouched,
		})
	}
}

// ConfirmSettlement handles POST /api/v1/settlements/{id}/confirm: the
// external confirmation hook moving an approved settlement to settled.
func ConfirmSettlement(confirmer settlementConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement id"))
			return
		}
		row, err := confirmer.ConfirmSettlement(ctx, id, enums.AuditActorManual)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"milestone_id": row.ID,
			"status":       row.Status,
			"settled_at":   row.SettledAt,
		})
	}
}

type settlementConfirmer interface {
	ConfirmSettlement(ctx context.Context, milestoneID uuid.UUID, actor enums.AuditActor) (*models.MilestoneSettlement, error)
}
