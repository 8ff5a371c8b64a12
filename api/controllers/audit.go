package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freightline/settlement-engine/api/responses"
	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/pkg/db/models"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/logger"
)

type auditService interface {
	ShipmentReport(ctx context.Context, shipmentID uuid.UUID) (*audit.ShipmentView, error)
	IntentReport(ctx context.Context, intentID uuid.UUID) (*audit.IntentMilestonesView, error)
	Trail(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error)
}

// ShipmentAudit handles GET /audit/shipments/{shipmentId}.
func ShipmentAudit(svc auditService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shipmentID, err := uuid.Parse(chi.URLParam(r, "shipmentId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment id"))
			return
		}
		report, err := svc.ShipmentReport(ctx, shipmentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// IntentMilestones handles GET /audit/payment_intents/{id}/milestones.
func IntentMilestones(svc auditService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		intentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent id"))
			return
		}
		report, err := svc.IntentReport(ctx, intentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// MilestoneTrail handles GET /audit/milestones/{id}/trail.
func MilestoneTrail(svc auditService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		milestoneID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid milestone id"))
			return
		}
		entries, err := svc.Trail(ctx, milestoneID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}
