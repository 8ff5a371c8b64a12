package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freightline/settlement-engine/api/controllers"
	webhookcontrollers "github.com/freightline/settlement-engine/api/controllers/webhooks"
	"github.com/freightline/settlement-engine/api/middleware"
	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/intents"
	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/pkg/config"
	"github.com/freightline/settlement-engine/pkg/db"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	"github.com/freightline/settlement-engine/pkg/logger"
	"github.com/freightline/settlement-engine/pkg/redis"
)

// IntentsService is the payment intent surface the router mounts.
type IntentsService interface {
	Create(ctx context.Context, input intents.CreateIntentInput) (*intents.IntentView, error)
	Get(ctx context.Context, intentID uuid.UUID) (*intents.IntentView, error)
	Cancel(ctx context.Context, intentID uuid.UUID) (*intents.CancelResult, error)
	ResolveForEvent(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error)
}

// SettlementService is the settlement processing surface the router mounts.
type SettlementService interface {
	ProcessShipmentEvent(ctx context.Context, event settlement.ShipmentEvent) (*settlement.ProcessResult, error)
	ConfirmSettlement(ctx context.Context, milestoneID uuid.UUID, actor enums.AuditActor) (*models.MilestoneSettlement, error)
}

// AuditService is the read-only reporting surface the router mounts.
type AuditService interface {
	ShipmentReport(ctx context.Context, shipmentID uuid.UUID) (*audit.ShipmentView, error)
	IntentReport(ctx context.Context, intentID uuid.UUID) (*audit.IntentMilestonesView, error)
	Trail(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cacheP redis.Pinger,
	intentsService IntentsService,
	settlementService SettlementService,
	auditService AuditService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, cacheP, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/shipment-events", webhookcontrollers.ShipmentEvents(intentsService, settlementService, logg))
	})

	r.Route("/api/v1/payment-intents", func(r chi.Router) {
		r.Post("/", controllers.CreateIntent(intentsService, logg))
		r.Get("/{id}", controllers.GetIntent(intentsService, logg))
		r.Post("/{id}/cancel", controllers.CancelIntent(intentsService, logg))
	})

	r.Route("/api/v1/settlements", func(r chi.Router) {
		r.Post("/{id}/confirm", controllers.ConfirmSettlement(settlementService, logg))
	})

	r.Route("/audit", func(r chi.Router) {
		r.Get("/shipments/{shipmentId}", controllers.ShipmentAudit(auditService, logg))
		r.Get("/payment_intents/{id}/milestones", controllers.IntentMilestones(auditService, logg))
		r.Get("/milestones/{id}/trail", controllers.MilestoneTrail(auditService, logg))
	})

	return r
}
