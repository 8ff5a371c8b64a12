package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/freightline/settlement-engine/api/responses"
	"github.com/freightline/settlement-engine/api/validators"
	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/logger"
)

type intentResolver interface {
	ResolveForEvent(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error)
}

type settlementProcessor interface {
	ProcessShipmentEvent(ctx context.Context, event settlement.ShipmentEvent) (*settlement.ProcessResult, error)
}

// ShipmentEventRequest is the inbound webhook payload. Exactly one of
// payment_intent_id and freight_token_id targets the affected intents.
type ShipmentEventRequest struct {
	PaymentIntentID *uuid.UUID     `json:"payment_intent_id,omitempty"`
	FreightTokenID  *uuid.UUID     `json:"freight_token_id,omitempty"`
	EventType       string         `json:"event_type" validate:"required"`
	OccurredAt      *time.Time     `json:"occurred_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ShipmentEventResponse acknowledges the delivery. Duplicates and missing
// schedule items are no-ops, still acknowledged with 200.
type ShipmentEventResponse struct {
	ProcessedAt                 time.Time `json:"processed_at"`
	MilestoneSettlementsCreated int       `json:"milestone_settlements_created"`
	Message                     string    `json:"message"`
}

// ShipmentEvents handles inbound shipment lifecycle events. Each resolved
// intent is processed independently; one intent's failure never blocks the
// others and is counted rather than raised.
func ShipmentEvents(resolver intentResolver, processor settlementProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req ShipmentEventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventType, err := enums.ParseShipmentEventType(req.EventType)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event type"))
			return
		}

		intents, err := resolver.ResolveForEvent(ctx, req.PaymentIntentID, req.FreightTokenID)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				// unknown target: acknowledged, nothing to do
				responses.WriteSuccess(w, ShipmentEventResponse{
					ProcessedAt: time.Now().UTC(),
					Message:     "no matching payment intents",
				})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		occurredAt := time.Now().UTC()
		if req.OccurredAt != nil {
			occurredAt = req.OccurredAt.UTC()
		}

		created := 0
		failed := 0
		var errs error
		for _, intent := range intents {
			result, procErr := processor.ProcessShipmentEvent(ctx, settlement.ShipmentEvent{
				IntentID:   intent.ID,
				EventType:  eventType,
				OccurredAt: occurredAt,
			})
			// a failed rail call still leaves a created pending row behind;
			// count it so the response reconciles with the ledger
			if result != nil && result.Created {
				created++
			}
			if procErr != nil {
				failed++
				errs = multierr.Append(errs, procErr)
			}
		}

		if errs != nil && logg != nil {
			logg.Error(ctx, "shipment event processing had failures", errs)
		}

		message := "processed"
		switch {
		case len(intents) == 0:
			message = "no matching payment intents"
		case failed > 0:
			message = fmt.Sprintf("processed with %d failure(s)", failed)
		case created == 0:
			message = "already processed"
		}

		responses.WriteSuccess(w, ShipmentEventResponse{
			ProcessedAt:                 time.Now().UTC(),
			MilestoneSettlementsCreated: created,
			Message:                     message,
		})
	}
}
