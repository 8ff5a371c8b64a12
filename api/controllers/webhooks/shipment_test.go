package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/types"
)

type stubResolver struct {
	intents []models.PaymentIntent
	err     error
}

func (s stubResolver) ResolveForEvent(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error) {
	return s.intents, s.err
}

type stubProcessor struct {
	results map[uuid.UUID]*settlement.ProcessResult
	errs    map[uuid.UUID]error
	calls   []uuid.UUID
}

func (s *stubProcessor) ProcessShipmentEvent(ctx context.Context, event settlement.ShipmentEvent) (*settlement.ProcessResult, error) {
	s.calls = append(s.calls, event.IntentID)
	if err, ok := s.errs[event.IntentID]; ok {
		return s.results[event.IntentID], err
	}
	if res, ok := s.results[event.IntentID]; ok {
		return res, nil
	}
	return &settlement.ProcessResult{Created: true}, nil
}

func postEvent(t *testing.T, handler http.HandlerFunc, body string) (*httptest.ResponseRecorder, ShipmentEventResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipment-events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var envelope struct {
		Data ShipmentEventResponse `json:"data"`
	}
	if resp.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	}
	return resp, envelope.Data
}

func TestShipmentEvents_OneFailureDoesNotBlockOthers(t *testing.T) {
	good := models.PaymentIntent{ID: uuid.New()}
	bad := models.PaymentIntent{ID: uuid.New()}
	tokenID := uuid.New()

	processor := &stubProcessor{
		errs: map[uuid.UUID]error{
			bad.ID: pkgerrors.New(pkgerrors.CodeRail, "ledger unavailable"),
		},
	}
	handler := ShipmentEvents(stubResolver{intents: []models.PaymentIntent{good, bad}}, processor, nil)

	resp, payload := postEvent(t, handler, `{"freight_token_id":"`+tokenID.String()+`","event_type":"POD_CONFIRMED"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, payload.MilestoneSettlementsCreated)
	assert.Equal(t, "processed with 1 failure(s)", payload.Message)
	assert.Len(t, processor.calls, 2)
}

func TestShipmentEvents_RailFailureStillCountsCreatedRow(t *testing.T) {
	intent := models.PaymentIntent{ID: uuid.New()}
	milestoneID := uuid.New()

	// the rail call failed but the pending row was already written
	processor := &stubProcessor{
		results: map[uuid.UUID]*settlement.ProcessResult{
			intent.ID: {MilestoneID: milestoneID, Created: true, Status: enums.SettlementStatusPending},
		},
		errs: map[uuid.UUID]error{
			intent.ID: pkgerrors.New(pkgerrors.CodeRail, "ledger unavailable"),
		},
	}
	handler := ShipmentEvents(stubResolver{intents: []models.PaymentIntent{intent}}, processor, nil)

	resp, payload := postEvent(t, handler, `{"payment_intent_id":"`+intent.ID.String()+`","event_type":"POD_CONFIRMED"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, payload.MilestoneSettlementsCreated)
	assert.Equal(t, "processed with 1 failure(s)", payload.Message)
}

func TestShipmentEvents_DuplicateIsAcknowledgedNoop(t *testing.T) {
	intent := models.PaymentIntent{ID: uuid.New()}
	processor := &stubProcessor{
		results: map[uuid.UUID]*settlement.ProcessResult{
			intent.ID: {Created: false, Message: "settlement already exists for event"},
		},
	}
	handler := ShipmentEvents(stubResolver{intents: []models.PaymentIntent{intent}}, processor, nil)

	resp, payload := postEvent(t, handler, `{"payment_intent_id":"`+intent.ID.String()+`","event_type":"PICKUP_CONFIRMED"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, payload.MilestoneSettlementsCreated)
	assert.Equal(t, "already processed", payload.Message)
	assert.False(t, payload.ProcessedAt.IsZero())
}

func TestShipmentEvents_InvalidEventTypeRejected(t *testing.T) {
	handler := ShipmentEvents(stubResolver{}, &stubProcessor{}, nil)

	resp, _ := postEvent(t, handler, `{"payment_intent_id":"`+uuid.NewString()+`","event_type":"TELEPORTED"}`)

	require.Equal(t, http.StatusBadRequest, resp.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, string(pkgerrors.CodeValidation), envelope.Error.Code)
}

func TestShipmentEvents_MissingEventTypeRejected(t *testing.T) {
	handler := ShipmentEvents(stubResolver{}, &stubProcessor{}, nil)

	resp, _ := postEvent(t, handler, `{"payment_intent_id":"`+uuid.NewString()+`"}`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}
