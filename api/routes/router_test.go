package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/intents"
	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/pkg/config"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubIntentsService struct {
	createFn  func(ctx context.Context, input intents.CreateIntentInput) (*intents.IntentView, error)
	getFn     func(ctx context.Context, intentID uuid.UUID) (*intents.IntentView, error)
	cancelFn  func(ctx context.Context, intentID uuid.UUID) (*intents.CancelResult, error)
	resolveFn func(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error)
}

func (s stubIntentsService) Create(ctx context.Context, input intents.CreateIntentInput) (*intents.IntentView, error) {
	return s.createFn(ctx, input)
}

func (s stubIntentsService) Get(ctx context.Context, intentID uuid.UUID) (*intents.IntentView, error) {
	return s.getFn(ctx, intentID)
}

func (s stubIntentsService) Cancel(ctx context.Context, intentID uuid.UUID) (*intents.CancelResult, error) {
	return s.cancelFn(ctx, intentID)
}

func (s stubIntentsService) ResolveForEvent(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error) {
	return s.resolveFn(ctx, intentID, freightTokenID)
}

type stubSettlementService struct {
	processFn func(ctx context.Context, event settlement.ShipmentEvent) (*settlement.ProcessResult, error)
	confirmFn func(ctx context.Context, milestoneID uuid.UUID, actor enums.AuditActor) (*models.MilestoneSettlement, error)
}

func (s stubSettlementService) ProcessShipmentEvent(ctx context.Context, event settlement.ShipmentEvent) (*settlement.ProcessResult, error) {
	return s.processFn(ctx, event)
}

func (s stubSettlementService) ConfirmSettlement(ctx context.Context, milestoneID uuid.UUID, actor enums.AuditActor) (*models.MilestoneSettlement, error) {
	return s.confirmFn(ctx, milestoneID, actor)
}

type stubAuditService struct {
	shipmentFn func(ctx context.Context, shipmentID uuid.UUID) (*audit.ShipmentView, error)
	intentFn   func(ctx context.Context, intentID uuid.UUID) (*audit.IntentMilestonesView, error)
	trailFn    func(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error)
}

func (s stubAuditService) ShipmentReport(ctx context.Context, shipmentID uuid.UUID) (*audit.ShipmentView, error) {
	return s.shipmentFn(ctx, shipmentID)
}

func (s stubAuditService) IntentReport(ctx context.Context, intentID uuid.UUID) (*audit.IntentMilestonesView, error) {
	return s.intentFn(ctx, intentID)
}

func (s stubAuditService) Trail(ctx context.Context, milestoneID uuid.UUID) ([]models.AuditLogEntry, error) {
	return s.trailFn(ctx, milestoneID)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(intentsSvc IntentsService, settlementSvc SettlementService, auditSvc AuditService) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Output: io.Discard})
	return NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		stubPinger{},
		intentsSvc,
		settlementSvc,
		auditSvc,
	)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(stubIntentsService{}, stubSettlementService{}, stubAuditService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 on %s got %d", path, resp.Code)
		}
	}
}

func TestCreateIntentReturns201(t *testing.T) {
	shipmentID := uuid.New()
	router := newTestRouter(stubIntentsService{
		createFn: func(ctx context.Context, input intents.CreateIntentInput) (*intents.IntentView, error) {
			return &intents.IntentView{
				Intent: &models.PaymentIntent{
					ID:         uuid.New(),
					ShipmentID: input.ShipmentID,
					Amount:     input.Amount,
					Currency:   enums.CurrencyUSD,
					RiskScore:  input.RiskScore,
					RiskTier:   enums.RiskTierMedium,
					Status:     enums.IntentStatusActive,
					CreatedAt:  time.Now().UTC(),
				},
			}, nil
		},
	}, stubSettlementService{}, stubAuditService{})

	body := `{"shipment_id":"` + shipmentID.String() + `","amount":"1000.00","risk_score":0.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-intents/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), shipmentID.String()) {
		t.Fatalf("expected response to echo shipment id, got %s", resp.Body.String())
	}
}

func TestWebhookAcknowledgesUnknownTarget(t *testing.T) {
	router := newTestRouter(stubIntentsService{
		resolveFn: func(ctx context.Context, intentID, freightTokenID *uuid.UUID) ([]models.PaymentIntent, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		},
	}, stubSettlementService{}, stubAuditService{})

	body := `{"payment_intent_id":"` + uuid.NewString() + `","event_type":"POD_CONFIRMED"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipment-events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown target got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "no matching payment intents") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestShipmentAuditUnknownReturns404(t *testing.T) {
	router := newTestRouter(stubIntentsService{}, stubSettlementService{}, stubAuditService{
		shipmentFn: func(ctx context.Context, shipmentID uuid.UUID) (*audit.ShipmentView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment has no payment intents")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/audit/shipments/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestConfirmSettlementRejectsMalformedID(t *testing.T) {
	router := newTestRouter(stubIntentsService{}, stubSettlementService{}, stubAuditService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements/not-a-uuid/confirm", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestIntentMilestonesReturnsReport(t *testing.T) {
	intentID := uuid.New()
	router := newTestRouter(stubIntentsService{}, stubSettlementService{}, stubAuditService{
		intentFn: func(ctx context.Context, id uuid.UUID) (*audit.IntentMilestonesView, error) {
			return &audit.IntentMilestonesView{
				PaymentIntentID: id,
				Amount:          decimal.RequireFromString("1000.00"),
				RiskScore:       0.8,
				RiskTier:        enums.RiskTierHigh,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/audit/payment_intents/"+intentID.String()+"/milestones", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), intentID.String()) {
		t.Fatalf("expected report for %s, got %s", intentID, resp.Body.String())
	}
}
