package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/internal/basket"
	checkoutsvc "github.com/Shahir-47/sarva-backend/internal/checkout"
	"github.com/Shahir-47/sarva-backend/internal/delivery"
	"github.com/Shahir-47/sarva-backend/internal/orders"
	"github.com/Shahir-47/sarva-backend/internal/settlement"
	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrdersService struct{}

func (stubOrdersService) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}
func (stubOrdersService) Get(context.Context, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) ListForCustomer(context.Context, uuid.UUID) ([]models.Order, error) {
	return nil, nil
}
func (stubOrdersService) ListForVendor(context.Context, uuid.UUID) ([]models.Order, error) {
	return nil, nil
}
func (stubOrdersService) ListForDriver(context.Context, uuid.UUID) ([]models.Order, error) {
	return nil, nil
}
func (stubOrdersService) ListClaimable(context.Context, pagination.Params) (*orders.ClaimablePage, error) {
	return &orders.ClaimablePage{}, nil
}
func (stubOrdersService) MarkPreparing(context.Context, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) MarkReady(context.Context, uuid.UUID, orders.Actor) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) Claim(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) StartDelivering(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) Deliver(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (stubOrdersService) Cancel(context.Context, uuid.UUID, orders.Actor, string) (*orders.CancelResult, error) {
	return &orders.CancelResult{Order: &models.Order{}}, nil
}

type stubSettlementService struct{}

func (stubSettlementService) Authorize(context.Context, settlement.AuthorizeParams) (*settlement.AuthorizeResult, error) {
	return &settlement.AuthorizeResult{PaymentIntentID: "pi_test", ClientSecret: "secret"}, nil
}
func (stubSettlementService) CaptureAndPayVendor(context.Context, uuid.UUID, string) (*settlement.TransferResult, error) {
	return &settlement.TransferResult{}, nil
}
func (stubSettlementService) PayDriver(context.Context, uuid.UUID, string) (*settlement.TransferResult, error) {
	return &settlement.TransferResult{}, nil
}
func (stubSettlementService) CancelHold(context.Context, uuid.UUID) error { return nil }
func (stubSettlementService) HoldForOrder(context.Context, uuid.UUID) (*models.PaymentHold, error) {
	return &models.PaymentHold{}, nil
}
func (stubSettlementService) HoldForIntent(context.Context, string) (*models.PaymentHold, error) {
	return &models.PaymentHold{}, nil
}
func (stubSettlementService) Disconnect(context.Context, settlement.DisconnectParams) error {
	return nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Begin(context.Context, checkoutsvc.BeginParams) (*checkoutsvc.BeginResult, error) {
	return &checkoutsvc.BeginResult{Session: &models.CheckoutSession{}, Order: &models.Order{}}, nil
}
func (stubCheckoutService) Confirm(context.Context, uuid.UUID, string) (*checkoutsvc.ConfirmResult, error) {
	return &checkoutsvc.ConfirmResult{Order: &models.Order{}}, nil
}
func (stubCheckoutService) Abandon(context.Context, uuid.UUID) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "router-test"})
	baskets, err := basket.NewService(basket.NewMemoryStore(), logg)
	if err != nil {
		t.Fatalf("basket service: %v", err)
	}
	engine, err := delivery.NewEngine(delivery.EngineParams{
		Logger: logg,
		Config: config.DeliveryConfig{BaseFeeCents: 300, FallbackSpeedKPH: 30},
	})
	if err != nil {
		t.Fatalf("delivery engine: %v", err)
	}

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
	}

	return NewRouter(Deps{
		Config:     cfg,
		Logger:     logg,
		DB:         stubPinger{},
		Baskets:    baskets,
		Delivery:   engine,
		Orders:     stubOrdersService{},
		Settlement: stubSettlementService{},
		Checkout:   stubCheckoutService{},
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func actorHeaders(role string) map[string]string {
	return map[string]string{
		"X-User-Id":   uuid.NewString(),
		"X-User-Role": role,
	}
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	live := doRequest(t, router, http.MethodGet, "/health/live", "", nil)
	if live.Code != http.StatusOK {
		t.Fatalf("live status = %d", live.Code)
	}
	if got := live.Header().Get("X-Sarva-Env"); got != "test" {
		t.Fatalf("env header = %q", got)
	}

	ready := doRequest(t, router, http.MethodGet, "/health/ready", "", nil)
	if ready.Code != http.StatusOK {
		t.Fatalf("ready status = %d", ready.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}

func TestBasketRequiresActor(t *testing.T) {
	router := newTestRouter(t)

	anon := doRequest(t, router, http.MethodGet, "/api/v1/basket/", "", nil)
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous basket get status = %d", anon.Code)
	}

	asDriver := doRequest(t, router, http.MethodGet, "/api/v1/basket/", "", actorHeaders("driver"))
	if asDriver.Code != http.StatusForbidden {
		t.Fatalf("driver basket get status = %d", asDriver.Code)
	}

	asCustomer := doRequest(t, router, http.MethodGet, "/api/v1/basket/", "", actorHeaders("customer"))
	if asCustomer.Code != http.StatusOK {
		t.Fatalf("customer basket get status = %d, body %s", asCustomer.Code, asCustomer.Body.String())
	}
}

func TestDeliveryDistanceIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/delivery/distance?origin_lat=40.0&origin_lon=-75.0&destination_lat=40.1&destination_lon=-75.1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("distance status = %d, body %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			FeeCents            int  `json:"fee_cents"`
			ComputedViaFallback bool `json:"computed_via_fallback"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !envelope.Data.ComputedViaFallback {
		t.Fatal("expected fallback quote without a router")
	}
	if envelope.Data.FeeCents < 300 {
		t.Fatalf("fee = %d, want at least base fee", envelope.Data.FeeCents)
	}
}

func TestClaimableIsDriverOnly(t *testing.T) {
	router := newTestRouter(t)

	asCustomer := doRequest(t, router, http.MethodGet, "/api/v1/orders/claimable", "", actorHeaders("customer"))
	if asCustomer.Code != http.StatusForbidden {
		t.Fatalf("customer claimable status = %d", asCustomer.Code)
	}

	asDriver := doRequest(t, router, http.MethodGet, "/api/v1/orders/claimable", "", actorHeaders("driver"))
	if asDriver.Code != http.StatusOK {
		t.Fatalf("driver claimable status = %d", asDriver.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/nope", "", actorHeaders("customer"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
