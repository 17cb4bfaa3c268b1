package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	invoicecontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/invoices"
	"github.com/kicksnairobi/footwear-backend/pkg/auth"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubInvoices struct {
	invoicecontrollers.Service
	created int
}

func (s *stubInvoices) CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	s.created++
	return &models.Invoice{ID: uuid.New(), OrderID: orderID}, nil
}

func (s *stubInvoices) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return &models.Invoice{ID: id}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", APIBasePath: "/api/v1"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "kicks-test", ExpirationMinutes: 5},
	}
}

func newTestRouter(t *testing.T, deps Dependencies) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Level: logger.ParseLevel("error")})
	if deps.DB == nil {
		deps.DB = stubPinger{}
	}
	if deps.Cache == nil {
		deps.Cache = stubPinger{}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	return NewRouter(cfg, logg, deps), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestMetricsRouteServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test counter"})
	reg.MustRegister(counter)
	counter.Inc()

	router, _ := newTestRouter(t, Dependencies{Gatherer: reg})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "router_test_total 1") {
		t.Fatalf("expected counter in exposition, got %s", rec.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{Invoices: &stubInvoices{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCustomerCanReadInvoice(t *testing.T) {
	router, cfg := newTestRouter(t, Dependencies{Invoices: &stubInvoices{}})

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+id.String(), nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), id.String()) {
		t.Fatalf("expected invoice id in body, got %s", rec.Body.String())
	}
}

func TestInvoiceCreationIsStaffOnly(t *testing.T) {
	invoices := &stubInvoices{}
	router, cfg := newTestRouter(t, Dependencies{Invoices: invoices})
	body := `{"orderId":"` + uuid.NewString() + `"}`

	cases := []struct {
		role   enums.Role
		status int
	}{
		{enums.RoleCustomer, http.StatusForbidden},
		{enums.RoleStaff, http.StatusCreated},
		{enums.RoleAdmin, http.StatusCreated},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearer(t, cfg, tc.role))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.role, tc.status, rec.Code, rec.Body.String())
		}
	}
	if invoices.created != 2 {
		t.Fatalf("expected two invoices created, got %d", invoices.created)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
