package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

func TestRequestIDPropagatesOrMints(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "caller id", incoming: "pos-till-7:42", keep: true},
		{name: "missing", incoming: "", keep: false},
		{name: "too long", incoming: strings.Repeat("a", maxRequestIDLength+1), keep: false},
		{name: "whitespace", incoming: "abc def", keep: false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.incoming != "" {
			req.Header.Set(requestIDHeader, tc.incoming)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if tc.keep && seen != tc.incoming {
			t.Fatalf("%s: expected %q to be kept, got %q", tc.name, tc.incoming, seen)
		}
		if !tc.keep && (seen == tc.incoming || seen == "") {
			t.Fatalf("%s: expected a minted id, got %q", tc.name, seen)
		}
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	handler := Recoverer(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil invoice")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/receipts", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if !strings.Contains(buf.String(), `"panic.recovered"`) || !strings.Contains(buf.String(), `"path":"/api/v1/receipts"`) {
		t.Fatalf("expected panic log with path; got %s", buf.String())
	}
}

func TestRecovererReraisesAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLoggingReportsRouteAndCaller(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	cfg := testJWTConfig()
	token := mintTestToken(t, cfg, uuid.New(), enums.RoleStaff)

	r := chi.NewRouter()
	r.Use(Logging(logg), Auth(cfg, logg))
	r.Get("/invoices/{invoiceId}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/invoices/abc", nil)
	req.Header.Set("Authorization", "bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{`"request.complete"`, `"route":"/invoices/{invoiceId}"`, `"status":200`, `"bytes":2`, `"user_id"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in access log; got %s", want, out)
		}
	}
}

func TestLoggingSkipsHealthProbes(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	Logging(logg)(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no access log for health checks, got %s", buf.String())
	}
}

func TestAuthRejectsNonBearerScheme(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if !strings.HasPrefix(resp.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Fatalf("expected WWW-Authenticate challenge")
	}
}
