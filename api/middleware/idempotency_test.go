package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func TestIdempotentRouteSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", true},
		{"pay invoice", http.MethodPost, "/api/v1/payments/pay-invoice", true},
		{"create invoice", http.MethodPost, "/api/v1/invoices", true},
		{"issue receipt", http.MethodPost, "/api/v1/receipts", true},
		{"get order", http.MethodGet, "/api/v1/orders", false},
		{"mpesa webhook", http.MethodPost, "/api/v1/payments/webhooks/mpesa", false},
		{"empty", http.MethodPost, "", false},
	}

	for _, tt := range tests {
		if got := isIdempotentRoute(tt.method, tt.path); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestIdempotencyMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"cartId":"c"}`))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected handler to run for each request without a key, ran %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 24*time.Hour, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-invoice", strings.NewReader(`{"invoiceId":"i"}`))
	req.Header.Set("Idempotency-Key", "abc")
	req = req.WithContext(WithActor(req.Context(), Actor{UserID: "user-1"}))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-invoice", strings.NewReader(`{"invoiceId":"i"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	replay = replay.WithContext(WithActor(replay.Context(), Actor{UserID: "user-1"}))
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if resp.Header().Get(replayedHeader) != "" {
		t.Fatalf("first response must not carry the replay marker")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != 24*time.Hour {
			t.Fatalf("expected 24h ttl for %s, got %v", key, ttl)
		}
	}
}

func TestIdempotencyMiddlewareScopesKeysPerUser(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, user := range []string{"user-1", "user-2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "same")
		req = req.WithContext(WithActor(req.Context(), Actor{UserID: user}))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("keys from different users must not collide, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-invoice", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected processor failures to stay retryable, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"cartId":"a"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"cartId":"b"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Success || payload.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %+v", pkgerrors.CodeIdempotency, payload)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-invoice", strings.NewReader(`{"invoiceId":"i"}`))
		req.Header.Set(idempotencyHeader, "double-tap")
		return req.WithContext(WithActor(req.Context(), Actor{UserID: "user-1"}))
	}

	var nestedCode, calls int
	var handler http.Handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			nested := httptest.NewRecorder()
			mw(handler).ServeHTTP(nested, newReq())
			nestedCode = nested.Code
		}
		w.WriteHeader(http.StatusAccepted)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, newReq())

	if first.Code != http.StatusAccepted {
		t.Fatalf("expected first request to complete, got %d", first.Code)
	}
	if nestedCode != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to be rejected with 409, got %d", nestedCode)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, expected 1", calls)
	}

	after := httptest.NewRecorder()
	mw(handler).ServeHTTP(after, newReq())
	if after.Code != http.StatusAccepted || after.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected completed response replayed, got %d", after.Code)
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	mw := Idempotency(newFakeStore(), time.Hour, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req.Header.Set(idempotencyHeader, strings.Repeat("k", maxIdempotencyKeyLength+1))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
