package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if !body.Success {
		t.Fatalf("expected success flag")
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	SetDebug(false)
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
		WithDetails(map[string]string{"field": "amount"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Success {
		t.Fatalf("expected success=false")
	}
	if body.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Code)
	}
	if body.Message != "amount must be positive" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Details == nil {
		t.Fatalf("expected details in public payload")
	}
	if body.Error != "" || body.Stack != "" {
		t.Fatalf("debug fields should be hidden, got error=%q stack=%q", body.Error, body.Stack)
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	SetDebug(false)
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Code)
	}
	if body.Message != "internal server error" {
		t.Fatalf("internal errors should use the public message, got %q", body.Message)
	}
	if body.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteErrorIncludesDebugFieldsOutsideProduction(t *testing.T) {
	SetDebug(true)
	t.Cleanup(func() { SetDebug(false) })

	w := httptest.NewRecorder()
	cause := fmt.Errorf("dial daraja: %w", errors.New("connection refused"))
	WriteError(context.Background(), nil, w, pkgerrors.Wrap(pkgerrors.CodeUpstream, cause, "stk push failed"))

	if got := w.Code; got != http.StatusBadGateway {
		t.Fatalf("expected status 502 but got %d", got)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error == "" || body.Stack == "" {
		t.Fatalf("expected debug fields, got error=%q stack=%q", body.Error, body.Stack)
	}
	if body.Message != "stk push failed" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestWriteErrorRateLimitSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many stk pushes for this invoice"))

	if got := w.Code; got != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 but got %d", got)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
}

func TestWriteErrorHidesDependencyMessage(t *testing.T) {
	SetDebug(false)
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp: refused"), "load invoice"))

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Message != "dependency unavailable" {
		t.Fatalf("expected generic dependency message, got %q", body.Message)
	}
}
