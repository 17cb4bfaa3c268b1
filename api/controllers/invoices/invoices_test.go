package invoices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

type stubInvoicesService struct {
	create func(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	get    func(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

func (s *stubInvoicesService) CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	if s.create != nil {
		return s.create(ctx, orderID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "create not stubbed")
}

func (s *stubInvoicesService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
}

func TestCreateReturnsInvoice(t *testing.T) {
	orderID := uuid.New()
	invoiceID := uuid.New()
	svc := &stubInvoicesService{
		create: func(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
			if id != orderID {
				t.Fatalf("unexpected order id %s", id)
			}
			return &models.Invoice{
				ID:            invoiceID,
				OrderID:       orderID,
				Number:        "INV-20261015-00001",
				Total:         decimal.NewFromInt(2200),
				BalanceDue:    decimal.NewFromInt(2200),
				Currency:      enums.CurrencyKES,
				PaymentStatus: enums.InvoicePending,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{"orderId":"`+orderID.String()+`"}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			InvoiceID uuid.UUID `json:"invoiceId"`
			Invoice   struct {
				Number        string                     `json:"invoiceNumber"`
				BalanceDue    decimal.Decimal            `json:"balanceDue"`
				PaymentStatus enums.InvoicePaymentStatus `json:"paymentStatus"`
			} `json:"invoice"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.InvoiceID != invoiceID || envelope.Data.Invoice.Number != "INV-20261015-00001" {
		t.Fatalf("unexpected invoice in response")
	}
	if !envelope.Data.Invoice.BalanceDue.Equal(decimal.NewFromInt(2200)) || envelope.Data.Invoice.PaymentStatus != enums.InvoicePending {
		t.Fatalf("unexpected balance or status")
	}
}

func TestCreateConflictWhenInvoiced(t *testing.T) {
	svc := &stubInvoicesService{
		create: func(context.Context, uuid.UUID) (*models.Invoice, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an invoice")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{"orderId":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCreateRequiresOrderID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Create(&stubInvoicesService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetInvoice(t *testing.T) {
	invoiceID := uuid.New()
	svc := &stubInvoicesService{
		get: func(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
			return &models.Invoice{ID: id, PaymentStatus: enums.InvoicePaid}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+invoiceID.String(), nil)
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("invoiceId", invoiceID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))

	resp := httptest.NewRecorder()
	Get(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Invoice struct {
				ID            uuid.UUID                  `json:"id"`
				PaymentStatus enums.InvoicePaymentStatus `json:"paymentStatus"`
			} `json:"invoice"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Invoice.ID != invoiceID || envelope.Data.Invoice.PaymentStatus != enums.InvoicePaid {
		t.Fatalf("unexpected invoice %+v", envelope.Data.Invoice)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	invoiceID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+invoiceID.String(), nil)
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("invoiceId", invoiceID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))

	resp := httptest.NewRecorder()
	Get(&stubInvoicesService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
