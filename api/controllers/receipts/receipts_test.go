package receipts

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

type stubReceiptsService struct {
	create func(ctx context.Context, invoiceID uuid.UUID) (*models.Receipt, error)
	get    func(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
}

func (s *stubReceiptsService) CreateForInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Receipt, error) {
	if s.create != nil {
		return s.create(ctx, invoiceID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "create not stubbed")
}

func (s *stubReceiptsService) Get(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
}

func postReceipt(t *testing.T, svc Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)
	return resp
}

func TestCreateReceiptForPaidInvoice(t *testing.T) {
	invoiceID := uuid.New()
	receiptID := uuid.New()
	svc := &stubReceiptsService{
		create: func(_ context.Context, id uuid.UUID) (*models.Receipt, error) {
			if id != invoiceID {
				t.Fatalf("unexpected invoice id %s", id)
			}
			return &models.Receipt{
				ID:         receiptID,
				InvoiceID:  invoiceID,
				Number:     "RCT-20261015-00001",
				AmountPaid: decimal.NewFromInt(2200),
				Method:     enums.PaymentMethodCash,
			}, nil
		},
	}

	resp := postReceipt(t, svc, `{"invoiceId":"`+invoiceID.String()+`"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			ReceiptID uuid.UUID `json:"receiptId"`
			Receipt   struct {
				InvoiceID  uuid.UUID           `json:"invoiceId"`
				Number     string              `json:"receiptNumber"`
				AmountPaid decimal.Decimal     `json:"amountPaid"`
				Method     enums.PaymentMethod `json:"method"`
			} `json:"receipt"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Success || envelope.Data.ReceiptID != receiptID {
		t.Fatalf("unexpected receipt id")
	}
	if envelope.Data.Receipt.InvoiceID != invoiceID || envelope.Data.Receipt.Number != "RCT-20261015-00001" {
		t.Fatalf("unexpected receipt %+v", envelope.Data.Receipt)
	}
	if !envelope.Data.Receipt.AmountPaid.Equal(decimal.NewFromInt(2200)) || envelope.Data.Receipt.Method != enums.PaymentMethodCash {
		t.Fatalf("unexpected amount or method")
	}
}

func TestCreateReceiptErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"already issued", pkgerrors.New(pkgerrors.CodeConflict, "receipt already exists for invoice"), http.StatusConflict},
		{"unpaid invoice", pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is not paid"), http.StatusUnprocessableEntity},
		{"missing invoice", pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubReceiptsService{
				create: func(context.Context, uuid.UUID) (*models.Receipt, error) { return nil, tc.err },
			}
			resp := postReceipt(t, svc, `{"invoiceId":"`+uuid.NewString()+`"}`)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestCreateReceiptRejectsBadInvoiceID(t *testing.T) {
	resp := postReceipt(t, &stubReceiptsService{}, `{"invoiceId":"not-a-uuid"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetReceipt(t *testing.T) {
	receiptID := uuid.New()
	svc := &stubReceiptsService{
		get: func(_ context.Context, id uuid.UUID) (*models.Receipt, error) {
			return &models.Receipt{ID: id, Number: "RCT-20261015-00002"}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/receipts/"+receiptID.String(), nil)
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("receiptId", receiptID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))

	resp := httptest.NewRecorder()
	Get(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Receipt struct {
				ID     uuid.UUID `json:"id"`
				Number string    `json:"receiptNumber"`
			} `json:"receipt"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Receipt.ID != receiptID || envelope.Data.Receipt.Number != "RCT-20261015-00002" {
		t.Fatalf("unexpected receipt %+v", envelope.Data.Receipt)
	}
}
