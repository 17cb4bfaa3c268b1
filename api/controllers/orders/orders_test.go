package orders

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

	"github.com/kicksnairobi/footwear-backend/api/middleware"
	internalorders "github.com/kicksnairobi/footwear-backend/internal/orders"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

type stubOrdersService struct {
	create       func(ctx context.Context, input internalorders.CreateInput) (*internalorders.CreateResult, error)
	get          func(ctx context.Context, id uuid.UUID, viewer internalorders.Actor) (*internalorders.OrderDetail, error)
	updateStatus func(ctx context.Context, input internalorders.StatusInput) error
}

func (s *stubOrdersService) CreateFromCart(ctx context.Context, input internalorders.CreateInput) (*internalorders.CreateResult, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "create not stubbed")
}

func (s *stubOrdersService) GetOrder(ctx context.Context, id uuid.UUID, viewer internalorders.Actor) (*internalorders.OrderDetail, error) {
	if s.get != nil {
		return s.get(ctx, id, viewer)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, input internalorders.StatusInput) error {
	if s.updateStatus != nil {
		return s.updateStatus(ctx, input)
	}
	return nil
}

func withActor(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{UserID: userID.String(), Role: role}))
}

func withOrderID(req *http.Request, orderID uuid.UUID) *http.Request {
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
}

func TestCreateReturnsOrderID(t *testing.T) {
	customerID := uuid.New()
	cartID := uuid.New()
	orderID := uuid.New()
	invoiceID := uuid.New()
	pricing := types.OrderPricing{Subtotal: decimal.NewFromInt(2000), PackagingFee: decimal.NewFromInt(200)}
	pricing.ComputeTotal()

	svc := &stubOrdersService{
		create: func(_ context.Context, input internalorders.CreateInput) (*internalorders.CreateResult, error) {
			if input.CustomerID != customerID {
				t.Fatalf("unexpected customer id %s", input.CustomerID)
			}
			if input.CartID == nil || *input.CartID != cartID {
				t.Fatalf("cart id not forwarded")
			}
			if input.FulfillmentType != enums.FulfillmentPickup {
				t.Fatalf("unexpected fulfillment %s", input.FulfillmentType)
			}
			if input.CouponCode != "WELCOME10" {
				t.Fatalf("unexpected coupon %q", input.CouponCode)
			}
			return &internalorders.CreateResult{
				Order: &models.Order{ID: orderID, Pricing: pricing, Status: enums.OrderStatusPlaced},
				Invoice: &models.Invoice{
					ID:            invoiceID,
					OrderID:       orderID,
					Number:        "INV-20261015-00001",
					Total:         pricing.Total,
					BalanceDue:    pricing.Total,
					PaymentStatus: enums.InvoicePending,
				},
				CouponApplied: true,
			}, nil
		},
	}

	body := `{"cartId":"` + cartID.String() + `","fulfillmentType":"pickup","couponCode":"WELCOME10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withActor(req, customerID, enums.RoleCustomer)

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID       uuid.UUID `json:"orderId"`
			InvoiceID     uuid.UUID `json:"invoiceId"`
			InvoiceNumber string    `json:"invoiceNumber"`
			CouponApplied bool      `json:"couponApplied"`
			Pricing       struct {
				Total decimal.Decimal `json:"total"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Success || envelope.Data.OrderID != orderID {
		t.Fatalf("unexpected order id in response")
	}
	if envelope.Data.InvoiceID != invoiceID || envelope.Data.InvoiceNumber != "INV-20261015-00001" {
		t.Fatalf("invoice not surfaced")
	}
	if !envelope.Data.CouponApplied || !envelope.Data.Pricing.Total.Equal(decimal.NewFromInt(2200)) {
		t.Fatalf("unexpected pricing or coupon flag")
	}
}

func TestCreateRequiresActor(t *testing.T) {
	svc := &stubOrdersService{
		create: func(context.Context, internalorders.CreateInput) (*internalorders.CreateResult, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"fulfillmentType":"pickup"}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	cases := map[string]string{
		"bad fulfillment": `{"fulfillmentType":"drone"}`,
		"bad cart id":     `{"fulfillmentType":"pickup","cartId":"nope"}`,
		"unknown field":   `{"fulfillmentType":"pickup","tip":100}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req = withActor(req, uuid.New(), enums.RoleCustomer)

			resp := httptest.NewRecorder()
			Create(&stubOrdersService{}, nil).ServeHTTP(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
}

func TestGetReturnsOrderWithInvoice(t *testing.T) {
	viewerID := uuid.New()
	orderID := uuid.New()
	invoiceID := uuid.New()
	svc := &stubOrdersService{
		get: func(_ context.Context, id uuid.UUID, viewer internalorders.Actor) (*internalorders.OrderDetail, error) {
			if id != orderID || viewer.UserID != viewerID || viewer.Role != enums.RoleCustomer {
				t.Fatalf("unexpected lookup %s by %s", id, viewer.UserID)
			}
			return &internalorders.OrderDetail{
				Order:   &models.Order{ID: orderID, CustomerID: viewerID, Status: enums.OrderStatusPlaced},
				Invoice: &models.Invoice{ID: invoiceID, OrderID: orderID, PaymentStatus: enums.InvoicePending},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withOrderID(req, orderID)
	req = withActor(req, viewerID, enums.RoleCustomer)

	resp := httptest.NewRecorder()
	Get(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Order struct {
				ID      uuid.UUID `json:"id"`
				Invoice *struct {
					ID uuid.UUID `json:"id"`
				} `json:"invoice"`
				Receipt *struct{} `json:"receipt"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Order.ID != orderID {
		t.Fatalf("unexpected order id")
	}
	if envelope.Data.Order.Invoice == nil || envelope.Data.Order.Invoice.ID != invoiceID {
		t.Fatalf("invoice not populated")
	}
	if envelope.Data.Order.Receipt != nil {
		t.Fatalf("unpaid order must not carry a receipt")
	}
}

func TestGetNotFound(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withOrderID(req, orderID)
	req = withActor(req, uuid.New(), enums.RoleCustomer)

	resp := httptest.NewRecorder()
	Get(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	staffID := uuid.New()
	orderID := uuid.New()
	called := false
	svc := &stubOrdersService{
		updateStatus: func(_ context.Context, input internalorders.StatusInput) error {
			if input.OrderID != orderID || input.Status != enums.OrderStatusCompleted {
				t.Fatalf("unexpected transition %s -> %s", input.OrderID, input.Status)
			}
			if input.Actor.UserID != staffID || input.Actor.Role != enums.RoleStaff {
				t.Fatalf("actor not forwarded")
			}
			called = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"COMPLETED"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderID(req, orderID)
	req = withActor(req, staffID, enums.RoleStaff)

	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatalf("service not invoked")
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"LOST"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderID(req, orderID)
	req = withActor(req, uuid.New(), enums.RoleStaff)

	resp := httptest.NewRecorder()
	UpdateStatus(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
