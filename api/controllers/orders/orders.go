package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/api/controllers/dto"
	"github.com/kicksnairobi/footwear-backend/api/middleware"
	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/api/validators"
	internalorders "github.com/kicksnairobi/footwear-backend/internal/orders"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

// Service is the order surface the HTTP layer depends on.
type Service interface {
	CreateFromCart(ctx context.Context, input internalorders.CreateInput) (*internalorders.CreateResult, error)
	GetOrder(ctx context.Context, id uuid.UUID, viewer internalorders.Actor) (*internalorders.OrderDetail, error)
	UpdateStatus(ctx context.Context, input internalorders.StatusInput) error
}

type timingRequest struct {
	Mode         string     `json:"mode" validate:"omitempty,oneof=asap scheduled"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

type paymentPreferenceRequest struct {
	Mode   string  `json:"mode" validate:"omitempty,oneof=pay_now pay_later"`
	Method *string `json:"method" validate:"omitempty,oneof=mpesa_stk paystack_card cash post_to_bill cod"`
}

type createOrderRequest struct {
	CartID              *string                   `json:"cartId"`
	CustomerID          *string                   `json:"customerId"`
	FulfillmentType     string                    `json:"fulfillmentType" validate:"required,oneof=pickup delivery"`
	FulfillmentLocation *string                   `json:"fulfillmentLocation" validate:"omitempty,max=255"`
	Timing              *timingRequest            `json:"timing"`
	AddressID           *string                   `json:"addressId"`
	PaymentPreference   *paymentPreferenceRequest `json:"paymentPreference"`
	PackagingOptionID   *string                   `json:"packagingOptionId"`
	CouponCode          string                    `json:"couponCode" validate:"max=64"`
}

type createOrderResponse struct {
	OrderID              uuid.UUID          `json:"orderId"`
	InvoiceID            *uuid.UUID         `json:"invoiceId,omitempty"`
	InvoiceNumber        string             `json:"invoiceNumber,omitempty"`
	Pricing              types.OrderPricing `json:"pricing"`
	Status               enums.OrderStatus  `json:"status"`
	CouponApplied        bool               `json:"couponApplied"`
	CouponRejectedReason string             `json:"couponRejectedReason,omitempty"`
	Invoice              *dto.InvoiceView   `json:"invoice,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create turns the caller's active cart (or the named cart) into an order
// and its invoice.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(internalorders.Actor{UserID: actorID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateFromCart(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createOrderResponse{
			OrderID:              result.Order.ID,
			Pricing:              result.Order.Pricing,
			Status:               result.Order.Status,
			CouponApplied:        result.CouponApplied,
			CouponRejectedReason: result.CouponRejectedReason,
			Invoice:              dto.Invoice(result.Invoice),
		}
		if result.Invoice != nil {
			resp.InvoiceID = &result.Invoice.ID
			resp.InvoiceNumber = result.Invoice.Number
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// Get returns an order with its invoice and receipt. Customers only see
// their own orders.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := dto.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetOrder(r.Context(), orderID, internalorders.Actor{UserID: actorID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := dto.Order(detail.Order)
		view.Invoice = dto.Invoice(detail.Invoice)
		view.Receipt = dto.Receipt(detail.Receipt)
		responses.WriteSuccess(w, map[string]any{"order": view})
	}
}

// UpdateStatus moves an order through its lifecycle.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := dto.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		input := internalorders.StatusInput{
			OrderID: orderID,
			Status:  status,
			Actor:   internalorders.Actor{UserID: actorID, Role: role},
		}
		if err := svc.UpdateStatus(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func (p createOrderRequest) toInput(actor internalorders.Actor) (internalorders.CreateInput, error) {
	input := internalorders.CreateInput{
		Actor:               actor,
		CustomerID:          actor.UserID,
		FulfillmentType:     enums.FulfillmentType(p.FulfillmentType),
		FulfillmentLocation: trimmedOrNil(p.FulfillmentLocation),
		CouponCode:          p.CouponCode,
	}

	customerID, err := dto.ParseOptionalUUID(p.CustomerID, "customerId")
	if err != nil {
		return input, err
	}
	if customerID != nil {
		input.CustomerID = *customerID
	}
	if input.CartID, err = dto.ParseOptionalUUID(p.CartID, "cartId"); err != nil {
		return input, err
	}
	if input.AddressID, err = dto.ParseOptionalUUID(p.AddressID, "addressId"); err != nil {
		return input, err
	}
	if input.PackagingOptionID, err = dto.ParseOptionalUUID(p.PackagingOptionID, "packagingOptionId"); err != nil {
		return input, err
	}

	if p.Timing != nil {
		input.Timing = types.DeliveryTiming{
			Mode:         enums.TimingMode(p.Timing.Mode),
			ScheduledFor: p.Timing.ScheduledFor,
		}
	}
	if p.PaymentPreference != nil {
		input.PaymentPreference.Mode = enums.PaymentMode(p.PaymentPreference.Mode)
		if p.PaymentPreference.Method != nil {
			method := enums.PaymentMethod(*p.PaymentPreference.Method)
			input.PaymentPreference.Method = &method
		}
	}
	return input, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
