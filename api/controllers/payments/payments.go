package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/api/controllers/dto"
	"github.com/kicksnairobi/footwear-backend/api/middleware"
	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/api/validators"
	internalpayments "github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

// Service is the payment surface the HTTP layer depends on.
type Service interface {
	PayInvoice(ctx context.Context, input internalpayments.PayInvoiceInput) (*internalpayments.PayInvoiceResult, error)
	MarkCashCollected(ctx context.Context, paymentID, collectedBy uuid.UUID) (*internalpayments.Settlement, error)
	QueryMpesaStatus(ctx context.Context, id uuid.UUID) (*internalpayments.StatusResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

type payInvoiceRequest struct {
	InvoiceID   string           `json:"invoiceId" validate:"required,uuid"`
	Method      string           `json:"method" validate:"required,oneof=mpesa_stk paystack_card cash post_to_bill cod"`
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	PayerPhone  string           `json:"payerPhone" validate:"omitempty,ke_phone"`
	PayerEmail  string           `json:"payerEmail" validate:"omitempty,email"`
	CallbackURL string           `json:"callbackUrl" validate:"omitempty,url"`
}

type payInvoiceResponse struct {
	PaymentID         uuid.UUID           `json:"paymentId"`
	InvoiceID         uuid.UUID           `json:"invoiceId"`
	Method            enums.PaymentMethod `json:"method"`
	Amount            decimal.Decimal     `json:"amount"`
	Status            enums.PaymentStatus `json:"status"`
	CheckoutRequestID string              `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string              `json:"merchantRequestId,omitempty"`
	CustomerMessage   string              `json:"customerMessage,omitempty"`
	AuthorizationURL  string              `json:"authorizationUrl,omitempty"`
	AccessCode        string              `json:"accessCode,omitempty"`
	Reference         string              `json:"reference,omitempty"`
	ReceiptID         *uuid.UUID          `json:"receiptId,omitempty"`
	ReceiptNumber     string              `json:"receiptNumber,omitempty"`
}

type settlementResponse struct {
	PaymentID uuid.UUID           `json:"paymentId"`
	Status    enums.PaymentStatus `json:"status"`
	Settled   bool                `json:"settled"`
	ReceiptID *uuid.UUID          `json:"receiptId,omitempty"`
}

type statusResponse struct {
	PaymentID  uuid.UUID           `json:"paymentId"`
	InvoiceID  uuid.UUID           `json:"invoiceId"`
	Status     enums.PaymentStatus `json:"status"`
	ResultCode string              `json:"resultCode,omitempty"`
	ResultDesc string              `json:"resultDesc,omitempty"`
}

// PayInvoice starts a collection attempt with the requested method.
func PayInvoice(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		actorID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := dto.ParseUUID(payload.InvoiceID, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PayInvoice(r.Context(), internalpayments.PayInvoiceInput{
			InvoiceID:     invoiceID,
			Method:        enums.PaymentMethod(payload.Method),
			Amount:        payload.Amount,
			PayerPhone:    strings.TrimSpace(payload.PayerPhone),
			PayerEmail:    strings.TrimSpace(payload.PayerEmail),
			CallbackURL:   strings.TrimSpace(payload.CallbackURL),
			RequestOrigin: requestOrigin(r),
			ActorID:       &actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := payInvoiceResponse{
			PaymentID:         result.Payment.ID,
			InvoiceID:         result.Payment.InvoiceID,
			Method:            result.Payment.Method,
			Amount:            result.Payment.Amount,
			Status:            result.Payment.Status,
			CheckoutRequestID: result.CheckoutRequestID,
			MerchantRequestID: result.MerchantRequestID,
			CustomerMessage:   result.CustomerMessage,
			AuthorizationURL:  result.AuthorizationURL,
			AccessCode:        result.AccessCode,
			Reference:         result.Reference,
		}
		if result.Receipt != nil {
			resp.ReceiptID = &result.Receipt.ID
			resp.ReceiptNumber = result.Receipt.Number
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// MarkCash settles an offline payment after staff collect the money.
func MarkCash(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		actorID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := dto.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.MarkCashCollected(r.Context(), paymentID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := settlementResponse{
			PaymentID: paymentID,
			Settled:   settlement.Settled,
		}
		if settlement.Payment != nil {
			resp.Status = settlement.Payment.Status
		}
		if settlement.Receipt != nil {
			resp.ReceiptID = &settlement.Receipt.ID
		}
		responses.WriteSuccess(w, resp)
	}
}

// MpesaStatus polls Daraja for a pending STK push. The path id may be a
// payment id or an invoice id.
func MpesaStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		id, err := dto.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.QueryMpesaStatus(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statusResponse{
			PaymentID:  result.PaymentID,
			InvoiceID:  result.InvoiceID,
			Status:     result.Status,
			ResultCode: result.ResultCode,
			ResultDesc: result.ResultDesc,
		})
	}
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		paymentID, err := dto.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"payment": dto.Payment(payment)})
	}
}

// requestOrigin is the public scheme and host the request arrived on,
// honouring the proxy headers set by the load balancer.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if host == "" {
		return ""
	}
	return scheme + "://" + host
}
