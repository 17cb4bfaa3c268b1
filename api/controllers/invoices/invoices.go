package invoices

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/api/controllers/dto"
	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/api/validators"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

type Service interface {
	CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type createInvoiceRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

// Create issues the invoice for an order that does not have one yet.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		var payload createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := dto.ParseUUID(payload.OrderID, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.CreateForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"invoiceId": invoice.ID,
			"invoice":   dto.Invoice(invoice),
		})
	}
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		invoiceID, err := dto.ParseUUIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"invoice": dto.Invoice(invoice)})
	}
}
