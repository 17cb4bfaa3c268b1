package receipts

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
	CreateForInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
}

type createReceiptRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required,uuid"`
}

// Create issues the receipt for a paid invoice. A second request for the
// same invoice is a conflict.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipts service unavailable"))
			return
		}

		var payload createReceiptRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := dto.ParseUUID(payload.InvoiceID, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.CreateForInvoice(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"receiptId": receipt.ID,
			"receipt":   dto.Receipt(receipt),
		})
	}
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipts service unavailable"))
			return
		}

		receiptID, err := dto.ParseUUIDParam(r, "receiptId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Get(r.Context(), receiptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"receipt": dto.Receipt(receipt)})
	}
}
