package webhooks

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/internal/webhooks"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/mpesa"
)

const maxWebhookBody = 1 << 20

type MpesaCallbackService interface {
	HandleMpesaCallback(ctx context.Context, raw []byte) (payments.CallbackOutcome, error)
}

type DeliveryGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

// MpesaCallback receives Daraja STK results. Exact redeliveries are
// acknowledged without reaching the database; the payment layer still
// treats a SUCCESS payment as settled if the guard is unavailable.
func MpesaCallback(svc MpesaCallbackService, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := mpesa.ParseCallback(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mpesa callback payload"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"checkout_request_id": result.CheckoutRequestID,
				"result_code":         result.ResultCode,
			})
		}

		deliveryID := webhooks.DeliveryID(result.CheckoutRequestID, strconv.Itoa(result.ResultCode))
		if duplicate := markDelivery(ctx, guard, deliveryID, logg); duplicate {
			if logg != nil {
				logg.Info(ctx, "webhooks.mpesa.redelivery_ignored")
			}
			responses.WriteSuccess(w, map[string]any{"outcome": payments.OutcomeDuplicate})
			return
		}

		outcome, err := svc.HandleMpesaCallback(ctx, payload)
		if err != nil {
			releaseDelivery(ctx, guard, deliveryID, logg)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "webhooks.mpesa.processed")
		}
		responses.WriteSuccess(w, map[string]any{"outcome": outcome})
	}
}

// markDelivery returns true only when the guard positively identifies a
// redelivery. Guard errors fall through to normal processing.
func markDelivery(ctx context.Context, guard DeliveryGuard, deliveryID string, logg *logger.Logger) bool {
	if guard == nil || deliveryID == "" {
		return false
	}
	seen, err := guard.CheckAndMark(ctx, deliveryID)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "webhooks.guard_unavailable", err)
		}
		return false
	}
	return seen
}

func releaseDelivery(ctx context.Context, guard DeliveryGuard, deliveryID string, logg *logger.Logger) {
	if guard == nil || deliveryID == "" {
		return
	}
	if err := guard.Delete(ctx, deliveryID); err != nil && logg != nil {
		logg.Error(ctx, "webhooks.guard_release_failed", err)
	}
}
