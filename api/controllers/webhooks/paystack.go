package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/internal/webhooks"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/paystack"
)

const paystackSignatureHeader = "x-paystack-signature"

type PaystackWebhookService interface {
	HandlePaystackWebhook(ctx context.Context, raw []byte) (payments.CallbackOutcome, error)
}

type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// PaystackWebhook receives Paystack events. The body must carry a valid
// HMAC-SHA512 signature under the account secret key.
func PaystackWebhook(svc PaystackWebhookService, verifier SignatureVerifier, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paystack client unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(paystackSignatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "paystack signature missing"))
			return
		}
		if !verifier.VerifySignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "paystack signature invalid"))
			return
		}

		event, err := paystack.ParseWebhook(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid paystack webhook payload"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"paystack_event": event.Event,
				"reference":      event.Reference,
			})
		}

		deliveryID := webhooks.DeliveryID(event.Reference, event.Event)
		if duplicate := markDelivery(ctx, guard, deliveryID, logg); duplicate {
			if logg != nil {
				logg.Info(ctx, "webhooks.paystack.redelivery_ignored")
			}
			responses.WriteSuccess(w, map[string]any{"outcome": payments.OutcomeDuplicate})
			return
		}

		outcome, err := svc.HandlePaystackWebhook(ctx, payload)
		if err != nil {
			releaseDelivery(ctx, guard, deliveryID, logg)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "webhooks.paystack.processed")
		}
		responses.WriteSuccess(w, map[string]any{"outcome": outcome})
	}
}
