package payments

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/mpesa"
	"github.com/kicksnairobi/footwear-backend/pkg/paystack"
)

// HandleMpesaCallback resolves a Daraja STK callback to its payment and
// settles or fails it. Redeliveries for a SUCCESS payment are no-ops.
func (s *Service) HandleMpesaCallback(ctx context.Context, raw []byte) (CallbackOutcome, error) {
	result, err := mpesa.ParseCallback(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mpesa callback payload")
	}
	ctx = s.withLogFields(ctx, map[string]any{
		"event":               "webhooks.mpesa",
		"checkout_request_id": result.CheckoutRequestID,
		"result_code":         result.ResultCode,
	})

	payment, err := s.repo.FindByCheckoutRequestID(ctx, result.CheckoutRequestID)
	if err != nil {
		return "", callbackLookupError(err)
	}
	if payment.Status == enums.PaymentStatusSuccess {
		if err := s.keepRawCallback(ctx, payment.ID, raw); err != nil {
			return "", err
		}
		s.metrics.Inc(string(payment.Method), "duplicate")
		s.logInfo(ctx, "mpesa callback for settled payment ignored")
		return OutcomeDuplicate, nil
	}

	if !result.Succeeded() {
		if _, err := s.markFailed(ctx, payment.ID, strconv.Itoa(result.ResultCode), result.ResultDesc, raw); err != nil {
			return "", err
		}
		s.logInfo(ctx, "mpesa payment failed: "+result.ResultDesc)
		return OutcomeFailed, nil
	}

	input := SuccessInput{
		PaymentID:     payment.ID,
		ResultCode:    strconv.Itoa(result.ResultCode),
		ResultDesc:    result.ResultDesc,
		ReceiptNumber: result.ReceiptNumber,
		RawCallback:   raw,
	}
	// STK charges whole shillings, so the push asked for the ceiling
	if result.Amount != nil && !result.Amount.Equal(payment.Amount.Ceil()) {
		s.logWarn(s.withLogFields(ctx, map[string]any{
			"expected_amount": payment.Amount.StringFixed(2),
			"callback_amount": result.Amount.String(),
		}), "mpesa callback amount differs from payment amount")
		if result.Amount.LessThan(payment.Amount) {
			input.Collected = result.Amount
		}
	}
	settlement, err := s.ApplySuccessfulPayment(ctx, input)
	if err != nil {
		return "", err
	}
	return settlementOutcome(settlement), nil
}

// HandlePaystackWebhook resolves a Paystack event by reference. Events that
// say nothing final about the charge are ignored.
func (s *Service) HandlePaystackWebhook(ctx context.Context, raw []byte) (CallbackOutcome, error) {
	result, err := paystack.ParseWebhook(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid paystack webhook payload")
	}
	ctx = s.withLogFields(ctx, map[string]any{
		"event":     "webhooks.paystack",
		"reference": result.Reference,
		"type":      result.Event,
	})

	payment, err := s.repo.FindByPaystackReference(ctx, result.Reference)
	if err != nil {
		return "", callbackLookupError(err)
	}
	if payment.Status == enums.PaymentStatusSuccess {
		if err := s.keepRawCallback(ctx, payment.ID, raw); err != nil {
			return "", err
		}
		s.metrics.Inc(string(payment.Method), "duplicate")
		s.logInfo(ctx, "paystack event for settled payment ignored")
		return OutcomeDuplicate, nil
	}
	if !result.Terminal() {
		if err := s.keepRawCallback(ctx, payment.ID, raw); err != nil {
			return "", err
		}
		s.logInfo(ctx, "non-terminal paystack event ignored")
		return OutcomeIgnored, nil
	}

	if !result.Success {
		if _, err := s.markFailed(ctx, payment.ID, result.Status, result.Message, raw); err != nil {
			return "", err
		}
		return OutcomeFailed, nil
	}

	input := SuccessInput{
		PaymentID:   payment.ID,
		ResultCode:  result.Status,
		ResultDesc:  result.Message,
		RawCallback: raw,
	}
	if result.Amount != nil && !result.Amount.Equal(payment.Amount.Round(2)) {
		s.logWarn(s.withLogFields(ctx, map[string]any{
			"expected_amount": payment.Amount.StringFixed(2),
			"webhook_amount":  result.Amount.StringFixed(2),
		}), "paystack amount differs from payment amount")
		if result.Amount.LessThan(payment.Amount) {
			input.Collected = result.Amount
		}
	}
	settlement, err := s.ApplySuccessfulPayment(ctx, input)
	if err != nil {
		return "", err
	}
	return settlementOutcome(settlement), nil
}

func settlementOutcome(settlement *Settlement) CallbackOutcome {
	switch {
	case settlement.Settled:
		return OutcomeSettled
	case settlement.Underpaid:
		return OutcomeUnderpaid
	}
	return OutcomeDuplicate
}

// keepRawCallback stores a delivery that does not change the payment, so
// the last processor payload is always on the row.
func (s *Service) keepRawCallback(ctx context.Context, paymentID uuid.UUID, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	if err := s.repo.StoreRawCallback(ctx, paymentID, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store raw callback")
	}
	return nil
}

func callbackLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("payment")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
}
