package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

// QueryMpesaStatus asks Daraja for the state of an STK push. id may be a
// payment id or an invoice id; the latter resolves to the invoice's most
// recent mpesa_stk payment. A reported success runs the normal settlement.
func (s *Service) QueryMpesaStatus(ctx context.Context, id uuid.UUID) (*StatusResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment or invoice id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		payment, err = s.repo.FindLatestForInvoice(ctx, id, enums.PaymentMethodMpesaSTK)
	}
	if err != nil {
		return nil, lookupError(err, "payment not found", "load payment")
	}
	if payment.Method != enums.PaymentMethodMpesaSTK {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment is not an mpesa_stk payment")
	}
	if payment.CheckoutRequestID == nil || *payment.CheckoutRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment has no checkoutRequestId")
	}
	if payment.Status == enums.PaymentStatusSuccess {
		return statusOf(payment), nil
	}
	if s.mpesa == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa is not configured")
	}

	ctx = s.withLogFields(ctx, map[string]any{
		"event":               "payments.mpesa_status",
		"payment_id":          payment.ID.String(),
		"checkout_request_id": *payment.CheckoutRequestID,
	})
	resp, err := s.mpesa.QueryStatus(ctx, *payment.CheckoutRequestID)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Pending():
		result := statusOf(payment)
		result.ResultDesc = resp.ResultDesc
		return result, nil
	case resp.Succeeded():
		settlement, err := s.ApplySuccessfulPayment(ctx, SuccessInput{
			PaymentID:  payment.ID,
			ResultCode: resp.ResultCode,
			ResultDesc: resp.ResultDesc,
		})
		if err != nil {
			return nil, err
		}
		return statusOf(settlement.Payment), nil
	}

	if _, err := s.markFailed(ctx, payment.ID, resp.ResultCode, resp.ResultDesc, nil); err != nil {
		return nil, err
	}
	result := statusOf(payment)
	result.Status = enums.PaymentStatusFailed
	result.ResultCode = resp.ResultCode
	result.ResultDesc = resp.ResultDesc
	return result, nil
}

// StalePendingSTK lists mpesa_stk payments still PENDING after staleAfter,
// ignoring anything older than maxAge.
func (s *Service) StalePendingSTK(ctx context.Context, staleAfter, maxAge time.Duration, limit int) ([]models.Payment, error) {
	now := s.now().UTC()
	rows, err := s.repo.ListStalePending(ctx, enums.PaymentMethodMpesaSTK, now.Add(-staleAfter), now.Add(-maxAge), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payments")
	}
	return rows, nil
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "payment not found", "load payment")
	}
	return payment, nil
}

func statusOf(payment *models.Payment) *StatusResult {
	result := &StatusResult{
		PaymentID: payment.ID,
		InvoiceID: payment.InvoiceID,
		Status:    payment.Status,
	}
	if payment.ResultCode != nil {
		result.ResultCode = *payment.ResultCode
	}
	if payment.ResultDesc != nil {
		result.ResultDesc = *payment.ResultDesc
	}
	return result
}
