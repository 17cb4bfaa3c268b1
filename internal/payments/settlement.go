package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/internal/receipts"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox/payloads"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

// settleAttempts bounds retries after losing the receipt uniqueness race.
const settleAttempts = 2

// ApplySuccessfulPayment is the single settlement path. It flips the payment
// to SUCCESS and, when the invoice is still PENDING, marks it PAID, marks the
// order PAID and issues exactly one receipt, all in one transaction with the
// invoice row locked. Replays on a paid invoice return Settled=false.
func (s *Service) ApplySuccessfulPayment(ctx context.Context, input SuccessInput) (*Settlement, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	ctx = s.withLogFields(ctx, map[string]any{"payment_id": input.PaymentID.String()})

	var (
		result *Settlement
		err    error
	)
	for attempt := 0; attempt < settleAttempts; attempt++ {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			payment, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, input.PaymentID)
			if err != nil {
				return lookupError(err, "payment not found", "lock payment")
			}
			settled, err := s.settleInTx(ctx, tx, payment, input)
			if err != nil {
				return err
			}
			result = settled
			return nil
		})
		if !errors.Is(err, receipts.ErrAlreadyIssued) {
			break
		}
		s.logWarn(ctx, "receipt already issued by a concurrent settlement; retrying")
	}
	if errors.Is(err, receipts.ErrAlreadyIssued) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice settled concurrently")
	}
	if err != nil {
		return nil, err
	}
	s.afterSettlement(ctx, result)
	return result, nil
}

// MarkCashCollected settles an offline payment once the money is in hand.
func (s *Service) MarkCashCollected(ctx context.Context, paymentID, collectedBy uuid.UUID) (*Settlement, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "payment not found", "load payment")
	}
	if !payment.Method.IsOffline() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only cash, post_to_bill or cod payments can be marked collected").
			WithDetails(map[string]any{"method": string(payment.Method)})
	}
	if payment.Status == enums.PaymentStatusFailed || payment.Status == enums.PaymentStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment is no longer collectable").
			WithDetails(map[string]any{"status": string(payment.Status)})
	}
	input := SuccessInput{PaymentID: paymentID, ResultDesc: "collected"}
	if collectedBy != uuid.Nil {
		input.RecordedByID = &collectedBy
	}
	return s.ApplySuccessfulPayment(ctx, input)
}

// settleInTx runs inside the caller's transaction. payment must already be
// loaded (and locked where the caller needs it).
func (s *Service) settleInTx(ctx context.Context, tx *gorm.DB, payment *models.Payment, input SuccessInput) (*Settlement, error) {
	invoiceRepo := s.invoices.WithTx(tx)
	invoice, err := invoiceRepo.FindByIDForUpdate(ctx, payment.InvoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice not found", "lock invoice")
	}

	now := s.now().UTC()
	changed := payment.Status != enums.PaymentStatusSuccess
	applySuccess(payment, input, now)
	if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}
	result := &Settlement{Payment: payment, Invoice: invoice, paymentChanged: changed}

	if invoice.PaymentStatus != enums.InvoicePending {
		if changed {
			if err := s.emitPaymentUpdated(ctx, tx, payment, invoice); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	// the money stays recorded but the invoice waits for a full collection
	if payment.Amount.Round(2).LessThan(amountDue(invoice)) {
		result.Underpaid = true
		if changed {
			if err := s.emitPaymentUpdated(ctx, tx, payment, invoice); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	if err := invoiceRepo.MarkPaid(ctx, invoice.ID, now); err != nil {
		if errors.Is(err, invoices.ErrNotPending) {
			return result, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice paid")
	}
	invoice.PaymentStatus = enums.InvoicePaid
	invoice.BalanceDue = decimal.Zero
	invoice.PaidAt = &now

	if err := s.orders.WithTx(tx).UpdatePaymentStatus(ctx, invoice.OrderID, enums.OrderPaymentPaid); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	receipt, err := s.receipts.Issue(ctx, tx, invoice, payment)
	if err != nil {
		return nil, err
	}
	if err := s.emitPaymentUpdated(ctx, tx, payment, invoice); err != nil {
		return nil, err
	}
	result.Settled = true
	result.Receipt = receipt
	return result, nil
}

// markFailed records a definitive failure. A SUCCESS payment is never
// downgraded; the returned bool reports whether the status changed.
func (s *Service) markFailed(ctx context.Context, paymentID uuid.UUID, code, desc string, raw json.RawMessage) (bool, error) {
	var (
		payment *models.Payment
		invoice *models.Invoice
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return lookupError(err, "payment not found", "lock payment")
		}
		payment = locked
		if payment.Status == enums.PaymentStatusSuccess {
			return nil
		}
		changed = payment.Status != enums.PaymentStatusFailed
		payment.Status = enums.PaymentStatusFailed
		if code != "" {
			payment.ResultCode = &code
		}
		if desc != "" {
			payment.ResultDesc = &desc
		}
		if len(raw) > 0 {
			payment.RawCallback = raw
		}
		if err := repo.Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
		}
		if !changed {
			return nil
		}
		loaded, err := s.invoices.WithTx(tx).FindByID(ctx, payment.InvoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		invoice = loaded
		return s.emitPaymentUpdated(ctx, tx, payment, invoice)
	})
	if err != nil {
		return false, err
	}
	if payment.Status == enums.PaymentStatusSuccess {
		s.logWarn(ctx, "failure reported for a settled payment; ignored")
		return false, nil
	}
	if changed {
		s.publisher.Publish(ctx, string(enums.EventPaymentUpdated), paymentPayload(payment, invoice))
		s.metrics.Inc(string(payment.Method), "failed")
	}
	return changed, nil
}

func (s *Service) afterSettlement(ctx context.Context, result *Settlement) {
	payment := result.Payment
	ctx = s.withLogFields(ctx, map[string]any{
		"payment_id": payment.ID.String(),
		"invoice_id": payment.InvoiceID.String(),
		"method":     string(payment.Method),
	})
	if result.paymentChanged || result.Settled {
		s.publisher.Publish(ctx, string(enums.EventPaymentUpdated), paymentPayload(payment, result.Invoice))
	}
	if result.Underpaid {
		s.metrics.Inc(string(payment.Method), "underpaid")
		s.logWarn(s.withLogFields(ctx, map[string]any{
			"event":       "payments.settle.underpaid",
			"amount":      payment.Amount.StringFixed(2),
			"balance_due": amountDue(result.Invoice).StringFixed(2),
		}), "collection is below the balance due; invoice left pending")
		return
	}
	if !result.Settled {
		s.metrics.Inc(string(payment.Method), "duplicate")
		if result.paymentChanged {
			s.logWarn(s.withLogFields(ctx, map[string]any{"event": "payments.settle.duplicate_collection"}),
				"payment collected against an invoice that was already settled")
		} else {
			s.logInfo(s.withLogFields(ctx, map[string]any{"event": "payments.settle.noop"}), "settlement replay ignored")
		}
		return
	}
	s.publisher.Publish(ctx, string(enums.EventReceiptCreated), receipts.CreatedPayload(result.Receipt))
	s.metrics.Inc(string(payment.Method), "settled")
	s.logInfo(s.withLogFields(ctx, map[string]any{
		"event":      "payments.settle.completed",
		"receipt_id": result.Receipt.ID.String(),
		"amount":     payment.Amount.StringFixed(2),
	}), "invoice settled")
}

func (s *Service) emitPaymentUpdated(ctx context.Context, tx *gorm.DB, payment *models.Payment, invoice *models.Invoice) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentUpdated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data:          paymentPayload(payment, invoice),
	}
	if payment.RecordedByID != nil {
		event.Actor = &outbox.ActorRef{UserID: *payment.RecordedByID}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payment event")
	}
	return nil
}

func applySuccess(payment *models.Payment, input SuccessInput, now time.Time) {
	if payment.Status != enums.PaymentStatusSuccess || payment.CompletedAt == nil {
		payment.CompletedAt = &now
	}
	payment.Status = enums.PaymentStatusSuccess
	if input.ResultCode != "" {
		code := input.ResultCode
		payment.ResultCode = &code
	}
	if input.ResultDesc != "" {
		desc := input.ResultDesc
		payment.ResultDesc = &desc
	}
	if len(input.RawCallback) > 0 {
		payment.RawCallback = input.RawCallback
	}
	if input.RecordedByID != nil {
		payment.RecordedByID = input.RecordedByID
	}
	if input.Collected != nil {
		payment.Amount = input.Collected.Round(2)
	}
	if input.ReceiptNumber != "" {
		if payment.ProcessorRefs.Daraja == nil {
			payment.ProcessorRefs.Daraja = &types.DarajaRefs{}
		}
		payment.ProcessorRefs.Daraja.ReceiptNumber = input.ReceiptNumber
	}
}

func paymentPayload(payment *models.Payment, invoice *models.Invoice) payloads.PaymentUpdatedEvent {
	event := payloads.PaymentUpdatedEvent{
		PaymentID: payment.ID,
		InvoiceID: payment.InvoiceID,
		Method:    payment.Method,
		Status:    payment.Status,
		Amount:    payment.Amount,
	}
	if invoice != nil {
		event.OrderID = invoice.OrderID
		event.InvoiceStatus = invoice.PaymentStatus
	}
	if payment.ResultDesc != nil {
		event.ResultDesc = *payment.ResultDesc
	}
	return event
}
