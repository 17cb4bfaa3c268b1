// Package payments collects money against invoices and settles them.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/internal/events"
	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/internal/orders"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/metrics"
	"github.com/kicksnairobi/footwear-backend/pkg/mpesa"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/paystack"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

const (
	stkPushLimit  = 3
	stkPushWindow = time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stkGateway interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
	DefaultCallbackURL() string
}

type cardGateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type receiptIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, payment *models.Payment) (*models.Receipt, error)
}

// ServiceParams wires the payment orchestrator. Mpesa and Paystack may be nil
// when the processor is not configured; those methods then fail with a
// dependency error.
type ServiceParams struct {
	Repo              Repository
	Invoices          invoices.Repository
	Orders            orders.Repository
	Receipts          receiptIssuer
	Mpesa             stkGateway
	Paystack          cardGateway
	Limiter           rateLimiter
	Tx                txRunner
	Outbox            outboxPublisher
	Publisher         events.Publisher
	Metrics           *metrics.SettlementMetrics
	Logger            *logger.Logger
	MpesaCallbackPath string
}

type Service struct {
	repo         Repository
	invoices     invoices.Repository
	orders       orders.Repository
	receipts     receiptIssuer
	mpesa        stkGateway
	paystack     cardGateway
	limiter      rateLimiter
	tx           txRunner
	outbox       outboxPublisher
	publisher    events.Publisher
	metrics      *metrics.SettlementMetrics
	logg         *logger.Logger
	callbackPath string
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Invoices == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Receipts == nil:
		return nil, fmt.Errorf("receipt issuer required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:         params.Repo,
		invoices:     params.Invoices,
		orders:       params.Orders,
		receipts:     params.Receipts,
		mpesa:        params.Mpesa,
		paystack:     params.Paystack,
		limiter:      params.Limiter,
		tx:           params.Tx,
		outbox:       params.Outbox,
		publisher:    publisher,
		metrics:      params.Metrics,
		logg:         params.Logger,
		callbackPath: params.MpesaCallbackPath,
		now:          time.Now,
	}, nil
}

// PayInvoice records a payment attempt and, depending on the method, settles
// it immediately (cash), accepts it for later collection (post_to_bill, cod)
// or hands it to a processor (mpesa_stk, paystack_card).
func (s *Service) PayInvoice(ctx context.Context, input PayInvoiceInput) (*PayInvoiceResult, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoiceId is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"method": string(input.Method)})
	}
	invoice, err := s.invoices.FindByID(ctx, input.InvoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice not found", "load invoice")
	}
	if err := ensurePayable(invoice); err != nil {
		return nil, err
	}
	amount, err := resolveAmount(invoice, input.Amount)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		InvoiceID:    invoice.ID,
		Method:       input.Method,
		Amount:       amount,
		Currency:     enums.CurrencyKES,
		Status:       input.Method.InitialStatus(),
		RecordedByID: input.ActorID,
	}
	ctx = s.withLogFields(ctx, map[string]any{
		"event":      "payments.pay_invoice",
		"payment_id": payment.ID.String(),
		"invoice_id": invoice.ID.String(),
		"method":     string(input.Method),
	})

	switch input.Method {
	case enums.PaymentMethodCash:
		return s.payCash(ctx, payment)
	case enums.PaymentMethodPostToBill, enums.PaymentMethodCOD:
		return s.payDeferred(ctx, payment)
	case enums.PaymentMethodMpesaSTK:
		return s.payMpesa(ctx, payment, input)
	case enums.PaymentMethodPaystackCard:
		return s.payCard(ctx, payment, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
}

func (s *Service) payCash(ctx context.Context, payment *models.Payment) (*PayInvoiceResult, error) {
	var settlement *Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.lockPayable(ctx, tx, payment.InvoiceID); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		result, err := s.settleInTx(ctx, tx, payment, SuccessInput{PaymentID: payment.ID, RecordedByID: payment.RecordedByID})
		if err != nil {
			return err
		}
		settlement = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterSettlement(ctx, settlement)
	return &PayInvoiceResult{Payment: settlement.Payment, Receipt: settlement.Receipt}, nil
}

// payDeferred accepts the obligation without settling the invoice. The
// payment is SUCCESS, the invoice stays PENDING and the order is marked
// PENDING until MarkCashCollected.
func (s *Service) payDeferred(ctx context.Context, payment *models.Payment) (*PayInvoiceResult, error) {
	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockPayable(ctx, tx, payment.InvoiceID)
		if err != nil {
			return err
		}
		invoice = locked
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		if err := s.orders.WithTx(tx).UpdatePaymentStatus(ctx, invoice.OrderID, enums.OrderPaymentPending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
		}
		return s.emitPaymentUpdated(ctx, tx, payment, invoice)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, string(enums.EventPaymentUpdated), paymentPayload(payment, invoice))
	s.metrics.Inc(string(payment.Method), "accepted")
	s.logInfo(ctx, "offline payment accepted; awaiting collection")
	return &PayInvoiceResult{Payment: payment}, nil
}

func (s *Service) payMpesa(ctx context.Context, payment *models.Payment, input PayInvoiceInput) (*PayInvoiceResult, error) {
	phone, err := NormalizePhone(input.PayerPhone)
	if err != nil {
		return nil, err
	}
	if s.mpesa == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa is not configured")
	}
	callback := s.mpesaCallbackURL(input)
	if callback == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mpesa callback url could not be determined")
	}
	if err := s.checkSTKRate(ctx, payment.InvoiceID); err != nil {
		return nil, err
	}

	payment.PayerPhone = &phone
	if err := s.createAttempt(ctx, payment); err != nil {
		return nil, err
	}
	resp, err := s.mpesa.STKPush(ctx, mpesa.STKPushRequest{
		Phone:       phone,
		Amount:      payment.Amount,
		CallbackURL: callback,
	})
	if err != nil {
		return nil, s.failAttempt(ctx, payment, err)
	}

	checkoutID := resp.CheckoutRequestID
	payment.Status = enums.PaymentStatusPending
	payment.CheckoutRequestID = &checkoutID
	payment.ProcessorRefs.Daraja = &types.DarajaRefs{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
	}
	if err := s.markAwaitingProcessor(ctx, payment); err != nil {
		return nil, err
	}
	s.logInfo(s.withLogFields(ctx, map[string]any{"checkout_request_id": checkoutID}), "stk push sent")
	return &PayInvoiceResult{
		Payment:           payment,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

func (s *Service) payCard(ctx context.Context, payment *models.Payment, input PayInvoiceInput) (*PayInvoiceResult, error) {
	email := strings.TrimSpace(input.PayerEmail)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payerEmail is required for card payments")
	}
	if s.paystack == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack is not configured")
	}

	reference := paystack.NewReference()
	payment.PayerEmail = &email
	payment.PaystackReference = &reference
	if err := s.createAttempt(ctx, payment); err != nil {
		return nil, err
	}
	resp, err := s.paystack.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      payment.Amount,
		Currency:    string(enums.CurrencyKES),
		Reference:   reference,
		CallbackURL: strings.TrimSpace(input.CallbackURL),
		Metadata: map[string]string{
			"invoiceId": payment.InvoiceID.String(),
			"paymentId": payment.ID.String(),
		},
	})
	if err != nil {
		return nil, s.failAttempt(ctx, payment, err)
	}

	if resp.Reference != "" && resp.Reference != reference {
		reference = resp.Reference
		payment.PaystackReference = &reference
	}
	payment.Status = enums.PaymentStatusPending
	payment.ProcessorRefs.Paystack = &types.PaystackRefs{
		Reference:        reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
	}
	if err := s.markAwaitingProcessor(ctx, payment); err != nil {
		return nil, err
	}
	s.logInfo(s.withLogFields(ctx, map[string]any{"reference": reference}), "card checkout initialized")
	return &PayInvoiceResult{
		Payment:          payment,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		Reference:        reference,
	}, nil
}

// createAttempt stores the INITIATED payment before the processor is called
// so a crash mid-call still leaves a record.
func (s *Service) createAttempt(ctx context.Context, payment *models.Payment) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.lockPayable(ctx, tx, payment.InvoiceID); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return nil
	})
}

func (s *Service) markAwaitingProcessor(ctx context.Context, payment *models.Payment) error {
	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment refs")
		}
		loaded, err := s.invoices.WithTx(tx).FindByID(ctx, payment.InvoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		invoice = loaded
		if err := s.orders.WithTx(tx).UpdatePaymentStatus(ctx, invoice.OrderID, enums.OrderPaymentPending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
		}
		return s.emitPaymentUpdated(ctx, tx, payment, invoice)
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(ctx, string(enums.EventPaymentUpdated), paymentPayload(payment, invoice))
	return nil
}

// failAttempt persists a processor failure on the payment and returns the
// error surfaced to the caller.
func (s *Service) failAttempt(ctx context.Context, payment *models.Payment, cause error) error {
	desc := cause.Error()
	if typed := pkgerrors.As(cause); typed != nil {
		desc = typed.Message()
		if typed.Code() == pkgerrors.CodeValidation {
			desc = typed.Error()
		}
	}
	if mpesa.IsTimeout(cause) {
		desc = "processor timed out"
	}
	s.logError(ctx, "payments.pay_invoice.processor_failed", cause)

	if _, err := s.markFailed(ctx, payment.ID, "", desc, nil); err != nil {
		s.logError(ctx, "failed to record processor failure", err)
	}
	payment.Status = enums.PaymentStatusFailed
	payment.ResultDesc = &desc

	if pkgerrors.IsCode(cause, pkgerrors.CodeValidation) {
		return cause
	}
	details := map[string]any{"paymentId": payment.ID.String(), "reason": desc}
	if typed := pkgerrors.As(cause); typed != nil {
		if extra, ok := typed.Details().(map[string]any); ok {
			for k, v := range extra {
				details[k] = v
			}
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, cause, "payment processor request failed").WithDetails(details)
}

func (s *Service) checkSTKRate(ctx context.Context, invoiceID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "stk:"+invoiceID.String(), stkPushLimit, stkPushWindow)
	if err != nil {
		s.logWarn(ctx, "stk rate limiter unavailable: "+err.Error())
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many stk push requests for this invoice")
	}
	return nil
}

// mpesaCallbackURL prefers the explicit override, then the host the request
// arrived on, then the configured default.
func (s *Service) mpesaCallbackURL(input PayInvoiceInput) string {
	if override := strings.TrimSpace(input.CallbackURL); override != "" {
		return override
	}
	if origin := strings.TrimRight(strings.TrimSpace(input.RequestOrigin), "/"); origin != "" && s.callbackPath != "" {
		return origin + "/" + strings.TrimLeft(s.callbackPath, "/")
	}
	return s.mpesa.DefaultCallbackURL()
}

func (s *Service) lockPayable(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoices.WithTx(tx).FindByIDForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice not found", "lock invoice")
	}
	if err := ensurePayable(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func ensurePayable(invoice *models.Invoice) error {
	switch invoice.PaymentStatus {
	case enums.InvoicePaid:
		return pkgerrors.New(pkgerrors.CodeConflict, "invoice already paid").
			WithDetails(map[string]any{"invoiceId": invoice.ID.String()})
	case enums.InvoiceCancelled:
		return pkgerrors.New(pkgerrors.CodeConflict, "invoice is cancelled").
			WithDetails(map[string]any{"invoiceId": invoice.ID.String()})
	}
	return nil
}

// resolveAmount defaults to the balance due. Every collection settles the
// whole invoice, so a supplied amount must match it exactly.
func resolveAmount(invoice *models.Invoice, requested *decimal.Decimal) (decimal.Decimal, error) {
	due := amountDue(invoice)
	if requested == nil {
		return due, nil
	}
	amount := requested.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !amount.Equal(due) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must equal the balance due").
			WithDetails(map[string]any{"balanceDue": due.StringFixed(2), "amount": amount.StringFixed(2)})
	}
	return amount, nil
}

// amountDue is the balance still owed, falling back to the total for rows
// written before balance_due was tracked.
func amountDue(invoice *models.Invoice) decimal.Decimal {
	if invoice.BalanceDue.IsPositive() {
		return invoice.BalanceDue.Round(2)
	}
	return invoice.Total.Round(2)
}

func lookupError(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func (s *Service) withLogFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}
