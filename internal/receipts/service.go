// Package receipts issues proof of settlement, at most once per invoice.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/internal/events"
	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox/payloads"
)

// InvoiceConstraint is the unique constraint guarding one receipt per invoice.
const InvoiceConstraint = "receipts_invoice_id_key"

// ErrAlreadyIssued reports a receipt insert that lost the uniqueness race.
var ErrAlreadyIssued = errors.New("receipt already issued for invoice")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type numberSource interface {
	Receipt(ctx context.Context) string
}

type ServiceParams struct {
	Repo      Repository
	Invoices  invoices.Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Numbers   numberSource
	Publisher events.Publisher
	Logger    *logger.Logger
}

type Service struct {
	repo      Repository
	invoices  invoices.Repository
	tx        txRunner
	outbox    outboxPublisher
	numbers   numberSource
	publisher events.Publisher
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("number source required")
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:      params.Repo,
		invoices:  params.Invoices,
		tx:        params.Tx,
		outbox:    params.Outbox,
		numbers:   params.Numbers,
		publisher: publisher,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Issue records the receipt for a settled invoice inside tx and links it onto
// the invoice and order. A second receipt for the same invoice returns
// ErrAlreadyIssued.
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, payment *models.Payment) (*models.Receipt, error) {
	if invoice == nil || payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice and payment required")
	}
	paymentID := payment.ID
	receipt := &models.Receipt{
		ID:         uuid.New(),
		OrderID:    invoice.OrderID,
		InvoiceID:  invoice.ID,
		PaymentID:  &paymentID,
		Number:     s.numbers.Receipt(ctx),
		AmountPaid: payment.Amount,
		Method:     payment.Method,
		IssuedAt:   s.now().UTC(),
	}
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, receipt); err != nil {
		if db.IsUniqueViolation(err, InvoiceConstraint) || db.IsUniqueViolation(err, "receipts.invoice_id") {
			return nil, ErrAlreadyIssued
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create receipt")
	}
	if err := s.invoices.WithTx(tx).SetReceipt(ctx, invoice.ID, receipt.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link receipt to invoice")
	}
	if err := repo.LinkOrder(ctx, invoice.OrderID, receipt.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link receipt to order")
	}
	invoice.ReceiptID = &receipt.ID

	event := outbox.DomainEvent{
		EventType:     enums.EventReceiptCreated,
		AggregateType: enums.AggregateReceipt,
		AggregateID:   receipt.ID,
		Data:          CreatedPayload(receipt),
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue receipt event")
	}
	return receipt, nil
}

// CreateForInvoice issues the receipt for a PAID invoice that has none yet,
// attributing it to the latest successful payment.
func (s *Service) CreateForInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Receipt, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoiceId is required")
	}
	var receipt *models.Receipt
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invoice, err := s.invoices.WithTx(tx).FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("invoice")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice.PaymentStatus != enums.InvoicePaid {
			return pkgerrors.New(pkgerrors.CodeConflict, "invoice is not paid")
		}
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByInvoiceID(ctx, invoice.ID)
		switch {
		case err == nil:
			return alreadyExists(existing.ID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
		}
		payment, err := repo.FindLatestSuccessfulPayment(ctx, invoice.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeConflict, "invoice has no successful payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		issued, err := s.Issue(ctx, tx, invoice, payment)
		if errors.Is(err, ErrAlreadyIssued) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "receipt already exists")
		}
		if err != nil {
			return err
		}
		receipt = issued
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event":      "receipts.create",
			"invoice_id": invoiceID.String(),
			"receipt_id": receipt.ID.String(),
		})
		s.logg.Info(logCtx, "receipt created")
	}
	s.publisher.Publish(ctx, string(enums.EventReceiptCreated), CreatedPayload(receipt))
	return receipt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	receipt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("receipt")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}
	return receipt, nil
}

// CreatedPayload is shared by the outbox row and the realtime event.
func CreatedPayload(receipt *models.Receipt) payloads.ReceiptCreatedEvent {
	return payloads.ReceiptCreatedEvent{
		ReceiptID:  receipt.ID,
		InvoiceID:  receipt.InvoiceID,
		OrderID:    receipt.OrderID,
		Number:     receipt.Number,
		AmountPaid: receipt.AmountPaid,
		Method:     receipt.Method,
		IssuedAt:   receipt.IssuedAt,
	}
}

func alreadyExists(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "receipt already exists").
		WithDetails(map[string]any{"receiptId": id.String()})
}
