// Package invoices issues the billable snapshot of an order.
package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/internal/events"
	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox/payloads"
)

// ErrNotPending is returned when a paid transition targets a settled invoice.
var ErrNotPending = errors.New("invoice is not pending")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type numberSource interface {
	Invoice(ctx context.Context) string
}

// ServiceParams wires the invoice service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Numbers   numberSource
	Publisher events.Publisher
	Logger    *logger.Logger
}

type Service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	numbers   numberSource
	publisher events.Publisher
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
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
		tx:        params.Tx,
		outbox:    params.Outbox,
		numbers:   params.Numbers,
		publisher: publisher,
		logg:      params.Logger,
	}, nil
}

// Issue creates the invoice for order inside tx, links it onto the order and
// queues invoice.created. The order must not already carry an invoice.
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.InvoiceID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an invoice").
			WithDetails(map[string]any{"invoiceId": order.InvoiceID.String()})
	}
	repo := s.repo.WithTx(tx)
	invoice := Build(order, s.numbers.Invoice(ctx))
	if err := repo.Create(ctx, &invoice); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice already exists for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	if err := repo.AttachToOrder(ctx, order.ID, invoice.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link invoice to order")
	}
	order.InvoiceID = &invoice.ID

	event := outbox.DomainEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Data:          CreatedPayload(&invoice),
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue invoice event")
	}
	return &invoice, nil
}

// CreateForOrder issues an invoice for an existing order that has none.
func (s *Service) CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is cancelled")
		}
		issued, err := s.Issue(ctx, tx, order)
		if err != nil {
			return err
		}
		invoice = issued
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
			"event":      "invoices.create",
			"invoice_id": invoice.ID.String(),
			"number":     invoice.Number,
		})
		s.logg.Info(logCtx, "invoice created")
	}
	s.publisher.Publish(ctx, string(enums.EventInvoiceCreated), CreatedPayload(invoice))
	return invoice, nil
}

// CancelForOrder voids the order's unpaid invoice inside tx.
func (s *Service) CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if _, err := s.repo.WithTx(tx).CancelPendingByOrder(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel invoice")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("invoice")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

// CreatedPayload is shared by the outbox row and the realtime event.
func CreatedPayload(invoice *models.Invoice) payloads.InvoiceCreatedEvent {
	return payloads.InvoiceCreatedEvent{
		InvoiceID:  invoice.ID,
		OrderID:    invoice.OrderID,
		Number:     invoice.Number,
		Total:      invoice.Total,
		BalanceDue: invoice.BalanceDue,
	}
}
