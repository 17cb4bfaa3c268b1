package receipts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/pkg/db/dbtest"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

type sequentialNumbers struct{ n int }

func (s *sequentialNumbers) Receipt(context.Context) string {
	s.n++
	return fmt.Sprintf("RCT-20261015-%05d", s.n)
}

type fixture struct {
	svc     *Service
	conn    *gorm.DB
	order   *models.Order
	invoice *models.Invoice
}

func newFixture(t *testing.T, status enums.InvoicePaymentStatus) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Invoices: invoices.NewRepository(conn),
		Tx:       client,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Numbers:  &sequentialNumbers{},
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }

	total := decimal.NewFromInt(2200)
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      uuid.New(),
		CreatedByID:     uuid.New(),
		FulfillmentType: enums.FulfillmentDelivery,
		Pricing:         types.OrderPricing{Subtotal: total, Total: total},
		Status:          enums.OrderStatusPlaced,
		PaymentStatus:   enums.OrderPaymentPaid,
	}
	require.NoError(t, conn.Create(order).Error)

	balance := total
	if status == enums.InvoicePaid {
		balance = decimal.Zero
	}
	invoice := &models.Invoice{
		ID:            uuid.New(),
		OrderID:       order.ID,
		Number:        "INV-20261015-00001",
		Subtotal:      total,
		Total:         total,
		BalanceDue:    balance,
		Currency:      enums.CurrencyKES,
		PaymentStatus: status,
	}
	require.NoError(t, conn.Create(invoice).Error)
	return &fixture{svc: svc, conn: conn, order: order, invoice: invoice}
}

func (f *fixture) seedPayment(t *testing.T, status enums.PaymentStatus) *models.Payment {
	t.Helper()
	completed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	payment := &models.Payment{
		ID:          uuid.New(),
		InvoiceID:   f.invoice.ID,
		Method:      enums.PaymentMethodCash,
		Amount:      decimal.NewFromInt(2200),
		Currency:    enums.CurrencyKES,
		Status:      status,
		CompletedAt: &completed,
	}
	require.NoError(t, f.conn.Create(payment).Error)
	return payment
}

func TestCreateForInvoiceIssuesAndLinks(t *testing.T) {
	f := newFixture(t, enums.InvoicePaid)
	payment := f.seedPayment(t, enums.PaymentStatusSuccess)

	receipt, err := f.svc.CreateForInvoice(context.Background(), f.invoice.ID)
	require.NoError(t, err)
	require.Equal(t, "RCT-20261015-00001", receipt.Number)
	require.Equal(t, payment.ID, *receipt.PaymentID)
	require.True(t, receipt.AmountPaid.Equal(decimal.NewFromInt(2200)))
	require.Equal(t, enums.PaymentMethodCash, receipt.Method)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.order.ID).Error)
	require.Equal(t, receipt.ID, *order.ReceiptID)

	var invoice models.Invoice
	require.NoError(t, f.conn.First(&invoice, "id = ?", f.invoice.ID).Error)
	require.Equal(t, receipt.ID, *invoice.ReceiptID)

	got, err := f.svc.Get(context.Background(), receipt.ID)
	require.NoError(t, err)
	require.Equal(t, receipt.Number, got.Number)
}

func TestCreateForInvoiceTwiceIsConflict(t *testing.T) {
	f := newFixture(t, enums.InvoicePaid)
	f.seedPayment(t, enums.PaymentStatusSuccess)

	_, err := f.svc.CreateForInvoice(context.Background(), f.invoice.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateForInvoice(context.Background(), f.invoice.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.Receipt{}).Where("invoice_id = ?", f.invoice.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateForInvoiceRequiresPaidInvoice(t *testing.T) {
	f := newFixture(t, enums.InvoicePending)
	f.seedPayment(t, enums.PaymentStatusSuccess)

	_, err := f.svc.CreateForInvoice(context.Background(), f.invoice.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.CreateForInvoice(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateForInvoiceWithoutSuccessfulPayment(t *testing.T) {
	f := newFixture(t, enums.InvoicePaid)
	f.seedPayment(t, enums.PaymentStatusFailed)

	_, err := f.svc.CreateForInvoice(context.Background(), f.invoice.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestIssueEnforcesOneReceiptPerInvoice(t *testing.T) {
	f := newFixture(t, enums.InvoicePaid)
	payment := f.seedPayment(t, enums.PaymentStatusSuccess)

	_, err := f.svc.Issue(context.Background(), f.conn, f.invoice, payment)
	require.NoError(t, err)

	_, err = f.svc.Issue(context.Background(), f.conn, f.invoice, payment)
	require.True(t, errors.Is(err, ErrAlreadyIssued), "got %v", err)
}
