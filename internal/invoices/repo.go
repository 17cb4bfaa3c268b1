package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

// Repository persists invoices and the order back-reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AttachToOrder(ctx context.Context, orderID, invoiceID uuid.UUID) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	SetReceipt(ctx context.Context, id, receiptID uuid.UUID) error
	CancelPendingByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate row-locks the invoice for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) AttachToOrder(ctx context.Context, orderID, invoiceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("invoice_id", invoiceID).Error
}

// MarkPaid zeroes the balance. The status guard keeps the transition single-shot.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND payment_status = ?", id, enums.InvoicePending).
		Updates(map[string]any{
			"payment_status": enums.InvoicePaid,
			"balance_due":    0,
			"paid_at":        paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *repository) SetReceipt(ctx context.Context, id, receiptID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("receipt_id", receiptID).Error
}

// CancelPendingByOrder voids an unpaid invoice. Paid invoices are untouched.
func (r *repository) CancelPendingByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("order_id = ? AND payment_status = ?", orderID, enums.InvoicePending).
		Update("payment_status", enums.InvoiceCancelled)
	return res.RowsAffected, res.Error
}
