package receipts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

// Repository persists receipts and links them onto the order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, receipt *models.Receipt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
	FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Receipt, error)
	FindLatestSuccessfulPayment(ctx context.Context, invoiceID uuid.UUID) (*models.Payment, error)
	LinkOrder(ctx context.Context, orderID, receiptID uuid.UUID) error
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

func (r *repository) Create(ctx context.Context, receipt *models.Receipt) error {
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) FindLatestSuccessfulPayment(ctx context.Context, invoiceID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND status = ?", invoiceID, enums.PaymentStatusSuccess).
		Order("completed_at DESC").
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) LinkOrder(ctx context.Context, orderID, receiptID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("receipt_id", receiptID).Error
}
