package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

// Repository persists payment attempts and resolves them by processor reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Save(ctx context.Context, payment *models.Payment) error
	StoreRawCallback(ctx context.Context, id uuid.UUID, raw json.RawMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	FindByPaystackReference(ctx context.Context, reference string) (*models.Payment, error)
	FindLatestForInvoice(ctx context.Context, invoiceID uuid.UUID, method enums.PaymentMethod) (*models.Payment, error)
	ListStalePending(ctx context.Context, method enums.PaymentMethod, createdBefore, createdAfter time.Time, limit int) ([]models.Payment, error)
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

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// StoreRawCallback keeps the latest processor payload without touching status.
func (r *repository) StoreRawCallback(ctx context.Context, id uuid.UUID, raw json.RawMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("raw_callback", raw).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID))
}

func (r *repository) FindByPaystackReference(ctx context.Context, reference string) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("paystack_reference = ?", reference))
}

func (r *repository) FindLatestForInvoice(ctx context.Context, invoiceID uuid.UUID, method enums.PaymentMethod) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Where("invoice_id = ? AND method = ?", invoiceID, method).
		Order("created_at DESC"))
}

// ListStalePending returns PENDING payments created inside (createdAfter, createdBefore),
// oldest first.
func (r *repository) ListStalePending(ctx context.Context, method enums.PaymentMethod, createdBefore, createdAfter time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	query := r.db.WithContext(ctx).
		Where("method = ? AND status = ?", method, enums.PaymentStatusPending).
		Where("created_at < ? AND created_at > ?", createdBefore, createdAfter).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) first(query *gorm.DB) (*models.Payment, error) {
	var payment models.Payment
	if err := query.First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
