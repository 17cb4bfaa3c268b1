package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindActiveByOwner loads the latest active cart for the owner with its items.
func (r *repository) FindActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("owner_id = ? AND status = ?", ownerID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByID loads a cart regardless of owner; callers enforce ownership.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkConverted flips an active cart to converted. Converting twice is a no-op.
func (r *repository) MarkConverted(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, enums.CartStatusActive).
		Update("status", enums.CartStatusConverted).Error
}

// AbandonIdleBefore marks active carts untouched since cutoff as abandoned.
func (r *repository) AbandonIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
		Update("status", enums.CartStatusAbandoned)
	return res.RowsAffected, res.Error
}
