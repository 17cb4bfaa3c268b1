package coupons

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
)

// Repository persists coupons and answers first-time usage questions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountOrdersByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
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

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CountOrdersByCustomer counts prior orders that carried the coupon.
func (r *repository) CountOrdersByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&count).Error
	return count, err
}

// ErrUsageExhausted reports a coupon whose usage_limit is already reached.
var ErrUsageExhausted = errors.New("coupon usage limit reached")

// IncrementUsage bumps usage_count atomically, never past usage_limit.
func (r *repository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", id).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Coupon{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrUsageExhausted
}
