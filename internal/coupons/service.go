// Package coupons validates promotional codes and computes their discount.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

// Reason explains why a coupon was not applied.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
	ReasonMinimumNotMet     Reason = "minimum_not_met"
	ReasonAlreadyUsed       Reason = "already_used"
)

// RejectionError reports a coupon that exists but cannot be applied.
type RejectionError struct {
	Code   string
	Reason Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// AsRejection unwraps a RejectionError.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Service is the coupon collaborator used by order assembly.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// NormalizeCode upper-cases and trims a shopper supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup loads a coupon by code. Unknown codes return a RejectionError.
func (s *Service) Lookup(ctx context.Context, code string) (*models.Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, &RejectionError{Code: code, Reason: ReasonNotFound}
	}
	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RejectionError{Code: normalized, Reason: ReasonNotFound}
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return coupon, nil
}

// Validate checks a coupon against the customer and order subtotal.
func (s *Service) Validate(ctx context.Context, coupon *models.Coupon, customerID uuid.UUID, subtotal decimal.Decimal) error {
	if coupon == nil {
		return &RejectionError{Reason: ReasonNotFound}
	}
	reject := func(reason Reason) error {
		return &RejectionError{Code: coupon.Code, Reason: reason}
	}
	if !coupon.IsActive {
		return reject(ReasonInactive)
	}
	if coupon.ExpiresAt != nil && !s.now().Before(*coupon.ExpiresAt) {
		return reject(ReasonExpired)
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return reject(ReasonUsageLimitReached)
	}
	if coupon.MinimumOrderAmount != nil && subtotal.LessThan(*coupon.MinimumOrderAmount) {
		return reject(ReasonMinimumNotMet)
	}
	if coupon.FirstTimeOnly {
		used, err := s.repo.CountOrdersByCustomer(ctx, coupon.ID, customerID)
		if err != nil {
			return fmt.Errorf("count coupon usage: %w", err)
		}
		if used > 0 {
			return reject(ReasonAlreadyUsed)
		}
	}
	return nil
}

// CalculateDiscount returns the discount for amount, never exceeding the
// coupon ceiling or the amount itself.
func CalculateDiscount(coupon *models.Coupon, amount decimal.Decimal) decimal.Decimal {
	if coupon == nil || !amount.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountPercentage:
		discount = amount.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
		if coupon.MaximumDiscountAmount != nil && discount.GreaterThan(*coupon.MaximumDiscountAmount) {
			discount = *coupon.MaximumDiscountAmount
		}
	case enums.DiscountFixed:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// IncrementUsage records one more redemption.
func (s *Service) IncrementUsage(ctx context.Context, couponID uuid.UUID) error {
	return s.repo.IncrementUsage(ctx, couponID)
}
