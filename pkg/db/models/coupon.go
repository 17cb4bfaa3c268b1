package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

type Coupon struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                  string             `gorm:"column:code;not null;uniqueIndex"`
	Name                  string             `gorm:"column:name;not null"`
	DiscountType          enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue         decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MaximumDiscountAmount *decimal.Decimal   `gorm:"column:maximum_discount_amount;type:numeric(12,2)"`
	MinimumOrderAmount    *decimal.Decimal   `gorm:"column:minimum_order_amount;type:numeric(12,2)"`
	UsageLimit            *int               `gorm:"column:usage_limit"`
	UsageCount            int                `gorm:"column:usage_count;not null;default:0"`
	FirstTimeOnly         bool               `gorm:"column:first_time_only;not null;default:false"`
	IsActive              bool               `gorm:"column:is_active;not null;default:true"`
	ExpiresAt             *time.Time         `gorm:"column:expires_at"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
