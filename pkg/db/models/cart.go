package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Cart is owned by the storefront cart service; checkout only reads it and
// marks it converted.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID        `gorm:"column:owner_id;type:uuid;not null;index"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null"`
	Items     []CartItem       `gorm:"foreignKey:CartID"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem records the price seen when the item was added.
type CartItem struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID            `gorm:"column:cart_id;type:uuid;not null;index"`
	SKUID     uuid.UUID            `gorm:"column:sku_id;type:uuid;not null"`
	ProductID uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	Options   types.VariantOptions `gorm:"column:options;type:jsonb;serializer:json"`
	Quantity  int                  `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// Product is the read-only slice of the catalog checkout needs.
type Product struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title string    `gorm:"column:title;not null"`
}
