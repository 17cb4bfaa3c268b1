package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Order is a customer's purchase intent assembled from a cart.
type Order struct {
	ID                  uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID          uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	CreatedByID         uuid.UUID                `gorm:"column:created_by_id;type:uuid;not null"`
	CartID              *uuid.UUID               `gorm:"column:cart_id;type:uuid"`
	FulfillmentType     enums.FulfillmentType    `gorm:"column:fulfillment_type;type:text;not null"`
	FulfillmentLocation *string                  `gorm:"column:fulfillment_location"`
	Timing              types.DeliveryTiming     `gorm:"column:timing;type:jsonb;serializer:json"`
	AddressID           *uuid.UUID               `gorm:"column:address_id;type:uuid"`
	PaymentPreference   types.PaymentPreference  `gorm:"column:payment_preference;type:jsonb;serializer:json"`
	Pricing             types.OrderPricing       `gorm:"embedded"`
	Packaging           *types.PackagingSnapshot `gorm:"column:packaging;type:jsonb;serializer:json"`
	Coupon              *types.CouponSnapshot    `gorm:"column:coupon;type:jsonb;serializer:json"`
	CouponID            *uuid.UUID               `gorm:"column:coupon_id;type:uuid;index"`
	Status              enums.OrderStatus        `gorm:"column:status;type:text;not null"`
	PaymentStatus       enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null"`
	InvoiceID           *uuid.UUID               `gorm:"column:invoice_id;type:uuid"`
	ReceiptID           *uuid.UUID               `gorm:"column:receipt_id;type:uuid"`
	Items               []OrderItem              `gorm:"foreignKey:OrderID"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a cart line frozen at checkout.
type OrderItem struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	SKUID     uuid.UUID            `gorm:"column:sku_id;type:uuid;not null"`
	ProductID uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	Title     string               `gorm:"column:title;not null"`
	Options   types.VariantOptions `gorm:"column:options;type:jsonb;serializer:json"`
	Quantity  int                  `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal decimal.Decimal      `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
