package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// OrderPricing is the fee breakdown frozen on an order. Total always equals
// the fees minus discounts.
type OrderPricing struct {
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discounts     decimal.Decimal `json:"discounts" gorm:"column:discounts;type:numeric(12,2);not null"`
	PackagingFee  decimal.Decimal `json:"packagingFee" gorm:"column:packaging_fee;type:numeric(12,2);not null"`
	SchedulingFee decimal.Decimal `json:"schedulingFee" gorm:"column:scheduling_fee;type:numeric(12,2);not null"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee" gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Tax           decimal.Decimal `json:"tax" gorm:"column:tax;type:numeric(12,2);not null"`
	Total         decimal.Decimal `json:"total" gorm:"column:total;type:numeric(12,2);not null"`
}

// ComputeTotal recomputes Total from the other fields.
func (p *OrderPricing) ComputeTotal() {
	p.Total = p.Subtotal.
		Sub(p.Discounts).
		Add(p.PackagingFee).
		Add(p.SchedulingFee).
		Add(p.DeliveryFee).
		Add(p.Tax)
}

// Fees is the sum of all non-product charges.
func (p OrderPricing) Fees() decimal.Decimal {
	return p.PackagingFee.Add(p.SchedulingFee).Add(p.DeliveryFee)
}

// DeliveryTiming captures when the customer expects the order.
type DeliveryTiming struct {
	Mode         enums.TimingMode `json:"mode"`
	ScheduledFor *time.Time       `json:"scheduledFor,omitempty"`
}

// PaymentPreference records how the customer intends to pay at checkout.
type PaymentPreference struct {
	Mode   enums.PaymentMode    `json:"mode"`
	Method *enums.PaymentMethod `json:"method,omitempty"`
}

// PackagingSnapshot freezes the packaging option applied to an order.
type PackagingSnapshot struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// CouponSnapshot freezes the coupon applied to an order.
type CouponSnapshot struct {
	ID             uuid.UUID          `json:"id"`
	Code           string             `json:"code"`
	Name           string             `json:"name"`
	DiscountType   enums.DiscountType `json:"discountType"`
	DiscountValue  decimal.Decimal    `json:"discountValue"`
	DiscountAmount decimal.Decimal    `json:"discountAmount"`
}

// VariantOption is one selected attribute such as size or colour.
type VariantOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type VariantOptions []VariantOption

// InvoiceLineItem is one labelled charge on an invoice.
type InvoiceLineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type InvoiceLineItems []InvoiceLineItem
