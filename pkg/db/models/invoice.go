package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Invoice is the billable snapshot of an order. BalanceDue equals Total until
// the invoice is PAID, then it is zero.
type Invoice struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Number        string                     `gorm:"column:number;not null;uniqueIndex"`
	LineItems     types.InvoiceLineItems     `gorm:"column:line_items;type:jsonb;serializer:json"`
	Subtotal      decimal.Decimal            `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discounts     decimal.Decimal            `gorm:"column:discounts;type:numeric(12,2);not null"`
	Fees          decimal.Decimal            `gorm:"column:fees;type:numeric(12,2);not null"`
	Tax           decimal.Decimal            `gorm:"column:tax;type:numeric(12,2);not null"`
	Total         decimal.Decimal            `gorm:"column:total;type:numeric(12,2);not null"`
	BalanceDue    decimal.Decimal            `gorm:"column:balance_due;type:numeric(12,2);not null"`
	Currency      enums.Currency             `gorm:"column:currency;type:text;not null"`
	PaymentStatus enums.InvoicePaymentStatus `gorm:"column:payment_status;type:text;not null"`
	ReceiptID     *uuid.UUID                 `gorm:"column:receipt_id;type:uuid"`
	PaidAt        *time.Time                 `gorm:"column:paid_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// AmountDue is BalanceDue when set, otherwise Total.
func (i Invoice) AmountDue() decimal.Decimal {
	if i.BalanceDue.IsPositive() {
		return i.BalanceDue
	}
	return i.Total
}
