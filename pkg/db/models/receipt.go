package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Receipt is immutable proof of a settled invoice. At most one exists per invoice.
type Receipt struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	InvoiceID  uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex:receipts_invoice_id_key"`
	PaymentID  *uuid.UUID          `gorm:"column:payment_id;type:uuid"`
	Number     string              `gorm:"column:number;not null;uniqueIndex"`
	AmountPaid decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	Method     enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	IssuedAt   time.Time           `gorm:"column:issued_at;not null"`
	PDFURL     *string             `gorm:"column:pdf_url"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}
