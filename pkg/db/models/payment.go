package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Payment is one attempt to collect money against an invoice.
// CheckoutRequestID and PaystackReference mirror ProcessorRefs so webhooks
// can resolve a payment with an indexed lookup.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID         uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	ProcessorRefs     types.ProcessorRefs `gorm:"column:processor_refs;type:jsonb;serializer:json"`
	CheckoutRequestID *string             `gorm:"column:checkout_request_id;uniqueIndex"`
	PaystackReference *string             `gorm:"column:paystack_reference;uniqueIndex"`
	PayerPhone        *string             `gorm:"column:payer_phone"`
	PayerEmail        *string             `gorm:"column:payer_email"`
	ResultCode        *string             `gorm:"column:result_code"`
	ResultDesc        *string             `gorm:"column:result_desc"`
	RawCallback       json.RawMessage     `gorm:"column:raw_callback;type:jsonb"`
	RecordedByID      *uuid.UUID          `gorm:"column:recorded_by_id;type:uuid"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
