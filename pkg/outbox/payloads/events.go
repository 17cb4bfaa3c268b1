package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Payloads are shared by the durable outbox and the realtime notifier so
// both consumers see the same shape.

type OrderCreatedEvent struct {
	OrderID       uuid.UUID                `json:"orderId"`
	CustomerID    uuid.UUID                `json:"customerId"`
	InvoiceID     *uuid.UUID               `json:"invoiceId,omitempty"`
	Total         decimal.Decimal          `json:"total"`
	Status        enums.OrderStatus        `json:"status"`
	PaymentStatus enums.OrderPaymentStatus `json:"paymentStatus"`
}

type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	CustomerID uuid.UUID         `json:"customerId"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
}

type InvoiceCreatedEvent struct {
	InvoiceID  uuid.UUID       `json:"invoiceId"`
	OrderID    uuid.UUID       `json:"orderId"`
	Number     string          `json:"number"`
	Total      decimal.Decimal `json:"total"`
	BalanceDue decimal.Decimal `json:"balanceDue"`
}

type PaymentUpdatedEvent struct {
	PaymentID     uuid.UUID                  `json:"paymentId"`
	InvoiceID     uuid.UUID                  `json:"invoiceId"`
	OrderID       uuid.UUID                  `json:"orderId"`
	Method        enums.PaymentMethod        `json:"method"`
	Status        enums.PaymentStatus        `json:"status"`
	Amount        decimal.Decimal            `json:"amount"`
	InvoiceStatus enums.InvoicePaymentStatus `json:"invoiceStatus"`
	ResultDesc    string                     `json:"resultDesc,omitempty"`
}

type ReceiptCreatedEvent struct {
	ReceiptID  uuid.UUID           `json:"receiptId"`
	InvoiceID  uuid.UUID           `json:"invoiceId"`
	OrderID    uuid.UUID           `json:"orderId"`
	Number     string              `json:"number"`
	AmountPaid decimal.Decimal     `json:"amountPaid"`
	Method     enums.PaymentMethod `json:"method"`
	IssuedAt   time.Time           `json:"issuedAt"`
}
