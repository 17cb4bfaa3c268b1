package payments

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

// PayInvoiceInput starts a collection attempt against an invoice.
// RequestOrigin is the scheme and host the request arrived on; it is used to
// derive the M-Pesa callback when CallbackURL is empty.
type PayInvoiceInput struct {
	InvoiceID     uuid.UUID
	Method        enums.PaymentMethod
	Amount        *decimal.Decimal
	PayerPhone    string
	PayerEmail    string
	CallbackURL   string
	RequestOrigin string
	ActorID       *uuid.UUID
}

// PayInvoiceResult carries the payment plus whatever the client needs to
// continue: the STK ids, the hosted checkout URL or the receipt.
type PayInvoiceResult struct {
	Payment           *models.Payment
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
	AuthorizationURL  string
	AccessCode        string
	Reference         string
	Receipt           *models.Receipt
}

// SuccessInput feeds a confirmed collection into settlement. Collected is
// set when the processor reports less than the payment asked for.
type SuccessInput struct {
	PaymentID     uuid.UUID
	ResultCode    string
	ResultDesc    string
	ReceiptNumber string
	RawCallback   json.RawMessage
	RecordedByID  *uuid.UUID
	Collected     *decimal.Decimal
}

// Settlement reports what ApplySuccessfulPayment did. Settled is false when
// the invoice had already been paid by an earlier payment or delivery, or
// when Underpaid reports the collection fell short of the balance due.
type Settlement struct {
	Settled   bool
	Underpaid bool
	Payment   *models.Payment
	Invoice   *models.Invoice
	Receipt   *models.Receipt

	paymentChanged bool
}

// CallbackOutcome tells webhook ingress how a delivery was handled.
type CallbackOutcome string

const (
	OutcomeSettled   CallbackOutcome = "settled"
	OutcomeDuplicate CallbackOutcome = "duplicate"
	OutcomeFailed    CallbackOutcome = "failed"
	OutcomeIgnored   CallbackOutcome = "ignored"
	OutcomeUnderpaid CallbackOutcome = "underpaid"
)

// StatusResult is the poller's view of an STK payment.
type StatusResult struct {
	PaymentID  uuid.UUID
	InvoiceID  uuid.UUID
	Status     enums.PaymentStatus
	ResultCode string
	ResultDesc string
}
