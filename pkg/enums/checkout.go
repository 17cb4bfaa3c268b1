package enums

import "fmt"

// FulfillmentType is how the customer receives the order.
type FulfillmentType string

const (
	FulfillmentPickup   FulfillmentType = "pickup"
	FulfillmentDelivery FulfillmentType = "delivery"
)

// IsValid reports whether the value is a known FulfillmentType.
func (f FulfillmentType) IsValid() bool {
	return f == FulfillmentPickup || f == FulfillmentDelivery
}

// ParseFulfillmentType converts raw input into a FulfillmentType.
func ParseFulfillmentType(value string) (FulfillmentType, error) {
	f := FulfillmentType(value)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid fulfillment type %q", value)
	}
	return f, nil
}

// TimingMode distinguishes immediate from scheduled fulfillment.
type TimingMode string

const (
	TimingASAP      TimingMode = "asap"
	TimingScheduled TimingMode = "scheduled"
)

// IsValid reports whether the value is a known TimingMode.
func (t TimingMode) IsValid() bool {
	return t == TimingASAP || t == TimingScheduled
}

// PaymentMode is the customer's stated intent to pay now or later.
type PaymentMode string

const (
	PaymentModePayNow   PaymentMode = "pay_now"
	PaymentModePayLater PaymentMode = "pay_later"
)

// IsValid reports whether the value is a known PaymentMode.
func (p PaymentMode) IsValid() bool {
	return p == PaymentModePayNow || p == PaymentModePayLater
}

// InitialOrderPaymentStatus maps the preference onto a new order.
func (p PaymentMode) InitialOrderPaymentStatus() OrderPaymentStatus {
	if p == PaymentModePayNow {
		return OrderPaymentPending
	}
	return OrderPaymentUnpaid
}

// CartStatus tracks whether a cart is still being filled.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	switch c {
	case CartStatusActive, CartStatusConverted, CartStatusAbandoned:
		return true
	}
	return false
}

// Currency is fixed to the shop's settlement currency.
type Currency string

const CurrencyKES Currency = "KES"
