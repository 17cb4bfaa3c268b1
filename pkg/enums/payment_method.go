package enums

import "fmt"

// PaymentMethod identifies how a payment is collected.
type PaymentMethod string

const (
	PaymentMethodMpesaSTK     PaymentMethod = "mpesa_stk"
	PaymentMethodPaystackCard PaymentMethod = "paystack_card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodPostToBill   PaymentMethod = "post_to_bill"
	PaymentMethodCOD          PaymentMethod = "cod"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodMpesaSTK,
	PaymentMethodPaystackCard,
	PaymentMethodCash,
	PaymentMethodPostToBill,
	PaymentMethodCOD,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsOffline reports whether money is collected outside a processor.
func (p PaymentMethod) IsOffline() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodPostToBill, PaymentMethodCOD:
		return true
	}
	return false
}

// InitialStatus is the status a new payment record starts in.
func (p PaymentMethod) InitialStatus() PaymentStatus {
	if p.IsOffline() {
		return PaymentStatusSuccess
	}
	return PaymentStatusInitiated
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
