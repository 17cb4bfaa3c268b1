package enums

import "fmt"

// InvoicePaymentStatus is the settlement state of an invoice.
type InvoicePaymentStatus string

const (
	InvoicePending   InvoicePaymentStatus = "PENDING"
	InvoicePaid      InvoicePaymentStatus = "PAID"
	InvoiceCancelled InvoicePaymentStatus = "CANCELLED"
)

var validInvoicePaymentStatuses = []InvoicePaymentStatus{
	InvoicePending,
	InvoicePaid,
	InvoiceCancelled,
}

// String implements fmt.Stringer.
func (i InvoicePaymentStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InvoicePaymentStatus.
func (i InvoicePaymentStatus) IsValid() bool {
	for _, candidate := range validInvoicePaymentStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvoicePaymentStatus converts raw input into an InvoicePaymentStatus.
func ParseInvoicePaymentStatus(value string) (InvoicePaymentStatus, error) {
	for _, candidate := range validInvoicePaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice payment status %q", value)
}
