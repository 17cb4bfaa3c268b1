package enums

import "fmt"

// OrderStatus tracks an order through fulfillment.
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "PLACED"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusReady,
	OrderStatusOutForDelivery,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further transitions are allowed.
func (o OrderStatus) IsFinal() bool {
	return o == OrderStatusCompleted || o == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// OrderPaymentStatus mirrors settlement progress onto the order.
type OrderPaymentStatus string

const (
	OrderPaymentUnpaid  OrderPaymentStatus = "UNPAID"
	OrderPaymentPending OrderPaymentStatus = "PENDING"
	OrderPaymentPaid    OrderPaymentStatus = "PAID"
)

var validOrderPaymentStatuses = []OrderPaymentStatus{
	OrderPaymentUnpaid,
	OrderPaymentPending,
	OrderPaymentPaid,
}

// String implements fmt.Stringer.
func (o OrderPaymentStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderPaymentStatus.
func (o OrderPaymentStatus) IsValid() bool {
	for _, candidate := range validOrderPaymentStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}
