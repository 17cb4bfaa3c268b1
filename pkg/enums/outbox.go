package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateInvoice OutboxAggregateType = "invoice"
	AggregatePayment OutboxAggregateType = "payment"
	AggregateReceipt OutboxAggregateType = "receipt"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateInvoice,
	AggregatePayment,
	AggregateReceipt,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names a durable domain event. Values double as the
// realtime topic names.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventInvoiceCreated     OutboxEventType = "invoice.created"
	EventPaymentUpdated     OutboxEventType = "payment.updated"
	EventReceiptCreated     OutboxEventType = "receipt.created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventInvoiceCreated,
	EventPaymentUpdated,
	EventReceiptCreated,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the publisher gave up on an event. Values
// match the outbox_dlq_error_reason_check constraint.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
