package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox/payloads"
	"github.com/shopspring/decimal"
)

func TestResolveRoutesPaymentEventsToPaymentsTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	paymentID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventPaymentUpdated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   paymentID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.PaymentUpdatedEvent{
			PaymentID: paymentID,
			Method:    enums.PaymentMethodMpesaSTK,
			Status:    enums.PaymentStatusSuccess,
			Amount:    decimal.NewFromInt(2200),
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "payments-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.PaymentUpdatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.PaymentID != paymentID || !payload.Amount.Equal(decimal.NewFromInt(2200)) {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestResolveOrderCreatedUsesOrdersTopic(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, mustMarshal(t, payloads.OrderCreatedEvent{OrderID: orderID})),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
}

func TestResolveRejectsBadRowsAsNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "order.teleported",
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventReceiptCreated,
			AggregateType: enums.AggregateReceipt,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"future envelope version": {
			EventType:     enums.EventReceiptCreated,
			AggregateType: enums.AggregateReceipt,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":2,"eventId":"e","data":{"receiptId":"r"}}`),
		},
	}

	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestTopicsAreDistinct(t *testing.T) {
	reg := newTestEventRegistry(t)
	if got := len(reg.Topics()); got != 2 {
		t.Fatalf("expected 2 topics, got %d", got)
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"}); err == nil {
		t.Fatal("expected missing payments topic error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:   "orders-topic",
		PaymentsTopic: "payments-topic",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
