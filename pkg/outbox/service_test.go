package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/dbtest"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

type receiptData struct {
	ReceiptNumber string `json:"receiptNumber"`
}

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	occurred := time.Date(2026, 10, 15, 12, 0, 0, 0, time.FixedZone("EAT", 3*60*60))
	receiptID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: string(enums.RoleStaff)}

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReceiptCreated,
			AggregateType: enums.AggregateReceipt,
			AggregateID:   receiptID,
			Actor:         actor,
			Data:          receiptData{ReceiptNumber: "RCT-20261015-0001"},
			OccurredAt:    occurred,
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "aggregate_id = ?", receiptID).Error)
	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.Equal(t, EnvelopeVersion, env.Version)
	require.NotEmpty(t, env.EventID)
	require.True(t, env.OccurredAt.Equal(occurred))
	require.Equal(t, time.UTC, env.OccurredAt.Location())
	require.Equal(t, actor.UserID, env.Actor.UserID)
	require.JSONEq(t, `{"receiptNumber":"RCT-20261015-0001"}`, string(env.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventInvoiceCreated,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"invoiceNumber": "INV-1"},
		}))
		return errors.New("invoice insert failed")
	})

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Emit(ctx, nil, DomainEvent{}), errTxRequired)
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{
		EventType:     enums.EventPaymentUpdated,
		AggregateType: enums.AggregatePayment,
		Data:          map[string]string{"status": "SUCCESS"},
	}))
	require.ErrorIs(t, svc.Emit(ctx, conn, DomainEvent{
		EventType:     enums.EventPaymentUpdated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
	}), errEmptyEventData)
}

func TestDecodeEnvelopeRejectsUnknownVersions(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":0,"eventId":"e","data":{}}`))
	require.Error(t, err)
	_, err = DecodeEnvelope([]byte(`{"version":2,"eventId":"e","data":{}}`))
	require.Error(t, err)
	_, err = DecodeEnvelope([]byte(`{"version":1,"eventId":"e","data":{}}`))
	require.NoError(t, err)
	_, err = DecodeEnvelope([]byte(`not json`))
	require.Error(t, err)
}
