package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox/registry"
)

type relayOutcome int

const (
	outcomePublished relayOutcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type batchSummary struct {
	published    int
	retried      int
	deadLettered int
}

func (b *batchSummary) record(outcome relayOutcome) {
	switch outcome {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeDeadLettered:
		b.deadLettered++
	}
}

func (b batchSummary) total() int {
	return b.published + b.retried + b.deadLettered
}

func (b batchSummary) fields() map[string]any {
	return map[string]any{
		"published":     b.published,
		"retried":       b.retried,
		"dead_lettered": b.deadLettered,
	}
}

// processBatch claims up to batchSize rows and relays each one inside the
// claiming transaction. A single failed row never aborts the batch; only
// bookkeeping errors do.
func (s *Service) processBatch(ctx context.Context) (batchSummary, error) {
	var summary batchSummary
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			outcome, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			summary.record(outcome)
		}
		return nil
	})
	if err != nil {
		return batchSummary{}, err
	}
	return summary, nil
}

func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (relayOutcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, "", enums.OutboxDLQReasonNonRetryable, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = s.logg.WithFields(ctx, eventFields(event, resolved))

	publishErr := s.publish(ctx, event, resolved)
	if publishErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(topic, string(event.EventType))
		s.logg.Info(ctx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(publishErr, &nonRetry) {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonNonRetryable, publishErr)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		terminal := fmt.Errorf("max publish attempts reached: %w", publishErr)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonMaxAttempts, terminal)
	}

	warnCtx := s.logg.WithFields(ctx, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         publishErr.Error(),
	})
	s.logg.Warn(warnCtx, "outbox publish failed")
	s.metrics.IncFailed(topic, string(event.EventType))
	if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic string, reason enums.OutboxDLQErrorReason, cause error) error {
	warnCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"topic":        topic,
		"error_reason": reason,
		"error":        cause.Error(),
	})
	s.logg.Warn(warnCtx, "outbox event will not be retried")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, buildMessage(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// buildMessage keys messages by aggregate so subscribers see an order's or a
// payment's transitions in commit order.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
		OrderingKey: event.AggregateID.String(),
	}
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"topic":          resolved.Descriptor.Topic,
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
