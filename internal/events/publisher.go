// Package events broadcasts settlement transitions to realtime listeners.
// Delivery is best-effort and happens after the owning transaction commits.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

// Publisher emits a payload on a topic. Implementations never return errors
// to the caller; failures are logged.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Message is the JSON body pushed to realtime channels.
type Message struct {
	Topic       string          `json:"topic"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"publishedAt"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// RedisBroadcaster publishes each event on "<prefix>:<topic>".
type RedisBroadcaster struct {
	client redisPublisher
	prefix string
	logg   *logger.Logger
	now    func() time.Time
}

// NewRedisBroadcaster builds a broadcaster. An empty prefix publishes on the
// bare topic name.
func NewRedisBroadcaster(client redisPublisher, prefix string, logg *logger.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client: client,
		prefix: strings.TrimSuffix(strings.TrimSpace(prefix), ":"),
		logg:   logg,
		now:    time.Now,
	}
}

// Channel returns the redis channel used for topic.
func (b *RedisBroadcaster) Channel(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + ":" + topic
}

func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, payload any) {
	if b == nil || b.client == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.logError(ctx, topic, "encode realtime payload", err)
		return
	}
	body, err := json.Marshal(Message{Topic: topic, Data: data, PublishedAt: b.now().UTC()})
	if err != nil {
		b.logError(ctx, topic, "encode realtime message", err)
		return
	}
	if err := b.client.Publish(ctx, b.Channel(topic), string(body)); err != nil {
		b.logError(ctx, topic, "publish realtime event", err)
	}
}

func (b *RedisBroadcaster) logError(ctx context.Context, topic, msg string, err error) {
	if b.logg == nil {
		return
	}
	b.logg.Error(b.logg.WithField(ctx, "topic", topic), msg, err)
}

// LogPublisher writes every event to the structured log.
type LogPublisher struct {
	logg *logger.Logger
}

func NewLogPublisher(logg *logger.Logger) *LogPublisher {
	return &LogPublisher{logg: logg}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, payload any) {
	if p == nil || p.logg == nil {
		return
	}
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"event": "events.publish",
		"topic": topic,
	})
	p.logg.Info(logCtx, "realtime event")
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) {}

// Multi fans an event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, payload any) {
	for _, p := range m {
		if p == nil {
			continue
		}
		p.Publish(ctx, topic, payload)
	}
}
