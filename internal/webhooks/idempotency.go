// Package webhooks de-duplicates processor deliveries before they reach the
// payment orchestrator.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kicksnairobi/footwear-backend/pkg/redis"
)

const (
	ScopeMpesa    = "webhook:mpesa"
	ScopePaystack = "webhook:paystack"
)

type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether deliveryID was already seen, marking it when not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases deliveryID so a processor retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryID)
	return g.store.Del(ctx, key)
}

// DeliveryID joins a processor reference with the reported result so a
// failure followed by a success for the same reference is not collapsed.
func DeliveryID(reference, result string) string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ""
	}
	result = strings.TrimSpace(result)
	if result == "" {
		return reference
	}
	return reference + ":" + result
}
