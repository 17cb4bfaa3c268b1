package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultLockTTL outlives one cycle so a crashed worker frees the lock quickly.
const defaultLockTTL = 5 * time.Minute

// errLockLost is returned by Extend when the TTL lapsed and another worker
// took over.
var errLockLost = errors.New("cron lock lost")

// Lock coordinates exclusive cron runs across worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

type tokenStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndExpire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
}

// RedisLock is a single-key lock whose value is a per-acquire token. Extend
// and Release only act while the key still carries that token.
type RedisLock struct {
	store tokenStore
	key   string
	ttl   time.Duration
	token string
}

func NewRedisLock(store tokenStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Extend pushes the TTL out again so long cycles keep the lock.
func (l *RedisLock) Extend(ctx context.Context) error {
	if l.token == "" {
		return errLockLost
	}
	ok, err := l.store.CompareAndExpire(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !ok {
		l.token = ""
		return errLockLost
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
