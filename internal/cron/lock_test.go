package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryLockStore struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	m.ttl[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndExpire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	if m.data[key] != token {
		return false, nil
	}
	m.ttl[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	if m.data[key] != token {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

// expire simulates the TTL lapsing.
func (m *memoryLockStore) expire(key string) { delete(m.data, key) }

const testLockKey = "kicks:lock:cron-worker:test"

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, testLockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, testLockKey, 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if store.ttl[testLockKey] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttl[testLockKey])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, ok := store.data[testLockKey]; !ok {
		t.Fatalf("non-owner release must keep the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("expected lock free after owner release")
	}
}

func TestRedisLockExtendDetectsTakeover(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	first, _ := NewRedisLock(store, testLockKey, time.Minute)
	second, _ := NewRedisLock(store, testLockKey, time.Minute)

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	store.ttl[testLockKey] = time.Second
	if err := first.Extend(ctx); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if store.ttl[testLockKey] != time.Minute {
		t.Fatalf("expected ttl reset, got %s", store.ttl[testLockKey])
	}

	store.expire(testLockKey)
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected takeover after expiry")
	}
	if err := first.Extend(ctx); !errors.Is(err, errLockLost) {
		t.Fatalf("expected errLockLost, got %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release after loss: %v", err)
	}
	if _, ok := store.data[testLockKey]; !ok {
		t.Fatal("stale holder must not release the new owner's lock")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatalf("expected client required")
	}
	if _, err := NewRedisLock(newMemoryLockStore(), "", time.Minute); err == nil {
		t.Fatalf("expected key required")
	}
}
