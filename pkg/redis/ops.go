package redis

import (
	"context"
	"time"
)

// Both scripts act only while the key still holds the caller's token, so a
// holder whose TTL lapsed cannot touch a lock someone else now owns.
const (
	compareAndDeleteScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`
	compareAndExpireScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end return 0`
)

// Get returns the string at key, or redis.Nil when it is missing.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// Set stores a value; a zero ttl keeps it forever.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, keys...).Err()
}

// CompareAndDelete removes key only when it still holds token.
func (c *Client) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, compareAndDeleteScript, []string{key}, token).Int64()
	return n == 1, err
}

// CompareAndExpire resets the TTL on key only when it still holds token.
func (c *Client) CompareAndExpire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, compareAndExpireScript, []string{key}, token, ttl.Milliseconds()).Int64()
	return n == 1, err
}

// FixedWindowAllow counts a hit against scope and reports whether the count
// is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.incrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// NextSequence returns the next value of a named counter that expires after ttl.
func (c *Client) NextSequence(ctx context.Context, name string, ttl time.Duration) (int64, error) {
	return c.incrWithTTL(ctx, c.SequenceKey(name), ttl)
}

// Publish broadcasts payload on channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Publish(ctx, channel, payload).Err()
}

// incrWithTTL starts the TTL on the first increment only, so the window is
// anchored at the first hit.
func (c *Client) incrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if err := c.store.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
