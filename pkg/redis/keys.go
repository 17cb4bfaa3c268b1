package redis

import "strings"

const keyNamespace = "kicks"

// IdempotencyKey namespaces HTTP Idempotency-Key and webhook delivery records.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey("idempotency", scope, id)
}

// RateLimitKey namespaces fixed-window counters.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

// SequenceKey namespaces invoice and receipt number counters.
func (c *Client) SequenceKey(name string) string {
	return buildKey("seq", name)
}

// LockKey namespaces distributed locks.
func (c *Client) LockKey(name string) string {
	return buildKey("lock", name)
}

// buildKey joins non-empty parts under the kicks namespace.
func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
