package redis

import "strings"

const keyNamespace = "sf"

// Keyspace builds every key the storefront writes, all under sf:.
type Keyspace struct{}

func (Keyspace) key(parts ...string) string {
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

// IdempotencyKey scopes an HTTP Idempotency-Key or a consumed event id.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.key("idempotency", scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.key("rate_limit", scope)
}

// OrderSequenceKey is the per-day order counter, e.g. sf:counter:orders:260117.
func (k Keyspace) OrderSequenceKey(day string) string {
	return k.key("counter", "orders", day)
}

func (k Keyspace) LockKey(name string) string {
	return k.key("lock", name)
}

// AccessSessionKey marks an access token id (jti) as live.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.key("session", accessID)
}
