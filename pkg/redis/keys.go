package redis

import "strings"

const defaultKeyPrefix = "mp"

// Keyspace lays out every key the platform writes under one prefix so
// environments can share a Redis instance.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return Keyspace{prefix: prefix}
}

// Join skips blank segments so optional parts never produce "::".
func (k Keyspace) Join(parts ...string) string {
	var b strings.Builder
	b.WriteString(k.prefixOrDefault())
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

func (k Keyspace) prefixOrDefault() string {
	if k.prefix == "" {
		return defaultKeyPrefix
	}
	return k.prefix
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys.Join("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return c.keys.Join("rate_limit", scope)
}

func (c *Client) LockKey(parts ...string) string {
	return c.keys.Join(append([]string{"lock"}, parts...)...)
}

func (c *Client) OAuthStateKey(state string) string {
	return c.keys.Join("oauth_state", state)
}
