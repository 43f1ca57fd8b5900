package redis

import (
	"context"
	"time"
)

// Consumers depend on these narrow views of *Client so tests can swap in
// in-memory fakes.

type Pinger interface {
	Ping(context.Context) error
}

type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Locker serializes work across replicas, e.g. cron cycles and payout transfers.
type Locker interface {
	LockKey(parts ...string) string
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// StateStore holds single-use values such as OAuth state.
type StateStore interface {
	OAuthStateKey(state string) string
	Set(context.Context, string, any, time.Duration) error
	GetDel(context.Context, string) (string, error)
}

type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

var (
	_ Pinger           = (*Client)(nil)
	_ IdempotencyStore = (*Client)(nil)
	_ Locker           = (*Client)(nil)
	_ StateStore       = (*Client)(nil)
	_ RateLimiter      = (*Client)(nil)
)
