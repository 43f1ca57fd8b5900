package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Both scripts run server side so the read and the write cannot interleave
// with another replica.
var (
	// compareAndDelete frees a lock only for the owner that took it.
	compareAndDelete = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

	// windowIncr counts a hit and starts the window on the first one.
	windowIncr = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)
)

func (c *Client) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, owner, ttl)
}

// ReleaseLock is a no-op when owner no longer holds key.
func (c *Client) ReleaseLock(ctx context.Context, key, owner string) error {
	if c.rdb == nil {
		return ErrNotInitialized
	}
	err := compareAndDelete.Run(ctx, c.rdb, []string{key}, owner).Err()
	if IsNil(err) {
		return nil
	}
	return err
}

// FixedWindowAllow counts one request against scope and reports whether it
// fits under limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.rdb == nil {
		return false, 0, ErrNotInitialized
	}
	count, err := windowIncr.Run(ctx, c.rdb, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}
