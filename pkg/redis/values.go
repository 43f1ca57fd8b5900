package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IsNil reports a missing key.
func IsNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.rdb == nil {
		return ErrNotInitialized
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns goredis.Nil when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.rdb == nil {
		return "", ErrNotInitialized
	}
	return c.rdb.Get(ctx, key).Result()
}

// GetDel reads and removes key in one round trip.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	if c.rdb == nil {
		return "", ErrNotInitialized
	}
	return c.rdb.GetDel(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.rdb == nil {
		return false, ErrNotInitialized
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.rdb == nil {
		return ErrNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
