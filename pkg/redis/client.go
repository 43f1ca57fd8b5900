package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// ErrNotInitialized is returned when a Client was built without a connection.
var ErrNotInitialized = errors.New("redis client not initialized")

// commands is the subset of go-redis the helpers issue.
type commands interface {
	Ping(context.Context) *goredis.StatusCmd
	Set(context.Context, string, any, time.Duration) *goredis.StatusCmd
	Get(context.Context, string) *goredis.StringCmd
	GetDel(context.Context, string) *goredis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *goredis.BoolCmd
	Del(context.Context, ...string) *goredis.IntCmd
	goredis.Scripter
}

type Client struct {
	rdb  commands
	conn *goredis.Client
	keys Keyspace
}

// New dials Redis, applies pool settings and pings once before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	conn := goredis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_addr": opts.Addr,
			"redis_db":   opts.DB,
			"pool_size":  opts.PoolSize,
		}), "redis connection established")
	}
	return &Client{rdb: conn, conn: conn, keys: NewKeyspace(cfg.KeyPrefix)}, nil
}

func dialOptions(cfg config.RedisConfig) (*goredis.Options, error) {
	var opts *goredis.Options
	switch {
	case cfg.URL != "":
		parsed, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse MARKETPLACE_REDIS_URL: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &goredis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis: set MARKETPLACE_REDIS_URL or MARKETPLACE_REDIS_ADDR")
	}
	// Values carried by the URL win over the discrete settings.
	fill(&opts.DB, cfg.DB)
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fill[T comparable](dst *T, fallback T) {
	var zero T
	if *dst == zero {
		*dst = fallback
	}
}

func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return ErrNotInitialized
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
