// Package idempotency records which deliveries a consumer already handled.
// Webhooks and event consumers share it; each uses its own scope so keys
// never collide (mp:idempotency:<scope>:<id>).
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

var ErrEmptyID = errors.New("idempotency: delivery id is required")

// Guard marks delivery IDs as seen for a fixed TTL using SETNX.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func New(store redis.IdempotencyStore, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{store: store, ttl: ttl, scope: scope}, nil
}

// Scope reports the key namespace this guard writes under.
func (g *Guard) Scope() string { return g.scope }

// CheckAndMark reports true when id was already marked. Otherwise it marks
// id and returns false; the caller owns the delivery from then on.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	key, err := g.key(id)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", g.scope, err)
	}
	return !set, nil
}

// Delete clears the marker so the next redelivery is processed again.
func (g *Guard) Delete(ctx context.Context, id string) error {
	key, err := g.key(id)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// Once runs fn the first time id is seen. A failing fn releases the marker
// and its error is returned. ran is false for duplicates.
func (g *Guard) Once(ctx context.Context, id string, fn func(context.Context) error) (ran bool, err error) {
	seen, err := g.CheckAndMark(ctx, id)
	if err != nil || seen {
		return false, err
	}
	if err := fn(ctx); err != nil {
		if delErr := g.Delete(ctx, id); delErr != nil {
			return true, errors.Join(err, fmt.Errorf("release marker: %w", delErr))
		}
		return true, err
	}
	return true, nil
}

func (g *Guard) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyID
	}
	return g.store.IdempotencyKey(g.scope, id), nil
}
