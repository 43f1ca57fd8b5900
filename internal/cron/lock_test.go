package cron

import (
	"context"
	"testing"
	"time"
)

type memLocker struct {
	held map[string]string
}

func (m *memLocker) AcquireLock(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = owner
	return true, nil
}

func (m *memLocker) ReleaseLock(_ context.Context, key, owner string) error {
	if m.held[key] == owner {
		delete(m.held, key)
	}
	return nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memLocker{held: map[string]string{}}
	first, err := NewRedisLock(store, "mp:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "mp:lock:cron", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if _, held := store.held["mp:lock:cron"]; !held {
		t.Fatalf("non-owner release must not free the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("lock should be free after owner release")
	}
}
