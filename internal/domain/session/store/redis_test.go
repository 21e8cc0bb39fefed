package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis(Config{
		TTL: time.Minute,
		Redis: &RedisConfig{
			Addr: mr.Addr(),
		},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	summary := testSummary("redis-session")
	if err := store.Save(ctx, summary); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Get(ctx, summary.SessionID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.SessionID != summary.SessionID || got.DominantTone != summary.DominantTone {
		t.Fatalf("unexpected summary: %+v", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0] != summary.SessionID {
		t.Fatalf("unexpected list: %v", list)
	}

	if err := store.Remove(ctx, summary.SessionID); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := store.Get(ctx, summary.SessionID); err == nil {
		t.Fatalf("expected missing session after removal")
	}
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis(Config{
		TTL: 500 * time.Millisecond,
		Redis: &RedisConfig{
			Addr: mr.Addr(),
		},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	if err := store.Save(ctx, testSummary("redis-ttl")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	mr.FastForward(time.Second)
	if _, err := store.Get(ctx, "redis-ttl"); err == nil {
		t.Fatal("expected expired session to be gone")
	}
}

func TestNewRedisRequiresConfig(t *testing.T) {
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatal("expected error without redis config")
	}
	if _, err := NewRedis(Config{Redis: &RedisConfig{}}); err == nil {
		t.Fatal("expected error without redis address")
	}
}
