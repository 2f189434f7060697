package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// newTestRedisCache connects to REDIS_ADDR; the test is skipped when unset.
func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return NewRedisCache(client, "test-"+uuid.NewString()+":")
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v; want v, nil", got, err)
	}
	got, err = c.Take(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Take = %q, %v; want v, nil", got, err)
	}
	if _, err := c.Take(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Take should be ErrNotFound, got %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key returned error: %v", err)
	}
}
