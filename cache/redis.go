package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var _ Cache = &RedisCache{}

// RedisCache implements Cache on top of any redis.Cmdable (client, cluster or ring).
type RedisCache struct {
	redis  redis.Cmdable
	prefix string
}

// NewRedisCache wraps cmdable. Every key is prefixed with prefix.
func NewRedisCache(cmdable redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{redis: cmdable, prefix: prefix}
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.redis.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.redis.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, c.prefix+key).Err()
}

// Take uses GETDEL, which needs Redis 6.2 or newer.
func (c *RedisCache) Take(ctx context.Context, key string) (string, error) {
	v, err := c.redis.GetDel(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
