package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Seann-Moser/integrations/cache"
	"github.com/Seann-Moser/integrations/config"
)

const purgeInterval = time.Minute

// backend is the cache plus whatever it needs to be checked and shut down.
type backend struct {
	cache   cache.Cache
	health  func(ctx context.Context) error
	closers []func(ctx context.Context) error
	mongoDB *mongo.Database
}

func (b *backend) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// openBackend builds the configured cache. Mongo is also connected when the
// per-org integration store is enabled.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	if cfg.CacheBackend == config.CacheMongo || cfg.MongoIntegrations {
		client, err := connectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Disconnect)
		b.mongoDB = client.Database(cfg.MongoDatabase)
		if cfg.CacheBackend == config.CacheMongo {
			mc := cache.NewMongoCache(b.mongoDB, "")
			if err := mc.EnsureIndexes(ctx); err != nil {
				_ = b.Close(ctx)
				return nil, fmt.Errorf("mongo cache indexes: %w", err)
			}
			b.cache = mc
			b.health = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		}
	}

	switch cfg.CacheBackend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = b.Close(ctx)
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.cache = cache.NewRedisCache(client, cfg.CachePrefix)
		b.health = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
	case config.CacheSQLite:
		sc, err := cache.OpenSQLiteCache(ctx, cfg.SQLitePath)
		if err != nil {
			_ = b.Close(ctx)
			return nil, err
		}
		b.cache = sc
		b.health = sc.Ping
		b.closers = append(b.closers, func(context.Context) error { return sc.Close() })
		go purgeLoop(ctx, sc, logger)
	}

	logger.Info("cache backend ready", "backend", cfg.CacheBackend)
	return b, nil
}

// purgeLoop removes expired SQLite rows until ctx is done.
func purgeLoop(ctx context.Context, sc *cache.SQLiteCache, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sc.Purge(ctx)
			if err != nil {
				logger.Warn("cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired cache entries", "count", n)
			}
		}
	}
}
