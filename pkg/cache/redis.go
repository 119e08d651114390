// Package cache provides the record cache backends used by the resolver:
// a Redis-backed cache for production and an in-memory cache for tests and
// cacheless deployments.
//
// Both backends are best-effort. A backend failure is a miss on Get and a
// no-op on Set, so a cache outage degrades throughput, never correctness.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	// URL is a redis:// connection URL.
	URL string

	// MaxConnections caps the client connection pool.
	MaxConnections int

	// TTL is the lifetime of each entry. Zero disables the cache
	// entirely: every Get misses and every Set is a no-op.
	TTL time.Duration
}

// RedisCache stores records in Redis with a per-entry TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with a PING.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	metrics.RedisPoolSize.Set(float64(opts.PoolSize))
	logger.Info("redis connected", "pool_size", opts.PoolSize, "ttl", cfg.TTL)

	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

// Get returns the raw cached value, or false on miss, disabled cache, or
// backend error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.ttl == 0 {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnCtx(ctx, "cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return raw, true
}

// Set stores value under key for the configured TTL. Failures are logged
// and swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if c.ttl == 0 {
		return
	}

	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.WarnCtx(ctx, "cache set failed", "key", key, "error", err)
	}
}

// Delete removes a key. Failures are logged and swallowed.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		logger.WarnCtx(ctx, "cache delete failed", "key", key, "error", err)
	}
}

// Ping probes the backend. Used by the healthcheck command.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
