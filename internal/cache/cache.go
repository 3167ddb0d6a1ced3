// Package cache keeps recently computed portal responses in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Lookup results reported to metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// ErrEmptyAddress is returned when Redis is enabled without an address.
var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Cache stores JSON encoded values under a key prefix with a fixed TTL.
// A nil *Cache is valid and never caches.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	log     logger.Logger
}

// New wraps client.
func New(client *redis.Client, cfg config.RedisConfig, m *metrics.Metrics, log logger.Logger) *Cache {
	return &Cache{
		client:  client,
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
		metrics: m,
		log:     log,
	}
}

// Key builds a cache key from a route and its query string. Parameter order does not matter.
func Key(route string, values url.Values) string {
	if len(values) == 0 {
		return route
	}
	canonical := make(url.Values, len(values))
	for k, vs := range values {
		sorted := slices.Clone(vs)
		slices.Sort(sorted)
		canonical[k] = sorted
	}
	return route + "?" + canonical.Encode()
}

// Ping checks the connection, for health reporting.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Invalidate removes every key under the prefix.
func (c *Cache) Invalidate(ctx context.Context) (int, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	removed := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cache keys: %w", err)
	}
	return removed, nil
}

// GetOrLoad returns the cached value of key, or calls load and caches its result.
// Redis failures are logged and fall through to load. Load errors are never cached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}

	full := c.prefix + key
	raw, err := c.client.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		var v T
		if decodeErr := json.Unmarshal(raw, &v); decodeErr == nil {
			c.metrics.CacheLookup(ResultHit)
			return v, nil
		}
		c.log.Warn("Discarding undecodable cache entry", logger.String("key", full))
		c.metrics.CacheLookup(ResultError)
	case errors.Is(err, redis.Nil):
		c.metrics.CacheLookup(ResultMiss)
	default:
		c.log.Warn("Cache read failed", logger.String("key", full), logger.Error(err))
		c.metrics.CacheLookup(ResultError)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("Cache encode failed", logger.String("key", full), logger.Error(err))
		return v, nil
	}
	if setErr := c.client.Set(ctx, full, encoded, c.ttl).Err(); setErr != nil {
		c.log.Warn("Cache write failed",
			logger.String("key", full),
			logger.Duration("ttl", c.ttl),
			logger.Error(setErr),
		)
	}
	return v, nil
}

