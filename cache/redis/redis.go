// Package redis provides a report cache shared between processes through
// Redis. Reports are stored as JSON with a TTL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/reoring/ccv/validator"
)

// Config contains configuration options for the Redis cache.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "ccv:report:"
	KeyPrefix string

	// TTL bounds how long a report stays cached. Zero keeps it until Redis
	// evicts it.
	TTL time.Duration
}

// Cache implements cache.Cache on top of Redis.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// storedReport is the envelope written to Redis.
type storedReport struct {
	Report   validator.Report `json:"report"`
	StoredAt time.Time        `json:"stored_at"`
}

// New creates a Redis-backed cache.
func New(config Config) (*Cache, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ccv:report:"
	}
	return &Cache{client: config.Client, keyPrefix: config.KeyPrefix, ttl: config.TTL}, nil
}

// Get implements cache.Cache.
func (c *Cache) Get(ctx context.Context, key string) (validator.Report, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return validator.Report{}, false, nil
	}
	if err != nil {
		return validator.Report{}, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	var item storedReport
	if err := json.Unmarshal(raw, &item); err != nil {
		return validator.Report{}, false, fmt.Errorf("failed to unmarshal cached report: %w", err)
	}
	return item.Report, true, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(ctx context.Context, key string, r validator.Report) error {
	raw, err := json.Marshal(storedReport{Report: r, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Close closes the underlying client.
func (c *Cache) Close() error { return c.client.Close() }
