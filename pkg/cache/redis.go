package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/morp/pkg/dependencies"
)

// RedisCache stores analyses as JSON in Redis
type RedisCache struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	counters counters
}

// NewRedisCache connects to cfg.RedisURL and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("%w: no Redis URL provided", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis URL: %v", ErrInvalidConfig, err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to connect to redis: %v", ErrCacheUnavailable, err)
	}

	return newRedisCache(client, cfg), nil
}

func newRedisCache(client *redis.Client, cfg Config) *RedisCache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix, ttl: cfg.TTL}
}

// Get retrieves a cached analysis
func (c *RedisCache) Get(ctx context.Context, key string) (*dependencies.ImpactAnalysis, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidCacheKey
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.counters.record(false)
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var analysis dependencies.ImpactAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		// Delete corrupt data
		c.client.Del(ctx, c.prefix+key)
		c.counters.record(false)
		return nil, false, fmt.Errorf("failed to unmarshal impact analysis: %w", err)
	}

	c.counters.record(true)
	return &analysis, true, nil
}

// Set stores an analysis with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, analysis *dependencies.ImpactAnalysis) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	if analysis == nil {
		return fmt.Errorf("analysis cannot be nil")
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal impact analysis: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Purge deletes every key under the cache prefix
func (c *RedisCache) Purge(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats returns hit and miss counts
func (c *RedisCache) Stats() Stats { return c.counters.stats() }

// Name implements Cache
func (c *RedisCache) Name() string { return TypeRedis }

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
