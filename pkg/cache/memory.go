package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/morp/pkg/dependencies"
)

// MemoryCache implements an in-process LRU cache with expiry
type MemoryCache struct {
	cache    *lru.LRU[string, *dependencies.ImpactAnalysis]
	counters counters
}

// NewMemoryCache creates a memory cache holding at most cfg.Size entries for cfg.TTL
func NewMemoryCache(cfg Config) *MemoryCache {
	size := cfg.Size
	if size < 10 {
		size = 10 // Minimum 10 entries
	}

	return &MemoryCache{
		cache: lru.NewLRU[string, *dependencies.ImpactAnalysis](size, nil, cfg.TTL),
	}
}

// Get retrieves a cached analysis
func (c *MemoryCache) Get(ctx context.Context, key string) (*dependencies.ImpactAnalysis, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidCacheKey
	}

	analysis, ok := c.cache.Get(key)
	c.counters.record(ok)
	return analysis, ok, nil
}

// Set stores an analysis
func (c *MemoryCache) Set(ctx context.Context, key string, analysis *dependencies.ImpactAnalysis) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	if analysis == nil {
		return fmt.Errorf("analysis cannot be nil")
	}

	c.cache.Add(key, analysis)
	return nil
}

// Purge removes every entry
func (c *MemoryCache) Purge(ctx context.Context) error {
	c.cache.Purge()
	return nil
}

// Ping always succeeds
func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

// Len returns the number of live entries
func (c *MemoryCache) Len() int { return c.cache.Len() }

// Stats returns hit and miss counts
func (c *MemoryCache) Stats() Stats { return c.counters.stats() }

// Name implements Cache
func (c *MemoryCache) Name() string { return TypeMemory }

// Close releases resources
func (c *MemoryCache) Close() error {
	c.cache.Purge()
	return nil
}
