package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/morp/pkg/dependencies"
)

// Cache types
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeNone   = "none"
)

// DefaultKeyPrefix namespaces impact results in a shared Redis
const DefaultKeyPrefix = "morp:impact:"

// Cache stores impact analyses by key
type Cache interface {
	// Get returns the cached analysis and whether it was found
	Get(ctx context.Context, key string) (*dependencies.ImpactAnalysis, bool, error)
	Set(ctx context.Context, key string, analysis *dependencies.ImpactAnalysis) error
	Purge(ctx context.Context) error
	Ping(ctx context.Context) error
	Stats() Stats
	// Name identifies the backend in metrics and logs
	Name() string
	Close() error
}

// Config selects and sizes a cache backend
type Config struct {
	Type      string
	Size      int
	TTL       time.Duration
	RedisURL  string
	KeyPrefix string
}

// DefaultConfig returns an in-memory cache configuration
func DefaultConfig() Config {
	return Config{
		Type:      TypeMemory,
		Size:      1024,
		TTL:       10 * time.Minute,
		KeyPrefix: DefaultKeyPrefix,
	}
}

// New creates the cache backend named by cfg.Type
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryCache(cfg), nil
	case TypeRedis:
		return NewRedisCache(cfg)
	case TypeNone:
		return NopCache{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrInvalidConfig, cfg.Type)
	}
}

// Key builds the cache key of an analysis: the graph fingerprint plus a digest
// of the distinct, sorted seeds. Each seed is length-prefixed so no two seed
// sets hash the same input.
func Key(fingerprint string, seeds []string) string {
	distinct := dependencies.NewSet(seeds...).Sorted()

	h := sha256.New()
	for _, seed := range distinct {
		h.Write([]byte(strconv.Itoa(len(seed))))
		h.Write([]byte{':'})
		h.Write([]byte(seed))
	}
	return fingerprint + ":" + hex.EncodeToString(h.Sum(nil))
}

// Stats holds cache statistics
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// counters tracks cache hits and misses
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*dependencies.ImpactAnalysis, bool, error) {
	return nil, false, nil
}

func (NopCache) Set(context.Context, string, *dependencies.ImpactAnalysis) error { return nil }
func (NopCache) Purge(context.Context) error                                      { return nil }
func (NopCache) Ping(context.Context) error                                       { return nil }
func (NopCache) Stats() Stats                                                     { return Stats{} }
func (NopCache) Name() string                                                     { return TypeNone }
func (NopCache) Close() error                                                     { return nil }
