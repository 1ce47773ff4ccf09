package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/platinummonkey/morp/pkg/dependencies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAnalysis() *dependencies.ImpactAnalysis {
	return &dependencies.ImpactAnalysis{
		Changed:     []string{"core"},
		Impacted:    []string{"core", "ui", "web"},
		Direct:      []string{"ui"},
		Transitive:  []string{"web"},
		Unknown:     []string{},
		TotalImpact: 2,
	}
}

func TestKey(t *testing.T) {
	a := Key("fp", []string{"ui", "core", "ui"})
	b := Key("fp", []string{"core", "ui"})
	assert.Equal(t, a, b)
	assert.Contains(t, a, "fp:")

	assert.NotEqual(t, a, Key("other", []string{"core", "ui"}))
	assert.NotEqual(t, a, Key("fp", []string{"core"}))

	// Separators inside a name never merge two seed sets
	assert.NotEqual(t, Key("fp", []string{"core", "util"}), Key("fp", []string{"core\nutil"}))
	assert.NotEqual(t, Key("fp", []string{"a", "b"}), Key("fp", []string{"1:a1:b"}))
}

func TestNew(t *testing.T) {
	t.Run("memory by default", func(t *testing.T) {
		c, err := New(Config{})
		require.NoError(t, err)
		assert.Equal(t, TypeMemory, c.Name())
	})

	t.Run("none", func(t *testing.T) {
		c, err := New(Config{Type: TypeNone})
		require.NoError(t, err)
		assert.Equal(t, TypeNone, c.Name())
	})

	t.Run("redis missing URL", func(t *testing.T) {
		c, err := New(Config{Type: TypeRedis})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Nil(t, c)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := New(Config{Type: TypeRedis, RedisURL: "redis://" + mr.Addr()})
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, TypeRedis, c.Name())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(Config{Type: "memcached"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(DefaultConfig())

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "k", sampleAnalysis()))
	got, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sampleAnalysis(), got)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)

	require.NoError(t, c.Purge(ctx))
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestMemoryCache_InvalidInput(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{})

	_, _, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidCacheKey)
	assert.ErrorIs(t, c.Set(ctx, "", sampleAnalysis()), ErrInvalidCacheKey)
	assert.Error(t, c.Set(ctx, "k", nil))
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{Size: 10, TTL: 20 * time.Millisecond})

	require.NoError(t, c.Set(ctx, "k", sampleAnalysis()))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{Size: 10})

	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"} {
		require.NoError(t, c.Set(ctx, k, sampleAnalysis()))
	}

	assert.Equal(t, 10, c.Len())
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c Cache = NopCache{}

	require.NoError(t, c.Set(ctx, "k", sampleAnalysis()))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Purge(ctx))
	assert.NoError(t, c.Ping(ctx))
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
}
