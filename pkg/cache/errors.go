package cache

import "errors"

var (
	// ErrCacheUnavailable is returned when the cache backend cannot be reached
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrInvalidCacheKey is returned when a cache key is invalid
	ErrInvalidCacheKey = errors.New("invalid cache key")

	// ErrInvalidConfig is returned for an unusable cache configuration
	ErrInvalidConfig = errors.New("invalid cache config")
)
