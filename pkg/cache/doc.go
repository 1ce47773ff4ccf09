// Package cache stores impact analyses keyed by graph fingerprint and changed packages.
//
// Backends are an in-process expiring LRU (memory), Redis (redis) and a no-op
// cache (none). Keys embed the graph fingerprint, so a reloaded graph never
// serves stale results.
package cache
