// Package cache provides the generic hashicorp/golang-lru/v2 wrapper
// behind CodeVault's LRU caches: the process-wide BM25 index cache keyed
// by (basePath, providerName, dimensions), and each rank.Ranker's
// query-embedding cache. There is no chunk-content cache; chunk bodies
// are read from the store on every search.
//
// internal/tokencount's counterCache applies the same
// hashicorp/golang-lru/v2-backed singleton pattern to tiktoken encoders;
// this package lifts that pattern into a reusable generic type so every
// other process-wide cache shares one implementation instead of
// reinventing the mutex-around-LRU shape per package.
package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2"
)

// LRU is a thread-safe, fixed-capacity cache keyed by K, holding V.
type LRU[K comparable, V any] struct {
	mu   sync.Mutex
	lru  *lru.Cache[K, V]
	size int
}

// New builds an LRU with the given capacity (at least 1).
func New[K comparable, V any](size int) *LRU[K, V] {
	if size < 1 {
		size = 1
	}
	l, _ := lru.New[K, V](size)
	return &LRU[K, V]{lru: l, size: size}
}

// Get returns the cached value for key, if present.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

// Add inserts or replaces key's value, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *LRU[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, value)
}

// GetOrCompute returns the cached value for key, computing and storing it
// via build on a miss. The lock is not held while build runs, so two
// callers that miss the same key at the same time may both call build;
// the value added last replaces the other.
func (c *LRU[K, V]) GetOrCompute(key K, build func() (V, error)) (V, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.lru.Add(key, v)
	c.mu.Unlock()
	return v, nil
}

// Remove evicts key, if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Purge empties the cache.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of entries currently cached.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
