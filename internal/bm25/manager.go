package bm25

import (
	"strconv"
	"strings"

	"github.com/codevault/codevault/internal/cache"
	"github.com/codevault/codevault/internal/config"
)

// DefaultCacheSize is how many per-(basePath, provider, dimensions)
// indices the process-wide Manager retains.
const DefaultCacheSize = 10

// Manager is the LRU-bounded cache of Index values keyed by workspace and
// active embedding model, so a provider or dimensionality switch gets its
// own index rather than silently scoring against a stale vocabulary.
type Manager struct {
	cache *cache.LRU[string, *Index]
}

// NewManager builds a Manager holding at most size indices.
func NewManager(size int) *Manager {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Manager{cache: cache.New[string, *Index](size)}
}

// Key builds the cache key for one (basePath, providerName, dimensions) tuple.
func Key(basePath, providerName string, dimensions int) string {
	return strings.Join([]string{basePath, providerName, strconv.Itoa(dimensions)}, "\x1f")
}

// Get returns the Index for the given scope, creating an empty one on
// first use.
func (m *Manager) Get(basePath, providerName string, dimensions int) *Index {
	idx, _ := m.cache.GetOrCompute(Key(basePath, providerName, dimensions), func() (*Index, error) {
		return New(), nil
	})
	return idx
}

// Clear empties every index cached by m.
func (m *Manager) Clear() {
	m.cache.Purge()
}

// defaultManager is the process-wide BM25 LRU singleton; the other
// process-wide singleton is internal/tokencount's counter cache.
var defaultManager = NewManager(config.Int(DefaultCacheSize, config.EnvMaxBM25Cache))

// Default returns the process-wide Manager.
func Default() *Manager {
	return defaultManager
}

// Clear empties the process-wide Manager's cached indices.
func Clear() {
	defaultManager.Clear()
}
