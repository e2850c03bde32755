// Package ristretto backs the pattern match cache with
// dgraph-io/ristretto as an in-process L1 cache.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// matchTTL bounds how long a match result stays cached. Keys embed the
// control config generation, so entries from a replaced config are
// never read again; the TTL just lets ristretto reclaim them.
const matchTTL = 10 * time.Minute

// MatchCache caches glob pattern match results keyed by config
// generation and tool name.
type MatchCache struct {
	c *ristretto.Cache[string, bool]
}

// NewMatchCache creates a ristretto-backed match cache sized for
// maxEntries distinct keys.
func NewMatchCache(maxEntries int64) (*MatchCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: maxEntries * 10, // ~10x expected items
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MatchCache{c: c}, nil
}

// Get retrieves a cached match result.
func (m *MatchCache) Get(key string) (matched, ok bool) {
	return m.c.Get(key)
}

// Set stores a match result. Each entry costs one unit.
func (m *MatchCache) Set(key string, matched bool) {
	m.c.SetWithTTL(key, matched, 1, matchTTL)
}

// Close shuts down the cache and releases resources.
func (m *MatchCache) Close() {
	m.c.Close()
}
