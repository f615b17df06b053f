// Package cache fronts the graph store's lazy matrix materialization
//
// with a bounded, concurrent cache, so repeated IndexScan/NodeByLabelScan
// compiles for the same label don't re-walk the roaring bitmap's
// iterator machinery on every query.
//
// Backed by github.com/dgraph-io/ristretto/v2 rather than a
// hand-rolled container/list LRU, since ristretto's admission policy
// and TinyLFU eviction are a better fit for a cache that is read far
// more often than it is written.
package cache

import (
	"github.com/dgraph-io/ristretto/v2"
)

// MatrixCache caches opaque materialized matrix handles keyed by a
// schema id. The value type is `any` because callers on either side of
// this package (label bitmaps vs. relation matrices) cache different
// concrete types.
type MatrixCache struct {
	c *ristretto.Cache[uint64, any]
}

// New returns a cache sized for approximately maxItems entries.
func New(maxItems int64) (*MatrixCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, any]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MatrixCache{c: c}, nil
}

// Get returns the cached value for key, if present and not evicted.
func (m *MatrixCache) Get(key uint64) (any, bool) {
	return m.c.Get(key)
}

// Set stores value under key with cost 1 (one matrix handle).
func (m *MatrixCache) Set(key uint64, value any) {
	m.c.Set(key, value, 1)
}

// Invalidate drops key, used when a label/relation matrix is mutated
// and a cached handle would otherwise go stale.
func (m *MatrixCache) Invalidate(key uint64) {
	m.c.Del(key)
}

// Close releases the cache's background goroutines.
func (m *MatrixCache) Close() {
	m.c.Close()
}
