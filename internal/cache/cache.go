// Package cache provides an in-memory read-result cache for the gateway.
// Entries are JSON-encoded result payloads keyed by a hash of the normalized
// request; write actions invalidate by bumping a per-collection generation
// rather than scanning keys.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"
)

// ResultCache is a W-TinyLFU cache backed by otter with a fixed TTL.
type ResultCache struct {
	cache *otter.Cache[string, []byte]
	gens  sync.Map // collection -> *atomic.Uint64
}

// New creates a cache with the given max entry count and TTL.
func New(maxSize int, ttl time.Duration) (*ResultCache, error) {
	c, err := otter.New[string, []byte](&otter.Options[string, []byte]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &ResultCache{cache: c}, nil
}

// Get retrieves a cached result for the collection at its current generation.
func (rc *ResultCache) Get(collection, key string) ([]byte, bool) {
	return rc.cache.GetIfPresent(rc.scopedKey(collection, key))
}

// Set stores a result under the collection's current generation.
func (rc *ResultCache) Set(collection, key string, val []byte) {
	rc.cache.Set(rc.scopedKey(collection, key), val)
}

// Invalidate marks every cached result for the collection stale by advancing
// its generation. Stale entries age out of the cache via TTL and size bounds.
func (rc *ResultCache) Invalidate(collection string) {
	rc.generation(collection).Add(1)
}

func (rc *ResultCache) scopedKey(collection, key string) string {
	return fmt.Sprintf("%s:%d:%s", collection, rc.generation(collection).Load(), key)
}

func (rc *ResultCache) generation(collection string) *atomic.Uint64 {
	if g, ok := rc.gens.Load(collection); ok {
		return g.(*atomic.Uint64)
	}
	g, _ := rc.gens.LoadOrStore(collection, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}
