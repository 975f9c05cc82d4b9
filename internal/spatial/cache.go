package spatial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"galnav/internal/graph"
	"galnav/internal/metrics"
	"galnav/internal/route"
)

// DefaultCacheSize bounds the number of cached neighbor sets.
const DefaultCacheSize = 50_000

type cacheKey struct {
	center graph.Position
	radius float64
}

type cacheEntry struct {
	systems []graph.System
	expires time.Time
}

// Cache memoizes neighbor lookups of a slower oracle. Concurrent identical
// lookups share one backend call via singleflight. Errors are never cached.
// Returned slices are shared between callers and must not be modified.
type Cache struct {
	next route.Oracle[graph.System]
	ttl  time.Duration
	size int

	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
	group   singleflight.Group
}

// NewCache wraps next. A non-positive ttl disables expiry; a non-positive
// size uses DefaultCacheSize.
func NewCache(next route.Oracle[graph.System], ttl time.Duration, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		next:    next,
		ttl:     ttl,
		size:    size,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// Neighbors implements route.Oracle.
func (c *Cache) Neighbors(ctx context.Context, center graph.Position, radius float64) ([]graph.System, error) {
	key := cacheKey{center: center, radius: radius}
	if systems, ok := c.get(key); ok {
		metrics.OracleCache.WithLabelValues("hit").Inc()
		return systems, nil
	}

	sfKey := fmt.Sprintf("%g:%g:%g:%g", center.X, center.Y, center.Z, radius)
	// The shared call must outlive any single caller, or one canceled search
	// would fail every search waiting on the same lookup.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(sfKey, func() (interface{}, error) {
		systems, err := c.next.Neighbors(shared, center, radius)
		if err != nil {
			return nil, err
		}
		c.put(key, systems)
		return systems, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.OracleCache.WithLabelValues("shared").Inc()
		} else {
			metrics.OracleCache.WithLabelValues("miss").Inc()
		}
		return res.Val.([]graph.System), nil
	}
}

func (c *Cache) get(key cacheKey) ([]graph.System, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(e.expires) {
		return nil, false
	}
	return e.systems, true
}

func (c *Cache) put(key cacheKey, systems []graph.System) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.size {
		c.evictLocked()
	}
	c.entries[key] = &cacheEntry{
		systems: systems,
		expires: time.Now().Add(c.ttl),
	}
}

// evictLocked drops expired entries, then arbitrary ones until there is room.
func (c *Cache) evictLocked() {
	now := time.Now()
	if c.ttl > 0 {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	for k := range c.entries {
		if len(c.entries) < c.size {
			break
		}
		delete(c.entries, k)
	}
}

// Len returns the number of cached neighbor sets, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries and returns how many were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[cacheKey]*cacheEntry)
	return n
}
