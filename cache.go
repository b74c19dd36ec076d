// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is the idle time after which a cached type may be evicted.
const DefaultCacheTTL = 5 * time.Minute

// A Cache holds proxy types keyed by type name and prototype ID, so that
// resolving many descriptors that share a prototype builds its type once.
//
// Entries are not evicted on a timer. Instead, a lookup that misses sweeps
// entries of the same type name that have not been used for the cache TTL.
// A Cache is safe for concurrent use.
type Cache struct {
	ttl time.Duration

	μ       sync.Mutex
	buckets map[string]*bucket
}

// A bucket holds the entries for one type name.
type bucket struct {
	μ       sync.Mutex
	entries map[string]*cacheEntry // prototype ID → entry
	flight  singleflight.Group
}

type cacheEntry struct {
	typ        *Type
	lastAccess time.Time
}

// NewCache returns a new empty cache whose entries are evicted after being
// idle for ttl. If ttl ≤ 0, DefaultCacheTTL is used.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl, buckets: make(map[string]*bucket)}
}

// DefaultCache returns the process-wide cache used when Options do not name
// one.
var DefaultCache = sync.OnceValue(func() *Cache { return NewCache(DefaultCacheTTL) })

func (c *Cache) bucketFor(typeName string) *bucket {
	c.μ.Lock()
	defer c.μ.Unlock()
	b, ok := c.buckets[typeName]
	if !ok {
		b = &bucket{entries: make(map[string]*cacheEntry)}
		c.buckets[typeName] = b
	}
	return b
}

// Lookup returns the type cached for typeName and id. If there is none, it
// calls build to construct one and caches the result if build succeeds.
// Concurrent lookups of the same missing key share a single call to build.
func (c *Cache) Lookup(typeName, id string, build func() (*Type, error)) (*Type, error) {
	return c.lookup(typeName, id, zap.L().Named("cloudclient"), build)
}

// lookup implements Lookup, logging cache activity to log.
func (c *Cache) lookup(typeName, id string, log *zap.Logger, build func() (*Type, error)) (*Type, error) {
	b := c.bucketFor(typeName)

	b.μ.Lock()
	now := time.Now()
	if e, ok := b.entries[id]; ok {
		e.lastAccess = now
		b.μ.Unlock()
		rootMetrics.cacheHits.Add(1)
		return e.typ, nil
	}
	nswept := b.sweep(now, c.ttl)
	b.μ.Unlock()

	rootMetrics.cacheMisses.Add(1)
	if nswept != 0 {
		rootMetrics.cacheEvicted.Add(int64(nswept))
		log.Debug("evicted idle types", zap.String("type", typeName), zap.Int("count", nswept))
	}

	v, err, _ := b.flight.Do(id, func() (any, error) {
		b.μ.Lock()
		e, ok := b.entries[id]
		b.μ.Unlock()
		if ok {
			return e.typ, nil // built by a lookup that finished since we missed
		}

		typ, err := build()
		if err != nil {
			return nil, err
		}
		b.μ.Lock()
		b.entries[id] = &cacheEntry{typ: typ, lastAccess: time.Now()}
		b.μ.Unlock()
		log.Debug("built type", zap.String("type", typeName), zap.String("id", id))
		return typ, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Type), nil
}

// sweep removes entries idle for at least ttl at now, and returns the number
// removed. The caller must hold b.μ.
func (b *bucket) sweep(now time.Time, ttl time.Duration) int {
	var n int
	for id, e := range b.entries {
		if now.Sub(e.lastAccess) >= ttl {
			delete(b.entries, id)
			n++
		}
	}
	return n
}

// Len reports the number of types in the cache.
func (c *Cache) Len() int {
	c.μ.Lock()
	defer c.μ.Unlock()
	var n int
	for _, b := range c.buckets {
		b.μ.Lock()
		n += len(b.entries)
		b.μ.Unlock()
	}
	return n
}

// Clear removes all types from the cache.
func (c *Cache) Clear() {
	c.μ.Lock()
	defer c.μ.Unlock()
	clear(c.buckets)
}
