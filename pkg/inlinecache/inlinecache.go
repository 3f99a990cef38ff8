// Package inlinecache implements the per-dispatch-family inline cache:
// a small LRU keyed by argument-tuple hash, resized on miss-rate
// pressure (§4.7). Adapted directly from the teacher's
// pkg/cache/cache.go LRUCache (container/list eviction list plus a
// Stats struct), generalized from an HTTP response cache to a
// dispatch-table lookup cache.
package inlinecache

import (
	"container/list"
	"sync"
	"time"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

// DefaultMaxSize is the configured maximum cache size named by §4.7.
const DefaultMaxSize = 8

// DefaultInitialSize is the starting size named by §4.7: "starts at 1".
const DefaultInitialSize = 1

// resizeAfterAccesses and resizeMissRate are the pressure thresholds
// named by §4.7: "after >= 100 accesses with miss rate > 30%, doubles".
const (
	resizeAfterAccesses = 100
	resizeMissRate      = 0.30
)

// entry is one cached (arg_tuple_hash -> implementation_ref) binding.
type entry struct {
	hash       uint64
	impl       dispatchtable.ImplRef
	hitCount   uint64
	lastAccess time.Time
}

// Stats tracks per-cache statistics retained for the profiler (§4.7).
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Resizes   uint64
	Clears    uint64
}

// Cache is the per-dispatch-family inline cache.
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	size     int
	items    map[uint64]*list.Element
	order    *list.List // front = most recently used
	stats    Stats
	accesses uint64
	misses   uint64
}

// New creates an inline cache starting at DefaultInitialSize, capped at
// maxSize (use DefaultMaxSize for the spec's default of 8).
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		maxSize: maxSize,
		size:    DefaultInitialSize,
		items:   make(map[uint64]*list.Element),
		order:   list.New(),
	}
}

// Get looks up hash; on hit, updates access bookkeeping and moves the
// entry to the front of the LRU order.
func (c *Cache) Get(hash uint64) (dispatchtable.ImplRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accesses++

	el, ok := c.items[hash]
	if !ok {
		c.misses++
		c.stats.Misses++
		c.maybeResizeLocked()
		return dispatchtable.NoImpl, false
	}

	e := el.Value.(*entry)
	e.hitCount++
	e.lastAccess = time.Now()
	c.order.MoveToFront(el)
	c.stats.Hits++
	c.maybeResizeLocked()
	return e.impl, true
}

// Put inserts or refreshes a binding, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *Cache) Put(hash uint64, impl dispatchtable.ImplRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[hash]; ok {
		e := el.Value.(*entry)
		e.impl = impl
		e.lastAccess = time.Now()
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.size {
		c.evictLRULocked()
	}

	e := &entry{hash: hash, impl: impl, lastAccess: time.Now()}
	el := c.order.PushFront(e)
	c.items[hash] = el
}

func (c *Cache) evictLRULocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.order.Remove(back)
	delete(c.items, e.hash)
	c.stats.Evictions++
}

// maybeResizeLocked doubles the cache's effective size, up to maxSize,
// once the miss-rate pressure threshold is crossed. Caller must hold
// c.mu.
func (c *Cache) maybeResizeLocked() {
	if c.accesses < resizeAfterAccesses || c.size >= c.maxSize {
		return
	}
	missRate := float64(c.misses) / float64(c.accesses)
	if missRate <= resizeMissRate {
		return
	}
	newSize := c.size * 2
	if newSize > c.maxSize {
		newSize = c.maxSize
	}
	if newSize != c.size {
		c.size = newSize
		c.stats.Resizes++
	}
	// Reset the pressure window so resize decisions are made on a
	// rolling basis rather than firing on every subsequent access once
	// crossed.
	c.accesses = 0
	c.misses = 0
}

// Clear empties the cache, recording the clear in Stats.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[uint64]*list.Element)
	c.order = list.New()
	c.stats.Clears++
}

// Stats returns a snapshot of the cache's statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Size returns the cache's current effective capacity (distinct from
// maxSize, the configured ceiling it may grow to).
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Family manages one inline cache per dispatch family (signature hash),
// creating new caches lazily on first use.
type Family struct {
	mu      sync.Mutex
	maxSize int
	caches  map[uint64]*Cache
}

// NewFamily creates a registry of per-signature inline caches.
func NewFamily(maxSize int) *Family {
	return &Family{maxSize: maxSize, caches: make(map[uint64]*Cache)}
}

// For returns the inline cache for signatureHash, creating it if absent.
func (f *Family) For(signatureHash uint64) *Cache {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.caches[signatureHash]
	if !ok {
		c = New(f.maxSize)
		f.caches[signatureHash] = c
	}
	return c
}
