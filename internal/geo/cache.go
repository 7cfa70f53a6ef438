package geo

import (
	"container/list"
	"sync"
	"time"

	"github.com/adalliance/tracker/internal/visit"
)

// Cache is a size-bounded LRU for geolocation results with per-outcome
// TTLs: successful lookups live long, failed lookups are remembered
// briefly so a flapping upstream is not hammered. A single lock guards
// both the read-check and write-insert paths.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int

	successTTL time.Duration
	failureTTL time.Duration

	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry struct {
	ip      string
	loc     *visit.Location // nil = remembered failure
	expires time.Time
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewCache builds a cache holding at most capacity entries.
func NewCache(capacity int, successTTL, failureTTL time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		entries:    make(map[string]*list.Element, capacity),
		order:      list.New(),
		capacity:   capacity,
		successTTL: successTTL,
		failureTTL: failureTTL,
	}
}

// Get returns the cached result for ip. ok is false when the caller should
// perform a fresh lookup; a remembered failure returns (nil, true).
func (c *Cache) Get(ip string) (loc *visit.Location, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.entries[ip]
	if !found {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*cacheEntry)
	if time.Now().After(ent.expires) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	if ent.loc == nil {
		return nil, true
	}
	cp := *ent.loc
	return &cp, true
}

// Put stores a lookup result. loc == nil records a failed lookup under the
// short failure TTL. Inserting past capacity evicts the least recently
// used entry.
func (c *Cache) Put(ip string, loc *visit.Location) {
	ttl := c.successTTL
	if loc == nil {
		ttl = c.failureTTL
	} else {
		cp := *loc
		loc = &cp
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.entries[ip]; found {
		ent := elem.Value.(*cacheEntry)
		ent.loc = loc
		ent.expires = time.Now().Add(ttl)
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		c.removeLocked(c.order.Back())
		c.evictions++
	}
	elem := c.order.PushFront(&cacheEntry{ip: ip, loc: loc, expires: time.Now().Add(ttl)})
	c.entries[ip] = elem
}

// SweepExpired drops every expired entry and reports how many were
// removed. Expiry is otherwise lazy (checked on Get), so a periodic sweep
// keeps long-idle entries from occupying capacity.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*cacheEntry).expires) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Stats returns current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      c.order.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	delete(c.entries, elem.Value.(*cacheEntry).ip)
	c.order.Remove(elem)
}
