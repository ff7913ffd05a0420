package passmgr

import (
	"sync"
)

// SpecKey identifies one specialization of a function: its name and the
// argument types it was specialized for, e.g. "double,int32".
type SpecKey struct {
	Function  string
	Signature string
}

func (k SpecKey) String() string {
	return k.Function + "(" + k.Signature + ")"
}

// Cache memoizes lowered specializations. Implementations must be safe for
// concurrent use.
type Cache interface {
	Lookup(key SpecKey) (*Lowered, bool)
	Insert(key SpecKey, l *Lowered)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[SpecKey]*Lowered
	hits    int
	misses  int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[SpecKey]*Lowered)}
}

func (c *MemoryCache) Lookup(key SpecKey) (*Lowered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return l, ok
}

// Insert keeps the first entry stored under key.
func (c *MemoryCache) Insert(key SpecKey, l *Lowered) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = l
	}
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns lookup hit and miss counts.
func (c *MemoryCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
