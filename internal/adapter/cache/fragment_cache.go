package cache

import (
	"sync"
	"time"

	"doclink/internal/domain"
)

// FragmentCache keeps rendered per-symbol fragments for the preview
// server. Entries are tied to a build generation; Invalidate starts a new
// one so nothing rendered from an older tree is served.
type FragmentCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	buildGen uint64
}

// Fragment is a symbol with the HTML of its subtree.
type Fragment struct {
	Symbol domain.Symbol `json:"symbol"`
	HTML   string        `json:"html"`
}

type cacheEntry struct {
	fragment  Fragment
	timestamp time.Time
	buildGen  uint64
}

func NewFragmentCache(maxSize int, ttl time.Duration) *FragmentCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FragmentCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *FragmentCache) Get(name string) (Fragment, bool) {
	c.mu.RLock()
	entry, exists := c.entries[name]
	currentGen := c.buildGen
	c.mu.RUnlock()

	if !exists {
		return Fragment{}, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.buildGen != currentGen {
		c.mu.Lock()
		delete(c.entries, name)
		c.removeFromOrder(name)
		c.mu.Unlock()
		return Fragment{}, false
	}

	c.mu.Lock()
	c.moveToEnd(name)
	c.mu.Unlock()

	return entry.fragment, true
}

func (c *FragmentCache) Put(name string, fragment Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(name, fragment)
}

func (c *FragmentCache) put(name string, fragment Fragment) {
	entry := &cacheEntry{
		fragment:  fragment,
		timestamp: time.Now(),
		buildGen:  c.buildGen,
	}

	if _, exists := c.entries[name]; exists {
		c.entries[name] = entry
		c.moveToEnd(name)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[name] = entry
	c.order = append(c.order, name)
}

// Generation returns the current build generation.
func (c *FragmentCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildGen
}

// PutAt stores fragment only if gen is still the current generation, so a
// fragment rendered from a tree that has since been replaced is dropped.
func (c *FragmentCache) PutAt(name string, fragment Fragment, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.buildGen {
		return false
	}
	c.put(name, fragment)
	return true
}

func (c *FragmentCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.buildGen++
}

func (c *FragmentCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *FragmentCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *FragmentCache) moveToEnd(name string) {
	c.removeFromOrder(name)
	c.order = append(c.order, name)
}

func (c *FragmentCache) removeFromOrder(name string) {
	for i, k := range c.order {
		if k == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
