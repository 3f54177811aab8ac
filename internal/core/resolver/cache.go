package resolver

import "sync"

const defaultCacheSize = 256

// resultCache is a bounded map of search results, flushed wholesale on
// every index rebuild. Eviction is oldest-insertion-first; search keys
// repeat heavily in practice (the same order phrasing recurs), so
// anything smarter has not been worth it.
type resultCache struct {
	mu    sync.Mutex
	limit int
	items map[string]Result
	order []string
}

func newResultCache(limit int) *resultCache {
	return &resultCache{
		limit: limit,
		items: make(map[string]Result, limit),
	}
}

func (c *resultCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.items[key]
	return res, ok
}

func (c *resultCache) put(key string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; exists {
		c.items[key] = res
		return
	}
	for len(c.items) >= c.limit && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = res
	c.order = append(c.order, key)
}

func (c *resultCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]Result, c.limit)
	c.order = c.order[:0]
}
