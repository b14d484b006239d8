package expr

import "sync"

// Cache keeps one Compiled expression per distinct source string and is
// safe for concurrent use by multiple transformer goroutines (spec
// section 5: "Compiled expression caches MUST be concurrency-safe").
// Concurrent first Gets of the same string may each compile it; the last
// one stored is kept.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Compiled
}

// NewCache returns an empty, ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Compiled)}
}

// Get returns the Compiled expression for src, compiling and storing it
// on first use. A CompileError from Compile is returned uncached so a
// corrected expression string can still succeed.
func (c *Cache) Get(src string) (*Compiled, error) {
	c.mu.RLock()
	ce, ok := c.entries[src]
	c.mu.RUnlock()
	if ok {
		return ce, nil
	}

	compiled, err := Compile(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[src] = compiled
	c.mu.Unlock()
	return compiled, nil
}
