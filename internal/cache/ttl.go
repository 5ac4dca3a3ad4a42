// Package cache provides the in-process TTL cache fronting financial
// summary queries. It is an explicit instance injected where needed,
// never ambient global state.
package cache

import (
	"sync"
	"time"
)

// TTL is a simple in-memory cache with per-entry expiry. A background sweep
// evicts expired entries; Get never returns an expired value even between
// sweeps.
type TTL struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

type item struct {
	value any
	exp   time.Time
}

// New returns a TTL cache with the given duration and starts the sweep
// goroutine. Call Stop when the cache is no longer needed.
func New(ttl time.Duration) *TTL {
	c := &TTL{items: make(map[string]item), ttl: ttl, stop: make(chan struct{})}
	go c.sweep()
	return c
}

func (c *TTL) sweep() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-tick.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.items {
				if v.exp.Before(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Get returns the value for key if present and not expired.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || it.exp.Before(time.Now()) {
		return nil, false
	}
	return it.value, true
}

// Set stores the value for key with the cache TTL.
func (c *TTL) Set(key string, value any) {
	exp := time.Now().Add(c.ttl)
	c.mu.Lock()
	c.items[key] = item{value: value, exp: exp}
	c.mu.Unlock()
}

// Delete removes the key.
func (c *TTL) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeletePrefix removes all keys that start with prefix (e.g. "finance:" to
// drop every cached summary after a bulk mutation).
func (c *TTL) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *TTL) Clear() {
	c.mu.Lock()
	c.items = make(map[string]item)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *TTL) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (c *TTL) Stop() {
	c.once.Do(func() { close(c.stop) })
}
