package debounce

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	firstSeen time.Time
	lastSeen  time.Time
	fired     bool
}

// MemoryCache is a process-local Cache guarded by a single mutex.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	hold    time.Duration
	ttl     time.Duration
}

func NewMemoryCache(hold, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*entry),
		hold:    hold,
		ttl:     ttl,
	}
}

func (c *MemoryCache) Observe(_ context.Context, route string, now time.Time) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[route]
	if !ok || c.expired(e, now) {
		c.entries[route] = &entry{firstSeen: now, lastSeen: now}
		return Decision{FirstSeen: now}, nil
	}
	if now.After(e.lastSeen) {
		e.lastSeen = now
	}
	return decide(e.firstSeen, now, e.fired, c.hold), nil
}

func (c *MemoryCache) MarkFired(_ context.Context, route string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[route]
	if !ok {
		e = &entry{firstSeen: now}
		c.entries[route] = e
	}
	e.fired = true
	if now.After(e.lastSeen) {
		e.lastSeen = now
	}
	return nil
}

func (c *MemoryCache) Sweep(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for route, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, route)
			n++
		}
	}
	return n, nil
}

// Len returns the number of tracked routes.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error { return nil }

func (c *MemoryCache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastSeen) > c.ttl
}
