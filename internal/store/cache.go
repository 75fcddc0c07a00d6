package store

import (
	"sync"
	"time"
)

// urlCache remembers which job URLs are already persisted so most merges can
// skip the read call. It is refreshed whole and cleared whole; a partially
// stale view is never served.
type urlCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	urls      map[string]struct{}
	fetchedAt time.Time
}

func newURLCache(ttl time.Duration) *urlCache {
	return &urlCache{ttl: ttl}
}

// get returns the cached URL set if it is still within the freshness window.
func (c *urlCache) get(now time.Time) (map[string]struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.urls == nil || c.ttl <= 0 || now.Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}
	out := make(map[string]struct{}, len(c.urls))
	for u := range c.urls {
		out[u] = struct{}{}
	}
	return out, true
}

// put replaces the cached set after a successful fresh read.
func (c *urlCache) put(urls map[string]struct{}, now time.Time) {
	cp := make(map[string]struct{}, len(urls))
	for u := range urls {
		cp[u] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = cp
	c.fetchedAt = now
}

// add records URLs the store itself just appended. The freshness window is
// left unchanged.
func (c *urlCache) add(urls ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.urls == nil {
		return
	}
	for _, u := range urls {
		c.urls[u] = struct{}{}
	}
}

// clear drops the cache entirely, forcing the next lookup to read fresh.
func (c *urlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = nil
	c.fetchedAt = time.Time{}
}
