// SPDX-License-Identifier: MIT

// Package cache caches substructure search results: blueprint UID lists
// keyed by the canonical query SMILES.
package cache

import (
	"sync"
	"time"
)

// Cache is a thread-safe result cache with per-entry TTL.
type Cache interface {
	// Get retrieves the hits for a query key. The second return is false
	// when the key is unknown or expired.
	Get(key string) ([]string, bool)
	// Set stores the hits for a query key with the given TTL.
	Set(key string, hits []string, ttl time.Duration)
	// Delete removes one key.
	Delete(key string)
	// Clear removes all entries.
	Clear()
	// Stats returns usage counters.
	Stats() Stats
}

// Stats holds cache usage counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	hits       []string
	expiration time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiration)
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemoryCache creates an in-memory cache. A positive cleanupInterval
// starts a background janitor that evicts expired entries.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
	}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.hits, true
}

func (c *memoryCache) Set(key string, hits []string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		hits:       hits,
		expiration: time.Now().Add(ttl),
	}
	c.stats.Sets++
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Stop stops the janitor goroutine.
func (c *memoryCache) Stop() {
	if c.janitor != nil {
		c.janitor.stop <- struct{}{}
	}
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

type noOpCache struct{}

// NewNoOpCache returns a cache that stores nothing, for disabling caching.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (noOpCache) Get(string) ([]string, bool)         { return nil, false }
func (noOpCache) Set(string, []string, time.Duration) {}
func (noOpCache) Delete(string)                       {}
func (noOpCache) Clear()                              {}
func (noOpCache) Stats() Stats                        { return Stats{} }
