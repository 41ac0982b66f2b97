// Package ttlcache provides a small in-memory key-value cache with
// per-entry expiry and an atomic take-if operation. It backs the gateway's
// PKCE challenge store, where "verify and consume" must be one step so a
// key can never be redeemed twice.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val       V
	expiresAt time.Time
}

// Cache is safe for concurrent use. All operations take the cache lock, so
// concurrent TakeIf calls on the same key are mutually exclusive and at
// most one succeeds.
type Cache[V any] struct {
	mu        sync.Mutex
	entries   map[string]entry[V]
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// New creates a cache whose entries expire ttl after insertion. A nil now
// func defaults to time.Now; tests inject a fixed clock.
func New[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     now,
	}
}

// Put stores val under key, replacing any previous entry. Insertion
// opportunistically sweeps expired entries so an abandoned flow never
// leaks memory indefinitely.
func (c *Cache[V]) Put(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.maybeSweepLocked(now)
	c.entries[key] = entry[V]{val: val, expiresAt: now.Add(c.ttl)}
}

// TakeIf returns and deletes the entry for key if it exists, has not
// expired, and pred accepts its value. The check and the delete happen
// under one lock, which is what makes entries single-use. A miss does not
// say why it missed; callers are not given an oracle to probe.
func (c *Cache[V]) TakeIf(key string, pred func(V) bool) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	if pred != nil && !pred(e.val) {
		return zero, false
	}

	delete(c.entries, key)
	return e.val, true
}

// Sweep removes all expired entries and returns how many were purged.
// Called periodically by the housekeeping worker.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len reports the number of live entries, expired ones included until the
// next sweep touches them.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// maybeSweepLocked rate-limits full map scans; Put calls it on every
// insertion.
func (c *Cache[V]) maybeSweepLocked(now time.Time) {
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < c.ttl/2 {
		return
	}
	c.sweepLocked(now)
}

func (c *Cache[V]) sweepLocked(now time.Time) int {
	c.lastSweep = now

	purged := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			purged++
		}
	}
	return purged
}
