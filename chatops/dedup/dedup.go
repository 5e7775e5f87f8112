/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package dedup suppresses chat events that are re-delivered within a time
// window. The state is in-memory and resets when the process restarts.
package dedup

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is how long an event id is remembered.
const DefaultTTL = 5 * time.Minute

// Deduplicator remembers recently seen event ids.
type Deduplicator struct {
	ttl      time.Duration
	capacity uint64

	mu    sync.Mutex
	cache *ttlcache.Cache[string, time.Time]
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithTTL overrides the retention window.
func WithTTL(ttl time.Duration) Option {
	return func(d *Deduplicator) {
		d.ttl = ttl
	}
}

// WithCapacity bounds the number of remembered ids. Once full, the oldest
// entries are dropped first. Zero means unbounded.
func WithCapacity(n uint64) Option {
	return func(d *Deduplicator) {
		d.capacity = n
	}
}

// New constructs a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(d)
	}

	cacheOpts := []ttlcache.Option[string, time.Time]{
		ttlcache.WithTTL[string, time.Time](d.ttl),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	}
	if d.capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, time.Time](d.capacity))
	}
	d.cache = ttlcache.New(cacheOpts...)
	return d
}

// IsDuplicate reports whether eventID was already seen within the window.
// Expired ids are evicted before the check; an unseen id is recorded.
// Empty ids are never considered duplicates.
func (d *Deduplicator) IsDuplicate(eventID string) bool {
	if eventID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache.DeleteExpired()
	if d.cache.Has(eventID) {
		return true
	}
	d.cache.Set(eventID, time.Now(), ttlcache.DefaultTTL)
	return false
}

// Len returns the number of ids currently remembered.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache.DeleteExpired()
	return d.cache.Len()
}
