// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hub

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultDedupTTL is how long a key suppresses repeats.
	DefaultDedupTTL = 5 * time.Minute
	// DefaultDedupMaxEntries bounds the cache; the least recently
	// seen key is evicted first.
	DefaultDedupMaxEntries = 4096
)

// Dedup is a bounded TTL cache over recently seen keys. The relay runs
// one in front of the ledger hub so a replayed broker message does not
// reach clients twice. Eviction is deterministic: expired entries go
// first, then the oldest. The TTL window is fixed from the time a key
// is recorded; repeats inside the window do not extend it.
type Dedup struct {
	ttl time.Duration
	max int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently seen

	stop      chan struct{}
	closeOnce sync.Once
}

type dedupRecord struct {
	key    string
	seenAt time.Time
}

// NewDedup builds a cache and starts its janitor. Non-positive ttl or
// max fall back to the defaults.
func NewDedup(ttl time.Duration, max int) *Dedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if max <= 0 {
		max = DefaultDedupMaxEntries
	}
	d := &Dedup{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		stop:    make(chan struct{}),
	}
	go d.janitor()
	return d
}

// Seen reports whether key was observed within the TTL, and records it
// either way. A stale or new key returns false and starts a fresh TTL.
func (d *Dedup) Seen(key string) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.entries[key]; ok {
		rec := el.Value.(*dedupRecord)
		if now.Sub(rec.seenAt) < d.ttl {
			return true
		}
		rec.seenAt = now
		d.order.MoveToFront(el)
		return false
	}

	d.entries[key] = d.order.PushFront(&dedupRecord{key: key, seenAt: now})
	for len(d.entries) > d.max {
		back := d.order.Back()
		d.order.Remove(back)
		delete(d.entries, back.Value.(*dedupRecord).key)
	}
	return false
}

// Len reports the live entry count.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Close stops the janitor. Idempotent.
func (d *Dedup) Close() {
	d.closeOnce.Do(func() { close(d.stop) })
}

func (d *Dedup) janitor() {
	interval := d.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.sweep(now)
		}
	}
}

// sweep drops expired entries from the cold end of the list. Recency
// order means the scan stops at the first live entry.
func (d *Dedup) sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		back := d.order.Back()
		if back == nil {
			return
		}
		rec := back.Value.(*dedupRecord)
		if now.Sub(rec.seenAt) < d.ttl {
			return
		}
		d.order.Remove(back)
		delete(d.entries, rec.key)
	}
}
