// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package claims

import (
	"context"
	"sync"
	"time"
)

// claim is one tracked fingerprint. Provisional claims carry an expiry;
// permanent ones never lapse.
type claim struct {
	expiry    time.Time
	permanent bool
}

// MemoryStore is an in-process Store for tests and single-node dev
// mode. A janitor goroutine sweeps expired provisional claims.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]claim
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a MemoryStore with the given provisional TTL
// (DefaultTTL when ttl <= 0) and starts its sweep goroutine.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &MemoryStore{
		claims: make(map[string]claim),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Claim atomically records a provisional claim. The first caller for a
// fingerprint wins; later callers get AlreadyClaimed until the claim is
// confirmed, released, or expired.
func (s *MemoryStore) Claim(ctx context.Context, fingerprint string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return AlreadyClaimed, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.claims[fingerprint]; ok {
		if c.permanent || time.Now().Before(c.expiry) {
			return AlreadyClaimed, nil
		}
		// Expired provisional: fall through and take it over.
	}

	s.claims[fingerprint] = claim{expiry: time.Now().Add(s.ttl)}
	return Accepted, nil
}

// Confirm promotes a live provisional claim to permanent.
func (s *MemoryStore) Confirm(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[fingerprint]
	if !ok || (!c.permanent && time.Now().After(c.expiry)) {
		return ErrNotClaimed
	}
	s.claims[fingerprint] = claim{permanent: true}
	return nil
}

// Release drops a provisional claim. Unknown or permanent claims are
// left untouched.
func (s *MemoryStore) Release(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.claims[fingerprint]; ok && !c.permanent {
		delete(s.claims, fingerprint)
	}
	return nil
}

// Contains reports whether a live claim exists for the fingerprint.
func (s *MemoryStore) Contains(ctx context.Context, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[fingerprint]
	if !ok {
		return false, nil
	}
	return c.permanent || time.Now().Before(c.expiry), nil
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

// sweep removes expired provisional claims so the map stays bounded by
// live work rather than history.
func (s *MemoryStore) sweep() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for fp, c := range s.claims {
				if !c.permanent && now.After(c.expiry) {
					delete(s.claims, fp)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ Store = (*MemoryStore)(nil)
