// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and dev mode. Entries
// are kept in insertion order with a fingerprint index for upserts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int // fingerprint -> position in entries
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
	}
}

// Upsert inserts the entry or, when the fingerprint already exists,
// overwrites every column except the fingerprint and created_at.
func (s *MemoryStore) Upsert(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return storeErr("upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[e.Fingerprint]; ok {
		created := s.entries[pos].CreatedAt
		e.CreatedAt = created
		s.entries[pos] = e
		return nil
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.index[e.Fingerprint] = len(s.entries)
	s.entries = append(s.entries, e)
	return nil
}

// List returns entries newest-first.
func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	limit, offset = clampList(limit, offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if offset >= n {
		return []Entry{}, nil
	}

	out := make([]Entry, 0, limit)
	for i := n - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("count", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
