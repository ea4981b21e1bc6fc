// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"context"
	"fmt"
)

// Store persists ledger entries. Upsert is keyed on fingerprint: a
// second write with the same fingerprint updates every other column and
// never creates a second row, which is what makes pipeline replays
// after a crash harmless.
type Store interface {
	Upsert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// StoreError wraps a backend failure with the operation that hit it.
// The pipeline maps any StoreError to the storage_failed outcome.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeErr keeps backend call sites terse.
func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

const (
	// DefaultListLimit bounds List when the caller passes 0.
	DefaultListLimit = 50
	// MaxListLimit caps List regardless of what the caller asks for.
	MaxListLimit = 500
)

// clampList normalizes limit/offset for all backends.
func clampList(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
