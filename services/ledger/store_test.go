// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(fp, vendor string) Entry {
	return Entry{
		Text:        "Monthly subscription fee",
		Date:        "2026-03-25",
		Amount:      45.00,
		Currency:    "USD",
		Vendor:      vendor,
		Type:        "debit",
		ReferenceID: "TXN-456789",
		Label:       "SaaS",
		Fingerprint: fp,
	}
}

// fpN builds a syntactically valid fingerprint from a single hex digit.
func fpN(c byte) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Entry)
		wantErr bool
	}{
		{"valid entry", func(e *Entry) {}, false},
		{"bad fingerprint", func(e *Entry) { e.Fingerprint = "nope" }, true},
		{"bad type", func(e *Entry) { e.Type = "Debit" }, true},
		{"bad currency", func(e *Entry) { e.Currency = "None" }, true},
		{"bad date", func(e *Entry) { e.Date = "yesterday" }, true},
		{"unknown label", func(e *Entry) { e.Label = "Gadgets" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEntry(fpN('a'), "Cloud Services Inc.")
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKnownLabel(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, KnownLabel(c), c)
	}
	assert.False(t, KnownLabel("Miscellaneous"))
	assert.False(t, KnownLabel(""))
}

// storeUnderTest runs the same behavioral suite against any Store.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store lists nothing", func(t *testing.T) {
		entries, err := store.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("upsert inserts", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, testEntry(fpN('1'), "ACME")))

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("upsert with same fingerprint updates in place", func(t *testing.T) {
		updated := testEntry(fpN('1'), "ACME Corp (updated)")
		updated.Amount = 99.99
		require.NoError(t, store.Upsert(ctx, updated))

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "upsert must not create a second row")

		entries, err := store.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "ACME Corp (updated)", entries[0].Vendor)
		assert.Equal(t, 99.99, entries[0].Amount)
		assert.Equal(t, fpN('1'), entries[0].Fingerprint)
	})

	t.Run("list returns newest first", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, testEntry(fpN('2'), "Second")))
		require.NoError(t, store.Upsert(ctx, testEntry(fpN('3'), "Third")))

		entries, err := store.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "Third", entries[0].Vendor)
		assert.Equal(t, "Second", entries[1].Vendor)
	})

	t.Run("list paginates", func(t *testing.T) {
		page, err := store.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "Second", page[0].Vendor)

		past, err := store.List(ctx, 10, 100)
		require.NoError(t, err)
		assert.Empty(t, past)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeUnderTest(t, store)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	storeUnderTest(t, store)

	t.Run("reopen sees persisted rows", func(t *testing.T) {
		require.NoError(t, store.Close())

		reopened, err := NewSQLiteStore(path)
		require.NoError(t, err)
		defer reopened.Close()

		n, err := reopened.Count(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})
}

func TestSQLiteStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}
