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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFP = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

// storeUnderTest runs the claim lifecycle suite against any backend.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		status, err := store.Claim(ctx, testFP)
		require.NoError(t, err)
		assert.Equal(t, Accepted, status)
	})

	t.Run("second claim loses", func(t *testing.T) {
		status, err := store.Claim(ctx, testFP)
		require.NoError(t, err)
		assert.Equal(t, AlreadyClaimed, status)
	})

	t.Run("contains sees provisional claim", func(t *testing.T) {
		ok, err := store.Contains(ctx, testFP)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release frees the fingerprint", func(t *testing.T) {
		require.NoError(t, store.Release(ctx, testFP))

		ok, err := store.Contains(ctx, testFP)
		require.NoError(t, err)
		assert.False(t, ok)

		status, err := store.Claim(ctx, testFP)
		require.NoError(t, err)
		assert.Equal(t, Accepted, status)
	})

	t.Run("confirm makes the claim permanent", func(t *testing.T) {
		require.NoError(t, store.Confirm(ctx, testFP))

		status, err := store.Claim(ctx, testFP)
		require.NoError(t, err)
		assert.Equal(t, AlreadyClaimed, status)

		// Release is a no-op on permanent claims
		require.NoError(t, store.Release(ctx, testFP))
		status, err = store.Claim(ctx, testFP)
		require.NoError(t, err)
		assert.Equal(t, AlreadyClaimed, status)
	})

	t.Run("confirm without a claim fails", func(t *testing.T) {
		err := store.Confirm(ctx, fpOf('a'))
		assert.ErrorIs(t, err, ErrNotClaimed)
	})

	t.Run("confirm after release fails", func(t *testing.T) {
		fp := fpOf('b')
		status, err := store.Claim(ctx, fp)
		require.NoError(t, err)
		require.Equal(t, Accepted, status)

		require.NoError(t, store.Release(ctx, fp))
		assert.ErrorIs(t, store.Confirm(ctx, fp), ErrNotClaimed)
	})

	t.Run("single winner under concurrency", func(t *testing.T) {
		fp := fpOf('c')
		const rivals = 32

		var wg sync.WaitGroup
		accepted := make(chan struct{}, rivals)
		for i := 0; i < rivals; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, err := store.Claim(ctx, fp)
				if err == nil && status == Accepted {
					accepted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(accepted)

		wins := 0
		for range accepted {
			wins++
		}
		assert.Equal(t, 1, wins, "exactly one rival must win the claim")
	})
}

func fpOf(c byte) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	storeUnderTest(t, store)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	status, err := store.Claim(ctx, testFP)
	require.NoError(t, err)
	require.Equal(t, Accepted, status)

	time.Sleep(80 * time.Millisecond)

	status, err = store.Claim(ctx, testFP)
	require.NoError(t, err)
	assert.Equal(t, Accepted, status, "expired provisional claim must be reclaimable")

	// A claim expired before Confirm cannot be promoted by the old holder.
	time.Sleep(80 * time.Millisecond)
	assert.ErrorIs(t, store.Confirm(ctx, testFP), ErrNotClaimed)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(BadgerConfig{InMemory: true, TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()
	storeUnderTest(t, store)
}

func TestBadgerStoreTTLExpiry(t *testing.T) {
	// Badger TTLs have one-second granularity.
	store, err := NewBadgerStore(BadgerConfig{InMemory: true, TTL: time.Second})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	status, err := store.Claim(ctx, testFP)
	require.NoError(t, err)
	require.Equal(t, Accepted, status)

	time.Sleep(1200 * time.Millisecond)

	status, err = store.Claim(ctx, testFP)
	require.NoError(t, err)
	assert.Equal(t, Accepted, status, "expired provisional claim must be reclaimable")
}

func TestBadgerStorePersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = 0 // keep the test self-contained
	store, err := NewBadgerStore(cfg)
	require.NoError(t, err)

	status, err := store.Claim(ctx, testFP)
	require.NoError(t, err)
	require.Equal(t, Accepted, status)
	require.NoError(t, store.Confirm(ctx, testFP))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.Contains(ctx, testFP)
	require.NoError(t, err)
	assert.True(t, ok, "confirmed claims must survive restart")

	status, err = reopened.Claim(ctx, testFP)
	require.NoError(t, err)
	assert.Equal(t, AlreadyClaimed, status)
}

func TestBadgerStoreRequiresPath(t *testing.T) {
	_, err := NewBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "already_claimed", AlreadyClaimed.String())
	assert.Equal(t, "unknown", Status(42).String())
}
