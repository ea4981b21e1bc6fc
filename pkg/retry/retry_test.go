// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return nil
		}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, Options{InitialDelay: time.Millisecond})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return boom
		}, Options{MaxAttempts: 3, InitialDelay: time.Millisecond})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxAttempts)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		bad := errors.New("bad request")
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return Permanent(bad)
		}, Options{MaxAttempts: 5, InitialDelay: time.Millisecond})
		require.Error(t, err)
		assert.ErrorIs(t, err, bad)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := Do(ctx, func() error {
			calls++
			return errors.New("transient")
		}, Options{MaxAttempts: 100, InitialDelay: 50 * time.Millisecond})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("permanent of nil is nil", func(t *testing.T) {
		assert.NoError(t, Permanent(nil))
	})
}
