// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Claim values. Provisional entries carry a badger TTL; permanent ones
// don't.
var (
	claimProvisional = []byte("p")
	claimPermanent   = []byte("c")
)

// BadgerConfig holds configuration for the embedded claim store.
type BadgerConfig struct {
	// Path is the directory for database files. Required unless
	// InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful
	// for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// TTL bounds provisional claims. DefaultTTL when zero.
	TTL time.Duration

	// GCInterval is how often to run value log garbage collection.
	// Default 5 minutes; 0 disables GC (always disabled in-memory).
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before
	// GC rewrites a value log file. Default 0.5.
	GCDiscardRatio float64

	// Logger receives badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		TTL:            DefaultTTL,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// BadgerStore implements Store on an embedded BadgerDB. This is the
// single-process backend: no external Redis, claims survive restarts,
// and TTL expiry of provisional claims is handled by badger itself.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	gcStop chan struct{}
	gcDone chan struct{}
	logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadgerStore opens the claim database described by cfg and starts
// the GC loop when configured.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent claim store")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio > 1 {
		cfg.GCDiscardRatio = 0.5
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create claim store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open claim store: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// Claim records a provisional claim in a serializable transaction. A
// commit conflict means a rival inserted first and counts as
// AlreadyClaimed.
func (s *BadgerStore) Claim(ctx context.Context, fingerprint string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return AlreadyClaimed, err
	}

	var stat Status
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(fingerprint))
		switch {
		case err == nil:
			// Live claim exists; expired TTL entries are invisible here.
			stat = AlreadyClaimed
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			stat = Accepted
			entry := badger.NewEntry([]byte(fingerprint), claimProvisional).WithTTL(s.ttl)
			return txn.SetEntry(entry)
		default:
			return err
		}
	})
	if errors.Is(err, badger.ErrConflict) {
		return AlreadyClaimed, nil
	}
	if err != nil {
		return AlreadyClaimed, fmt.Errorf("badger claim: %w", err)
	}
	return stat, nil
}

// Confirm rewrites a live provisional claim without a TTL. Confirming
// an already-permanent claim is a no-op; a missing or lapsed claim is
// ErrNotClaimed.
func (s *BadgerStore) Confirm(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotClaimed
		}
		if err != nil {
			return err
		}

		permanent := false
		if err := item.Value(func(val []byte) error {
			permanent = len(val) > 0 && val[0] == claimPermanent[0]
			return nil
		}); err != nil {
			return err
		}
		if permanent {
			return nil
		}
		return txn.Set([]byte(fingerprint), claimPermanent)
	})
	if err != nil && !errors.Is(err, ErrNotClaimed) {
		return fmt.Errorf("badger confirm: %w", err)
	}
	return err
}

// Release deletes a provisional claim. Missing or permanent claims are
// left alone.
func (s *BadgerStore) Release(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		permanent := false
		if err := item.Value(func(val []byte) error {
			permanent = len(val) > 0 && val[0] == claimPermanent[0]
			return nil
		}); err != nil {
			return err
		}
		if permanent {
			return nil
		}
		return txn.Delete([]byte(fingerprint))
	})
	if err != nil {
		return fmt.Errorf("badger release: %w", err)
	}
	return nil
}

// Contains reports whether a live claim exists for the fingerprint.
func (s *BadgerStore) Contains(ctx context.Context, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger contains: %w", err)
	}
	return found, nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

// gcLoop periodically triggers value log GC. ErrNoRewrite means no GC
// was needed, not a failure.
func (s *BadgerStore) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("claim store value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

var _ Store = (*BadgerStore)(nil)
