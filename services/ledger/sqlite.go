// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements Store on a single SQLite file. Suited to
// single-node deployments and tests; postgres is the shared-database
// backend.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    text        TEXT,
    date        TEXT,
    amount      REAL,
    currency    TEXT,
    vendor      TEXT,
    ttype       TEXT,
    referenceid TEXT,
    label       TEXT,
    fingerprint TEXT NOT NULL UNIQUE,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_ledger_fingerprint ON ledger(fingerprint);
`

// NewSQLiteStore opens (creating if needed) the ledger database at
// path and bootstraps the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Upsert inserts or, on a fingerprint conflict, updates every column
// except the fingerprint itself and created_at.
func (s *SQLiteStore) Upsert(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO ledger (text, date, amount, currency, vendor, ttype, referenceid, label, fingerprint)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(fingerprint) DO UPDATE SET
    text = excluded.text,
    date = excluded.date,
    amount = excluded.amount,
    currency = excluded.currency,
    vendor = excluded.vendor,
    ttype = excluded.ttype,
    referenceid = excluded.referenceid,
    label = excluded.label`

	if _, err := s.db.ExecContext(ctx, q,
		e.Text, e.Date, e.Amount, e.Currency, e.Vendor, e.Type, e.ReferenceID, e.Label, e.Fingerprint,
	); err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

// List returns entries newest-first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	limit, offset = clampList(limit, offset)

	const q = `
SELECT text, date, amount, currency, vendor, ttype, referenceid, label, fingerprint, created_at
FROM ledger ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Text, &e.Date, &e.Amount, &e.Currency, &e.Vendor,
			&e.Type, &e.ReferenceID, &e.Label, &e.Fingerprint, &e.CreatedAt,
		); err != nil {
			return nil, storeErr("list scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list rows", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
