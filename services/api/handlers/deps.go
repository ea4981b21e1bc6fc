// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP endpoints of the ingestion API.
// Each handler is a closure over a shared Deps value, so routes can be
// wired once at startup and unit tests can swap in fakes per field.
package handlers

import (
	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/observability"
	"github.com/ryanrahmadifa/e2RTLedger/services/claims"
	"github.com/ryanrahmadifa/e2RTLedger/services/extract"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
)

// DefaultMaxUploadBytes caps multipart uploads when Deps.MaxUploadBytes
// is zero.
const DefaultMaxUploadBytes = 20 << 20 // 20 MiB

// Deps carries the dependencies the handlers close over.
type Deps struct {
	// Tracker queues file uploads for asynchronous extraction.
	Tracker *extract.Tracker

	// Pipeline processes raw text submissions synchronously.
	Pipeline extract.Processor

	// Ledger serves read queries over persisted entries.
	Ledger ledger.Store

	// Claims answers fingerprint claim lookups.
	Claims claims.Store

	// Metrics is optional; handlers skip recording when nil.
	Metrics *observability.APIMetrics

	// Logger receives handler-level log lines. Defaults to
	// logging.Default when nil.
	Logger *logging.Logger

	// UploadDir archives accepted uploads before they are queued.
	// Empty disables archiving.
	UploadDir string

	// MaxUploadBytes rejects larger uploads with 413. Defaults to
	// DefaultMaxUploadBytes.
	MaxUploadBytes int64

	// Version and Commit identify the running build.
	Version string
	Commit  string
}

// Normalize fills optional fields so handlers can assume they are set.
// Called once at route setup.
func (d *Deps) Normalize() {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
}
