// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package claims implements the atomic fingerprint claim store that
// gives the pipeline its single-winner guarantee.
//
// A claim goes through three states:
//
//	(absent) --Claim--> provisional (TTL) --Confirm--> permanent
//	                       |
//	                       +--Release / TTL expiry--> (absent)
//
// Claim is an atomic check-and-insert: exactly one caller per
// fingerprint wins while a provisional or permanent claim exists.
// Confirm is called only after the ledger write succeeded and makes
// the claim permanent. Release drops a provisional claim so the
// document can be retried after a classification or storage failure.
// A crash between Claim and Confirm self-heals when the TTL lapses;
// the ledger upsert and the relay dedup cache absorb the replay.
package claims

import (
	"context"
	"errors"
	"time"
)

// Status is the result of a Claim call.
type Status int

const (
	// Accepted means the caller now owns the provisional claim.
	Accepted Status = iota
	// AlreadyClaimed means another claim (provisional or permanent)
	// exists for the fingerprint.
	AlreadyClaimed
)

// String returns "accepted" or "already_claimed".
func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// ErrNotClaimed is returned by Confirm when the caller does not hold a
// live provisional claim for the fingerprint (never claimed, released,
// or expired).
var ErrNotClaimed = errors.New("no live provisional claim held for fingerprint")

// DefaultTTL bounds how long a provisional claim blocks rivals when the
// claimer dies without confirming or releasing.
const DefaultTTL = 5 * time.Minute

// Store is the claim store. Implementations are safe for concurrent
// use. Confirm and Release operate on claims taken by the same Store
// instance; Release of an unknown or already-confirmed claim is a
// no-op.
type Store interface {
	Claim(ctx context.Context, fingerprint string) (Status, error)
	Confirm(ctx context.Context, fingerprint string) error
	Release(ctx context.Context, fingerprint string) error
	Contains(ctx context.Context, fingerprint string) (bool, error)
	Close() error
}
