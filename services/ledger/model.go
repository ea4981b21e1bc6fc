// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ledger defines the ledger entry model, content fingerprinting,
// and the persistence backends (postgres, sqlite, memory).
package ledger

import (
	"fmt"
	"time"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/validation"
)

// Entry is one row of the ledger. The JSON shape doubles as the
// ledger_updates broadcast payload, so field names are part of the wire
// contract with relay clients.
type Entry struct {
	Text        string    `json:"text"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Vendor      string    `json:"vendor"`
	Type        string    `json:"ttype"` // debit | credit
	ReferenceID string    `json:"referenceid"`
	Label       string    `json:"label"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// Categories are the labels the classifier may assign. LabelOther is
// the fallback for anything the second stage cannot place.
var Categories = []string{
	"Meals & Entertainment",
	"Transport",
	"SaaS",
	"Travel",
	"Office",
	LabelOther,
}

// LabelOther is the catch-all category.
const LabelOther = "Other"

// KnownLabel reports whether label is one of Categories.
func KnownLabel(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}

// Validate checks the fields that reach storage and the broker. Text
// and vendor are free-form; everything else has a shape.
func (e Entry) Validate() error {
	if err := validation.ValidateFingerprint(e.Fingerprint); err != nil {
		return err
	}
	if err := validation.ValidateEntryType(e.Type); err != nil {
		return err
	}
	if _, err := validation.SanitizeCurrency(e.Currency); err != nil {
		return err
	}
	if _, err := validation.NormalizeDate(e.Date); err != nil {
		return fmt.Errorf("entry date: %w", err)
	}
	if !KnownLabel(e.Label) {
		return fmt.Errorf("unknown label: %q", e.Label)
	}
	return nil
}
