// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// database rows, file paths, or broker payloads. Using these validators
// prevents injection and path traversal from untrusted document metadata.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// fingerprintPattern matches a lowercase hex SHA-256 digest.
var fingerprintPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// currencyPattern matches ISO 4217 style currency codes (USD, EUR, IDR).
var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// dateLayouts are the input formats accepted for entry dates, tried in
// order. Classifier output and user input both normalize through these.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
	"January 2, 2006",
}

// ValidateFingerprint validates a document fingerprint.
//
// Valid fingerprints are exactly 64 lowercase hex characters (a SHA-256
// digest). Returns an error otherwise.
//
// Example:
//
//	if err := validation.ValidateFingerprint(fp); err != nil {
//	    return fmt.Errorf("invalid fingerprint: %w", err)
//	}
//	// Safe to use as a redis key suffix or SQL parameter
func ValidateFingerprint(fp string) error {
	if fp == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}

	if !fingerprintPattern.MatchString(fp) {
		return fmt.Errorf("invalid fingerprint format: %q (must be 64 lowercase hex chars)", fp)
	}

	return nil
}

// SanitizeCurrency normalizes and validates a currency code.
// Returns the uppercase code if valid, or an error if invalid.
func SanitizeCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", fmt.Errorf("currency cannot be empty")
	}
	if !currencyPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid currency code: %q (must be 3 letters)", code)
	}
	return normalized, nil
}

// ValidateEntryType checks a transaction direction. Only "debit" and
// "credit" are stored; anything else is rejected so the ledger stays
// queryable on the column.
func ValidateEntryType(ttype string) error {
	switch ttype {
	case "debit", "credit":
		return nil
	default:
		return fmt.Errorf("invalid entry type: %q (must be debit or credit)", ttype)
	}
}

// NormalizeDate parses a date string in any accepted layout and returns
// it as YYYY-MM-DD. Returns an error when no layout matches; callers
// decide the fallback (the pipeline defaults to today UTC).
func NormalizeDate(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("date cannot be empty")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date format: %q", s)
}

// SanitizeFilename reduces an upload filename to a safe base name.
//
// Strips any directory components, rejects empty results and dotfiles
// that would escape the archive directory. Returns the base name.
//
// Example:
//
//	name, err := validation.SanitizeFilename(header.Filename)
//	if err != nil {
//	    return err
//	}
//	dst := filepath.Join(uploadDir, name)
func SanitizeFilename(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename: %q", name)
	}
	if strings.ContainsAny(base, "\x00") {
		return "", fmt.Errorf("invalid filename: %q (contains NUL)", name)
	}
	return base, nil
}
