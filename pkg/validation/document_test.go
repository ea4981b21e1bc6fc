// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"testing"
)

func TestValidateFingerprint(t *testing.T) {
	tests := []struct {
		name    string
		fp      string
		wantErr bool
	}{
		// Valid fingerprints
		{"sha256 of empty string", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", false},
		{"all zeros", "0000000000000000000000000000000000000000000000000000000000000000", false},
		{"all f", "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", false},

		// Invalid fingerprints
		{"empty", "", true},
		{"too short", "e3b0c44298fc1c14", true},
		{"too long", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85500", true},
		{"uppercase hex", "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", true},
		{"non-hex chars", "g3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", true},
		{"injection attempt", "e3b0c442'; DROP TABLE ledger--", true},
		{"whitespace", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85 ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFingerprint(tt.fp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFingerprint(%q) error = %v, wantErr %v", tt.fp, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeCurrency(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    string
		wantErr bool
	}{
		{"uppercase passthrough", "USD", "USD", false},
		{"lowercase normalized", "eur", "EUR", false},
		{"with spaces trimmed", "  idr  ", "IDR", false},
		{"empty", "", "", true},
		{"too short", "US", "", true},
		{"too long", "USDT", "", true},
		{"digits", "U5D", "", true},
		{"symbol", "US$", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeCurrency(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeCurrency(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeCurrency(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestValidateEntryType(t *testing.T) {
	tests := []struct {
		name    string
		ttype   string
		wantErr bool
	}{
		{"debit", "debit", false},
		{"credit", "credit", false},
		{"empty", "", true},
		{"uppercase", "DEBIT", true},
		{"other word", "transfer", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntryType(tt.ttype)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEntryType(%q) error = %v, wantErr %v", tt.ttype, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"iso passthrough", "2026-03-14", "2026-03-14", false},
		{"rfc3339", "2026-03-14T09:30:00Z", "2026-03-14", false},
		{"slash ymd", "2026/03/14", "2026-03-14", false},
		{"slash mdy", "03/14/2026", "2026-03-14", false},
		{"short month name", "14 Mar 2026", "2026-03-14", false},
		{"long month name", "March 14, 2026", "2026-03-14", false},
		{"surrounding spaces", "  2026-03-14  ", "2026-03-14", false},
		{"empty", "", "", true},
		{"garbage", "not a date", "", true},
		{"partial", "2026-03", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain name", "invoice.pdf", "invoice.pdf", false},
		{"path stripped", "/tmp/uploads/invoice.pdf", "invoice.pdf", false},
		{"traversal stripped", "../../etc/passwd", "passwd", false},
		{"spaces trimmed", "  receipt.txt  ", "receipt.txt", false},
		{"empty", "", "", true},
		{"dot", ".", "", true},
		{"dotdot", "..", "", true},
		{"just separator", "/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeFilename(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
