// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normal", "hello world", "hello world"},
		{"leading and trailing space", "  hello world  ", "hello world"},
		{"internal runs collapsed", "hello \t\t world", "hello world"},
		{"newlines collapsed", "hello\n\nworld", "hello world"},
		{"mixed whitespace", " hello \r\n\t world ", "hello world"},
		{"case folded", "Hello WORLD", "hello world"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		// sha256("hello world")
		want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
		assert.Equal(t, want, Fingerprint("hello world"))
	})

	t.Run("formatting does not change identity", func(t *testing.T) {
		a := Fingerprint("Invoice #42 from ACME for 12.50 USD")
		b := Fingerprint("  invoice   #42\nFROM acme\tfor 12.50   USD ")
		assert.Equal(t, a, b)
	})

	t.Run("different content differs", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("invoice 1"), Fingerprint("invoice 2"))
	})

	t.Run("output is 64 hex chars", func(t *testing.T) {
		fp := Fingerprint("anything")
		assert.Len(t, fp, 64)
		assert.Regexp(t, "^[a-f0-9]{64}$", fp)
	})
}
