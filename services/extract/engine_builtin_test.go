// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinEngineText(t *testing.T) {
	engine := NewBuiltinEngine()
	ctx := context.Background()

	tests := []struct {
		filename string
		data     string
	}{
		{"receipt.txt", "UBER TRIP - SAN FRANCISCO, $23.45"},
		{"notes.md", "# March expenses\n\n- flight\n- hotel"},
		{"export.CSV", "date,amount\n2024-03-25,45.00"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := engine.Extract(ctx, tt.filename, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestBuiltinEngineUnsupported(t *testing.T) {
	engine := NewBuiltinEngine()
	ctx := context.Background()

	for _, name := range []string{"scan.png", "photo.JPG", "receipt.jpeg", "archive.zip", "noextension"} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Extract(ctx, name, []byte("data"))
			require.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestBuiltinEngineBadPDF(t *testing.T) {
	engine := NewBuiltinEngine()
	_, err := engine.Extract(context.Background(), "empty.pdf", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat, "pdf is a supported format even when the file is broken")
}
