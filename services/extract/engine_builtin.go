// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

// pageSeparator prefixes each PDF page so downstream consumers can see
// page boundaries in the combined text.
const pageSeparator = "\n\n--- Page %d ---\n\n"

// plainTextExts are read as-is, no parsing.
var plainTextExts = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// BuiltinEngine extracts text in-process. It handles plain text and
// PDFs with embedded text; scanned images need the remote OCR engine.
type BuiltinEngine struct{}

var _ Engine = BuiltinEngine{}

// NewBuiltinEngine returns the in-process engine.
func NewBuiltinEngine() BuiltinEngine { return BuiltinEngine{} }

// Extract reads filename's bytes into text. Unknown extensions return
// ErrUnsupportedFormat so callers can route to an OCR fallback.
func (BuiltinEngine) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case plainTextExts[ext]:
		docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
		if err != nil {
			return "", fmt.Errorf("load %s: %w", ext, err)
		}
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			parts = append(parts, d.PageContent)
		}
		return strings.Join(parts, "\n\n"), nil

	case ext == ".pdf":
		docs, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
		if err != nil {
			return "", fmt.Errorf("load pdf: %w", err)
		}
		var sb strings.Builder
		for i, d := range docs {
			fmt.Fprintf(&sb, pageSeparator, i+1)
			sb.WriteString(d.PageContent)
		}
		return sb.String(), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
