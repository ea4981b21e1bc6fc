// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionSkew(t *testing.T) {
	tests := []struct {
		name   string
		cli    string
		server string
		warn   bool
	}{
		{name: "same version", cli: "1.4.2", server: "1.4.2", warn: false},
		{name: "patch drift ok", cli: "1.4.0", server: "1.4.9", warn: false},
		{name: "minor skew warns", cli: "1.4.2", server: "1.5.0", warn: true},
		{name: "major skew warns", cli: "1.4.2", server: "2.0.0", warn: true},
		{name: "v prefix tolerated", cli: "v1.4.2", server: "1.4.2", warn: false},
		{name: "dev build skips", cli: "dev", server: "1.4.2", warn: false},
		{name: "dev server skips", cli: "1.4.2", server: "dev", warn: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			warn := versionSkew(tc.cli, tc.server)
			if tc.warn {
				assert.NotEmpty(t, warn)
				assert.Contains(t, warn, tc.server)
			} else {
				assert.Empty(t, warn)
			}
		})
	}
}
