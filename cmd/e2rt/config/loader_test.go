// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateEnv points the loader at a temp home and neutralizes any
// E2RT_* variables leaking in from the test environment.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("E2RT_API_URL", "")
	t.Setenv("E2RT_RELAY_URL", "")
	t.Setenv("E2RT_COMPANY_NAME", "")
	return home
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := isolateEnv(t)

	dir := filepath.Join(home, configDirName)
	require.NoError(t, os.MkdirAll(dir, 0750))
	body := "api_url: http://api.internal:8000\nrelay_url: ws://relay.internal:8001\ncompany_name: Acme Pte Ltd\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(body), 0640))

	cfg, err := load()
	require.NoError(t, err)
	require.Equal(t, "http://api.internal:8000", cfg.APIURL)
	require.Equal(t, "ws://relay.internal:8001", cfg.RelayURL)
	require.Equal(t, "Acme Pte Ltd", cfg.CompanyName)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := isolateEnv(t)

	dir := filepath.Join(home, configDirName)
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("api_url: http://from-file:8000\n"), 0640))

	t.Setenv("E2RT_API_URL", "http://from-env:8000")
	t.Setenv("E2RT_COMPANY_NAME", "Env Co")

	cfg, err := load()
	require.NoError(t, err)
	require.Equal(t, "http://from-env:8000", cfg.APIURL)
	require.Equal(t, "Env Co", cfg.CompanyName)
	// Untouched fields keep their defaults.
	require.Equal(t, Default().RelayURL, cfg.RelayURL)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	home := isolateEnv(t)

	dir := filepath.Join(home, configDirName)
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("api_url: [unclosed\n"), 0640))

	_, err := load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}

func TestSaveRoundTrips(t *testing.T) {
	isolateEnv(t)

	want := Config{
		APIURL:      "http://10.0.0.5:8000",
		RelayURL:    "ws://10.0.0.5:8001",
		CompanyName: "Rahmadifa Trading",
	}
	path, err := Save(want)
	require.NoError(t, err)
	require.FileExists(t, path)

	cfg, err := load()
	require.NoError(t, err)
	require.Equal(t, want, cfg)
}
