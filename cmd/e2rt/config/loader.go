// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".e2rt"
	configFileName = "e2rt.yaml"
)

var (
	// Global is the loaded configuration shared by all commands.
	Global Config

	loadOnce sync.Once
	loadErr  error
)

// Load populates Global exactly once. A missing config file is not an
// error; `e2rt init` writes one, but defaults plus environment
// overrides are enough to run every command without it.
func Load() error {
	loadOnce.Do(func() {
		Global, loadErr = load()
	})
	return loadErr
}

// Path returns the config file location under the user's home
// directory.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Save writes cfg to the config path, creating the directory as
// needed, and returns the path written.
func Save(cfg Config) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func load() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		data, rerr := os.ReadFile(path)
		switch {
		case rerr == nil:
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, uerr)
			}
		case !os.IsNotExist(rerr):
			return cfg, fmt.Errorf("read %s: %w", path, rerr)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets E2RT_* variables win over the file. The names
// match the server-side variables so one environment block can drive
// both the services and the CLI.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("E2RT_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("E2RT_RELAY_URL"); v != "" {
		cfg.RelayURL = v
	}
	if v := os.Getenv("E2RT_COMPANY_NAME"); v != "" {
		cfg.CompanyName = v
	}
}
