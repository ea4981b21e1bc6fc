// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the operator CLI configuration from
// ~/.e2rt/e2rt.yaml.
//
// The file is optional. When it is missing the defaults below apply,
// and E2RT_* environment variables override both the defaults and the
// file, so a scripted environment never needs `e2rt init`.
package config

// Config is the operator CLI configuration.
type Config struct {
	// APIURL is the base URL of the ingestion API,
	// e.g. "http://localhost:8000".
	APIURL string `yaml:"api_url"`

	// RelayURL is the websocket relay base URL used by `e2rt watch`,
	// e.g. "ws://localhost:8001".
	RelayURL string `yaml:"relay_url"`

	// CompanyName labels submissions from this operator. `e2rt text`
	// uses it as the default source tag when --source is not given.
	CompanyName string `yaml:"company_name"`
}

// Default returns the configuration used when no file and no
// environment overrides are present.
func Default() Config {
	return Config{
		APIURL:   "http://localhost:8000",
		RelayURL: "ws://localhost:8001",
	}
}
