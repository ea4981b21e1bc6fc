// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ryanrahmadifa/e2RTLedger/cmd/e2rt/config"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	initAPIURL   string // Pre-seed for the API URL prompt
	initRelayURL string // Pre-seed for the relay URL prompt
	initCompany  string // Pre-seed for the company name prompt
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// initCmd writes ~/.e2rt/e2rt.yaml through an interactive form.
//
// # Examples
//
//	e2rt init                                  # interactive prompts
//	e2rt init --api-url http://10.0.0.5:8000   # pre-seed a field
//	E2RT_API_URL=http://10.0.0.5:8000 e2rt init < /dev/null
//
// Without a terminal the form is skipped and the seeded values are
// written as-is, so provisioning scripts can run init non-interactively.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the e2rt config file",
	Long: `Creates ~/.e2rt/e2rt.yaml with the API and relay endpoints.

Existing values are loaded as defaults, so re-running init edits the
current config rather than starting over.`,
	Run: runInitCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	initCmd.Flags().StringVar(&initAPIURL, "api-url", "", "Ingestion API base URL")
	initCmd.Flags().StringVar(&initRelayURL, "relay-url", "", "Websocket relay base URL")
	initCmd.Flags().StringVar(&initCompany, "company", "", "Company name used as the default submission source")
	rootCmd.AddCommand(initCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runInitCommand(cmd *cobra.Command, _ []string) {
	// Seed from the existing config when it parses; a broken file
	// falls back to defaults so init can always repair it.
	cfg := config.Default()
	if err := config.Load(); err == nil {
		cfg = config.Global
	}
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = initAPIURL
	}
	if cmd.Flags().Changed("relay-url") {
		cfg.RelayURL = initRelayURL
	}
	if cmd.Flags().Changed("company") {
		cfg.CompanyName = initCompany
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("API URL").
					Description("Base URL of the ingestion API").
					Placeholder("http://localhost:8000").
					Validate(validateHTTPURL).
					Value(&cfg.APIURL),
				huh.NewInput().
					Title("Relay URL").
					Description("Websocket relay used by `e2rt watch`").
					Placeholder("ws://localhost:8001").
					Validate(validateWSURL).
					Value(&cfg.RelayURL),
				huh.NewInput().
					Title("Company name").
					Description("Optional; tags text submissions as their source").
					Value(&cfg.CompanyName),
			),
		)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fail("aborted, config not written")
			}
			fail("run form: %v", err)
		}
	}

	path, err := config.Save(cfg)
	if err != nil {
		fail("save config: %v", err)
	}
	fmt.Printf("%s %s\n", successStyle.Render("Wrote"), path)
}

// validateHTTPURL accepts absolute http(s) URLs.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http:// or https:// URL")
	}
	return nil
}

// validateWSURL accepts absolute ws(s) URLs.
func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.New("must be a ws:// or wss:// URL")
	}
	return nil
}
