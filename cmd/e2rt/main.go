// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command e2rt is the operator CLI for the e2RT ledger stack.
//
// It talks to the ingestion API for submissions and queries, and to
// the websocket relay for the live watch view.
//
// # Configuration
//
// Settings come from ~/.e2rt/e2rt.yaml, written by `e2rt init`. The
// file is optional; E2RT_API_URL, E2RT_RELAY_URL and E2RT_COMPANY_NAME
// override both the file and the defaults.
//
// # Usage
//
// Submit and follow a document:
//
//	e2rt submit invoice.pdf --wait
//
// Paste raw text straight into the pipeline:
//
//	e2rt text "GRAB *RIDE 12.40 SGD 2026-08-19" --reference TXN-0042
//
// Watch the ledger live:
//
//	e2rt watch
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryanrahmadifa/e2RTLedger/cmd/e2rt/config"
	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "e2rt",
	Short: "Operator CLI for the e2RT real-time ledger",
	Long: `e2rt drives the e2RT ingestion stack from the terminal.

Documents go in through submit/text, land in the ledger exactly once,
and stream back out over the relay where watch renders them live.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fail prints a formatted error and exits non-zero. Run handlers use
// it for failures that have already been reported to the user in
// context.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// mustConfig loads the CLI configuration or exits.
func mustConfig() config.Config {
	if err := config.Load(); err != nil {
		fail("load config: %v (run `e2rt init` to rewrite it)", err)
	}
	return config.Global
}

// mustClient builds the API client from the loaded configuration.
func mustClient() *client.Client {
	return client.New(mustConfig().APIURL)
}
