// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	ledgerLimit      int  // Page size
	ledgerOffset     int  // Rows to skip
	ledgerJSONOutput bool // Emit the raw page for scripting
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// ledgerCmd lists persisted entries, newest first.
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List ledger entries",
	Long: `Lists finalized ledger entries, newest first.

Pagination is cursor-free: --limit caps the page and --offset skips
rows, matching the API's /v1/ledger parameters.`,
	Args: cobra.NoArgs,
	Run:  runLedgerCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	ledgerCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 20, "Maximum entries to fetch")
	ledgerCmd.Flags().IntVar(&ledgerOffset, "offset", 0, "Entries to skip from the newest")
	ledgerCmd.Flags().BoolVar(&ledgerJSONOutput, "json", false, "Output the page as JSON")
	rootCmd.AddCommand(ledgerCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runLedgerCommand(_ *cobra.Command, _ []string) {
	c := mustClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	page, err := c.Ledger(ctx, ledgerLimit, ledgerOffset)
	if err != nil {
		fail("fetch ledger: %v", err)
	}

	if ledgerJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(page); err != nil {
			fail("encode page: %v", err)
		}
		return
	}

	fmt.Print(ledgerTable(page))
}
