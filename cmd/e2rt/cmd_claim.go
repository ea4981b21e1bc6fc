// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// claimCmd checks whether a fingerprint has been claimed.
var claimCmd = &cobra.Command{
	Use:   "claim <fingerprint>",
	Short: "Check whether a fingerprint is claimed",
	Long: `Reports whether the fingerprint is currently held by the claim
store. A claimed fingerprint means a submission with that identity was
accepted into the pipeline; resubmitting it yields a duplicate
rejection until the claim expires or is released by a failure.`,
	Args: cobra.ExactArgs(1),
	Run:  runClaimCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(claimCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runClaimCommand(_ *cobra.Command, args []string) {
	c := mustClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claimed, err := c.ClaimStatus(ctx, args[0])
	if err != nil {
		fail("check claim: %v", err)
	}

	if claimed {
		fmt.Printf("%s %s\n", warnStyle.Render("claimed"), args[0])
		return
	}
	fmt.Printf("%s %s\n", successStyle.Render("free"), args[0])
}
