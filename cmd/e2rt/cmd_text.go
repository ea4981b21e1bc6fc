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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	textSource    string // Provenance tag; defaults to the configured company name
	textReference string // Caller-supplied reference id folded into the fingerprint
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// textCmd pushes raw text through the classification pipeline
// synchronously and prints the outcome.
var textCmd = &cobra.Command{
	Use:   "text <content>",
	Short: "Classify raw text and publish it to the ledger",
	Long: `Sends one line of raw transaction text straight to the classifier,
skipping file extraction. The command blocks until the pipeline
finishes and prints the published entry, or the rejection.

Pass --reference when the source system has its own transaction id;
it keeps legitimate same-amount repeats from colliding on one
fingerprint.`,
	Args: cobra.ExactArgs(1),
	Run:  runTextCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	textCmd.Flags().StringVar(&textSource, "source", "",
		"Provenance tag stored with the submission (default: configured company name)")
	textCmd.Flags().StringVarP(&textReference, "reference", "r", "",
		"External reference id for the transaction")
	rootCmd.AddCommand(textCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runTextCommand(_ *cobra.Command, args []string) {
	cfg := mustConfig()
	c := client.New(cfg.APIURL)

	source := textSource
	if source == "" {
		source = cfg.CompanyName
	}

	// Classification runs inline on this request; budget for the
	// classifier's own timeout plus transport.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out, err := c.SubmitText(ctx, client.TextRequest{
		Text:        args[0],
		Source:      source,
		ReferenceID: textReference,
	})
	if err != nil {
		fail("submit text: %v", err)
	}

	fmt.Print(outcomeText(out))
	if out.Status == client.StatusClassificationFailed ||
		out.Status == client.StatusStorageFailed {
		os.Exit(1)
	}
}
