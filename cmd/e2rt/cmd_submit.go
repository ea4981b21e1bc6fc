// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	submitWait    bool          // Poll the task until it finishes
	submitTimeout time.Duration // Upper bound on the --wait poll
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// submitCmd uploads a document for asynchronous extraction.
var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Upload a document for extraction and classification",
	Long: `Uploads a file to the ingestion API and prints the task id.

The API extracts text from the upload, classifies it and publishes the
resulting entry to the ledger. With --wait the command polls the task
until it reaches a terminal state and prints the outcome; a duplicate
fingerprint is reported but is not an error.`,
	Args: cobra.ExactArgs(1),
	Run:  runSubmitCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false,
		"Poll the task until it completes or fails")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 2*time.Minute,
		"How long --wait polls before giving up")
	rootCmd.AddCommand(submitCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSubmitCommand(_ *cobra.Command, args []string) {
	c := mustClient()

	f, err := os.Open(args[0])
	if err != nil {
		fail("open %s: %v", args[0], err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	task, err := c.SubmitFile(ctx, filepath.Base(args[0]), f)
	if err != nil {
		if errors.Is(err, client.ErrQueueFull) {
			fail("extraction queue is full, retry shortly")
		}
		fail("submit %s: %v", args[0], err)
	}

	fmt.Printf("%s task %s\n", successStyle.Render("Accepted:"), task.ID)
	if !submitWait {
		fmt.Printf("%s\n", dimStyle.Render(fmt.Sprintf("Follow it with: e2rt status %s", task.ID)))
		return
	}

	final, err := awaitTask(c, task.ID, submitTimeout)
	if err != nil {
		fail("%v", err)
	}
	reportTask(final)
}

// awaitTask polls the task until it is terminal or the timeout lapses.
func awaitTask(c *client.Client, id string, timeout time.Duration) (*client.Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		task, err := c.TaskStatus(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll task %s: %w", id, err)
		}
		if task.Terminal() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("task %s still %s after %s", id, task.Status, timeout)
		case <-ticker.C:
		}
	}
}

// reportTask prints a terminal task and exits non-zero on pipeline
// failures. A duplicate is an expected rejection, not a failure.
func reportTask(task *client.Task) {
	if task.Status == "failed" {
		fmt.Print(errorStyle.Render("Extraction failed") + "\n")
		if task.Error != "" {
			fmt.Printf("  reason: %s\n", task.Error)
		}
		os.Exit(1)
	}
	if task.Outcome == nil {
		fmt.Printf("Task %s completed\n", task.ID)
		return
	}
	fmt.Print(outcomeText(task.Outcome))
	if task.Outcome.Status == client.StatusClassificationFailed ||
		task.Outcome.Status == client.StatusStorageFailed {
		os.Exit(1)
	}
}
