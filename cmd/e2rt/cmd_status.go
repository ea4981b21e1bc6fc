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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var statusJSONOutput bool // Emit the raw task record for scripting

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// statusCmd reports one extraction task.
var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the state of a submitted document",
	Args:  cobra.ExactArgs(1),
	Run:   runStatusCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	statusCmd.Flags().BoolVar(&statusJSONOutput, "json", false,
		"Output the task record as JSON")
	rootCmd.AddCommand(statusCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runStatusCommand(_ *cobra.Command, args []string) {
	c := mustClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	task, err := c.TaskStatus(ctx, args[0])
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			fail("task %s not found (tasks are retained for one hour after completion)", args[0])
		}
		fail("fetch task: %v", err)
	}

	if statusJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(task); err != nil {
			fail("encode task: %v", err)
		}
		return
	}

	fmt.Printf("%-9s %s\n", "Task:", task.ID)
	fmt.Printf("%-9s %s\n", "Status:", task.Status)
	if task.Filename != "" {
		fmt.Printf("%-9s %s\n", "File:", task.Filename)
	}
	fmt.Printf("%-9s %s\n", "Updated:", task.UpdatedAt.Format(time.RFC3339))
	if task.Error != "" {
		fmt.Printf("%-9s %s\n", "Error:", errorStyle.Render(task.Error))
	}
	if task.Outcome != nil {
		fmt.Println()
		fmt.Print(outcomeText(task.Outcome))
	}
}
