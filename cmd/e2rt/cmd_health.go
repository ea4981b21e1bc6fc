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
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// healthCmd pings the ingestion API and reports version skew.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the ingestion API is reachable",
	Long: `Pings the API health endpoint and reports the round-trip time.

When both the CLI and the server carry release versions, a warning is
printed if they differ at the minor level, since wire formats only
move between minors.`,
	Args: cobra.NoArgs,
	Run:  runHealthCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(healthCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runHealthCommand(_ *cobra.Command, _ []string) {
	cfg := mustConfig()
	c := mustClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	health, err := c.CheckHealth(ctx)
	if err != nil {
		fail("api at %s is unreachable: %v", cfg.APIURL, err)
	}
	latency := time.Since(start).Round(time.Millisecond)

	fmt.Printf("%-9s %s\n", "Server:", cfg.APIURL)
	fmt.Printf("%-9s %s (%s)\n", "Status:", successStyle.Render(health.Status), latency)

	// Commit hash is best-effort; an older server without /version
	// still reports healthy.
	if build, verr := c.ServerVersion(ctx); verr == nil {
		fmt.Printf("%-9s %s (commit %s)\n", "Version:", build.Version, build.Commit)
	} else {
		fmt.Printf("%-9s %s\n", "Version:", health.Version)
	}

	if warn := versionSkew(version, health.Version); warn != "" {
		fmt.Printf("\n%s %s\n", warnStyle.Render("Warning:"), warn)
	}
}

// versionSkew reports a mismatch between CLI and server release
// versions at major/minor granularity. Development builds ("dev") and
// other non-semver strings skip the check.
func versionSkew(cliVer, serverVer string) string {
	cv := "v" + strings.TrimPrefix(cliVer, "v")
	sv := "v" + strings.TrimPrefix(serverVer, "v")
	if !semver.IsValid(cv) || !semver.IsValid(sv) {
		return ""
	}
	if semver.MajorMinor(cv) == semver.MajorMinor(sv) {
		return ""
	}
	return fmt.Sprintf("CLI %s and server %s differ at the minor version; upgrade the older side", cliVer, serverVer)
}
