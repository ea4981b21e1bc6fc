// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// =============================================================================
// RENDER HELPERS
// =============================================================================

// shortFingerprint trims a fingerprint for table display. Full values
// stay available through `e2rt status` and `e2rt claim`.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// outcomeText renders a pipeline outcome as terminal lines. Every
// status the API can return has a branch; unknown statuses print raw
// so a newer server does not break an older CLI.
func outcomeText(out *client.Outcome) string {
	var b strings.Builder
	switch out.Status {
	case client.StatusPublished:
		b.WriteString(successStyle.Render("Published") + "\n")
		if out.Entry != nil {
			b.WriteString(entryText(out.Entry))
		}
	case client.StatusConflict:
		b.WriteString(warnStyle.Render("Duplicate") + "\n")
		b.WriteString(fmt.Sprintf("  fingerprint %s is already claimed; the entry was not resubmitted\n", out.Fingerprint))
	case client.StatusClassificationFailed:
		b.WriteString(errorStyle.Render("Classification failed") + "\n")
		if out.Reason != "" {
			b.WriteString(fmt.Sprintf("  reason: %s\n", out.Reason))
		}
	case client.StatusStorageFailed:
		b.WriteString(errorStyle.Render("Storage failed") + "\n")
		if out.Reason != "" {
			b.WriteString(fmt.Sprintf("  reason: %s\n", out.Reason))
		}
	default:
		b.WriteString(fmt.Sprintf("Status: %s\n", out.Status))
	}
	return b.String()
}

// entryText renders one ledger entry as an indented block.
func entryText(e *client.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %-12s %s\n", "vendor:", e.Vendor)
	fmt.Fprintf(&b, "  %-12s %s\n", "date:", e.Date)
	fmt.Fprintf(&b, "  %-12s %.2f %s\n", "amount:", e.Amount, e.Currency)
	fmt.Fprintf(&b, "  %-12s %s\n", "type:", e.Type)
	fmt.Fprintf(&b, "  %-12s %s\n", "label:", e.Label)
	if e.ReferenceID != "" {
		fmt.Fprintf(&b, "  %-12s %s\n", "reference:", e.ReferenceID)
	}
	fmt.Fprintf(&b, "  %-12s %s\n", "fingerprint:", e.Fingerprint)
	return b.String()
}

// ledgerTable renders a ledger page as an aligned table with a
// "Showing x of y" footer.
func ledgerTable(page *client.LedgerPage) string {
	if len(page.Entries) == 0 {
		return dimStyle.Render("Ledger is empty.") + "\n"
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("DATE"),
		headerStyle.Render("VENDOR"),
		headerStyle.Render("AMOUNT"),
		headerStyle.Render("TYPE"),
		headerStyle.Render("LABEL"),
		headerStyle.Render("REFERENCE"),
		headerStyle.Render("FINGERPRINT"))

	for _, e := range page.Entries {
		ref := e.ReferenceID
		if ref == "" {
			ref = dimStyle.Render("-")
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f %s\t%s\t%s\t%s\t%s\n",
			e.Date, e.Vendor, e.Amount, e.Currency, e.Type, e.Label, ref,
			shortFingerprint(e.Fingerprint))
	}
	w.Flush()

	fmt.Fprintf(&sb, "\nShowing %d of %d entries\n", len(page.Entries), page.Total)
	return sb.String()
}
