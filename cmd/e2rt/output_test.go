// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

func sampleEntry() client.Entry {
	return client.Entry{
		Text:        "GRAB *RIDE 12.40 SGD",
		Date:        "2026-08-19",
		Amount:      12.40,
		Currency:    "SGD",
		Vendor:      "Grab",
		Type:        "debit",
		ReferenceID: "TXN-0042",
		Label:       "Transport",
		Fingerprint: strings.Repeat("ab", 32),
	}
}

func TestOutcomeTextPublished(t *testing.T) {
	e := sampleEntry()
	out := outcomeText(&client.Outcome{Status: client.StatusPublished, Entry: &e})

	assert.Contains(t, out, "Published")
	assert.Contains(t, out, "Grab")
	assert.Contains(t, out, "12.40 SGD")
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "TXN-0042")
	assert.Contains(t, out, e.Fingerprint)
}

func TestOutcomeTextConflict(t *testing.T) {
	out := outcomeText(&client.Outcome{
		Status:      client.StatusConflict,
		Fingerprint: "deadbeef",
	})

	assert.Contains(t, out, "Duplicate")
	assert.Contains(t, out, "deadbeef")
}

func TestOutcomeTextFailures(t *testing.T) {
	out := outcomeText(&client.Outcome{Status: client.StatusClassificationFailed, Reason: "timeout"})
	assert.Contains(t, out, "Classification failed")
	assert.Contains(t, out, "timeout")

	out = outcomeText(&client.Outcome{Status: client.StatusStorageFailed, Reason: "ledger write failed"})
	assert.Contains(t, out, "Storage failed")
	assert.Contains(t, out, "ledger write failed")
}

func TestOutcomeTextUnknownStatusPrintsRaw(t *testing.T) {
	out := outcomeText(&client.Outcome{Status: "quarantined"})
	assert.Contains(t, out, "quarantined")
}

func TestLedgerTable(t *testing.T) {
	e := sampleEntry()
	second := sampleEntry()
	second.Vendor = "Shopee"
	second.ReferenceID = ""
	second.Amount = 230

	out := ledgerTable(&client.LedgerPage{Entries: []client.Entry{e, second}, Total: 7})

	assert.Contains(t, out, "VENDOR")
	assert.Contains(t, out, "Grab")
	assert.Contains(t, out, "Shopee")
	assert.Contains(t, out, "12.40 SGD")
	assert.Contains(t, out, "230.00 SGD")
	assert.Contains(t, out, "Showing 2 of 7 entries")
	// Table shows the short fingerprint only.
	assert.Contains(t, out, e.Fingerprint[:12])
	assert.NotContains(t, out, e.Fingerprint)
}

func TestLedgerTableEmpty(t *testing.T) {
	out := ledgerTable(&client.LedgerPage{})
	assert.Contains(t, out, "empty")
}

func TestShortFingerprint(t *testing.T) {
	require.Equal(t, "abcdefabcdef", shortFingerprint("abcdefabcdef0123"))
	require.Equal(t, "short", shortFingerprint("short"))
}
