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

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// Display caps. The relay replays no history, so these only bound one
// session's growth.
const (
	maxEntries    = 200
	maxLogLines   = 100
	logPaneHeight = 8
)

var watchTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("230")).
	Background(lipgloss.Color("62")).
	Padding(0, 1)

// watchModel renders the live ledger view: a scrollable entries pane
// on top, newest first, and a fixed-height log tail below.
type watchModel struct {
	relayURL string
	events   <-chan watchEvent

	entries     []client.Entry
	logs        []string
	ledgerState connState
	logsState   connState

	spin     spinner.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

func newWatchModel(relayURL string, events <-chan watchEvent) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warnStyle
	return watchModel{
		relayURL:    relayURL,
		events:      events,
		spin:        sp,
		ledgerState: connConnecting,
		logsState:   connConnecting,
	}
}

// waitForEvent blocks on the reader channel and hands the next event
// to Update. Each handled event re-issues it, keeping exactly one
// outstanding read.
func waitForEvent(events <-chan watchEvent) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.spin.Tick, waitForEvent(m.events))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vh := m.height - logPaneHeight - 5
		if vh < 3 {
			vh = 3
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vh)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vh
		}
		m.viewport.SetContent(m.entryRows())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case watchEvent:
		m.applyEvent(msg)
		return m, waitForEvent(m.events)
	}
	return m, nil
}

// applyEvent folds one relay event into the model. The pointer
// receiver matters: Update copies the model and mutates the copy.
func (m *watchModel) applyEvent(ev watchEvent) {
	switch {
	case ev.entry != nil:
		m.entries = append([]client.Entry{*ev.entry}, m.entries...)
		if len(m.entries) > maxEntries {
			m.entries = m.entries[:maxEntries]
		}
		if m.ready {
			// Stay pinned to the newest entry unless the user has
			// scrolled down into history.
			atTop := m.viewport.AtTop()
			m.viewport.SetContent(m.entryRows())
			if atTop {
				m.viewport.GotoTop()
			}
		}
	case ev.line != "":
		m.logs = append(m.logs, ev.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	case ev.conn != nil:
		if ev.conn.channel == "ledger" {
			m.ledgerState = ev.conn.state
		} else {
			m.logsState = ev.conn.state
		}
	}
}

func (m watchModel) View() string {
	if !m.ready {
		return "starting..."
	}
	sections := []string{
		watchTitleStyle.Render("e2RT live ledger") + " " + dimStyle.Render(m.relayURL),
		m.statusLine(),
		entryHeader(),
		m.viewport.View(),
		dimStyle.Render(strings.Repeat("─", max(m.width, 10))),
		m.logTail(),
		dimStyle.Render("q quit · ↑/↓ scroll · newest first"),
	}
	return strings.Join(sections, "\n")
}

func (m watchModel) statusLine() string {
	return m.channelStatus("ledger", m.ledgerState) + "   " + m.channelStatus("logs", m.logsState)
}

func (m watchModel) channelStatus(name string, st connState) string {
	switch st {
	case connConnected:
		return successStyle.Render("●") + " " + name
	case connRetrying:
		return m.spin.View() + name + " " + warnStyle.Render("(reconnecting)")
	default:
		return m.spin.View() + name + " " + dimStyle.Render("(connecting)")
	}
}

func (m watchModel) entryRows() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("Waiting for entries...")
	}
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(entryRow(e))
		b.WriteByte('\n')
	}
	return b.String()
}

func entryHeader() string {
	return headerStyle.Render(fmt.Sprintf("%-10s  %-22s  %14s  %-6s  %-14s  %s",
		"DATE", "VENDOR", "AMOUNT", "TYPE", "LABEL", "FINGERPRINT"))
}

func entryRow(e client.Entry) string {
	return fmt.Sprintf("%-10s  %-22s  %10.2f %-3s  %-6s  %-14s  %s",
		truncate(e.Date, 10),
		truncate(e.Vendor, 22),
		e.Amount,
		e.Currency,
		truncate(e.Type, 6),
		truncate(e.Label, 14),
		shortFingerprint(e.Fingerprint))
}

// logTail renders the last logPaneHeight log lines, padded so the
// pane never changes height.
func (m watchModel) logTail() string {
	lines := m.logs
	if len(lines) > logPaneHeight {
		lines = lines[len(lines)-logPaneHeight:]
	}
	out := make([]string, 0, logPaneHeight)
	for _, l := range lines {
		out = append(out, dimStyle.Render(truncate(l, max(m.width-1, 20))))
	}
	for len(out) < logPaneHeight {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

// truncate limits s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
