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
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var watchPlain bool // Skip the TUI and print lines

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// watchCmd streams the relay's ledger and log channels into a live
// terminal view.
//
// # Examples
//
//	e2rt watch            # full-screen live view
//	e2rt watch --plain    # line output, suitable for pipes
//	e2rt watch | tee ledger.log
//
// Without a TTY the TUI is skipped automatically.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch ledger entries and pipeline logs live",
	Long: `Connects to the relay's /ws/ledger and /ws/logs channels and renders
them live: new entries on top, a log tail below.

The relay deduplicates entries within its cache window, so a restarted
watch may replay nothing even while the pipeline is busy; the log pane
still shows activity. Dropped connections redial with backoff.`,
	Args: cobra.NoArgs,
	Run:  runWatchCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false,
		"Print entries and logs as plain lines instead of the TUI")
	rootCmd.AddCommand(watchCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// connState tracks one relay channel's connection lifecycle.
type connState int

const (
	connConnecting connState = iota
	connConnected
	connRetrying
)

func (s connState) String() string {
	switch s {
	case connConnected:
		return "connected"
	case connRetrying:
		return "reconnecting"
	default:
		return "connecting"
	}
}

// watchEvent is one update from a relay channel. Exactly one field is
// set.
type watchEvent struct {
	entry *client.Entry
	line  string
	conn  *connChange
}

type connChange struct {
	channel string // "ledger" or "logs"
	state   connState
}

func runWatchCommand(_ *cobra.Command, _ []string) {
	cfg := mustConfig()

	ledgerURL, err := wsEndpoint(cfg.RelayURL, "/ws/ledger")
	if err != nil {
		fail("relay url: %v", err)
	}
	logsURL, err := wsEndpoint(cfg.RelayURL, "/ws/logs")
	if err != nil {
		fail("relay url: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan watchEvent, 64)
	go watchReader(ctx, ledgerURL, "ledger", parseLedgerFrame, events)
	go watchReader(ctx, logsURL, "logs", parseLogFrame, events)

	if watchPlain || !isatty.IsTerminal(os.Stdout.Fd()) {
		runPlainWatch(ctx, events)
		return
	}

	p := tea.NewProgram(newWatchModel(cfg.RelayURL, events), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fail("watch: %v", err)
	}
}

// runPlainWatch prints events as lines until the context ends. Entry
// lines go to stdout; connection notes go to stderr so pipes see only
// data.
func runPlainWatch(ctx context.Context, events <-chan watchEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch {
			case ev.entry != nil:
				fmt.Println(plainEntryLine(ev.entry))
			case ev.line != "":
				fmt.Println(ev.line)
			case ev.conn != nil:
				fmt.Fprintf(os.Stderr, "# %s %s\n", ev.conn.channel, ev.conn.state)
			}
		}
	}
}

// plainEntryLine renders an entry as one greppable line.
func plainEntryLine(e *client.Entry) string {
	ref := e.ReferenceID
	if ref == "" {
		ref = "-"
	}
	return fmt.Sprintf("entry\t%s\t%s\t%.2f %s\t%s\t%s\t%s\t%s",
		e.Date, e.Vendor, e.Amount, e.Currency, e.Type, e.Label, ref, e.Fingerprint)
}

// =============================================================================
// RELAY SUBSCRIPTION
// =============================================================================

// wsEndpoint joins the relay base URL with a channel path, coercing
// http(s) schemes to their websocket equivalents so a copy-pasted
// http:// relay address still works.
func wsEndpoint(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, base)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", base)
	}
	u.Path += path
	return u.String(), nil
}

// watchReader keeps one relay channel subscribed for the life of ctx.
// Dropped connections redial with exponential backoff, and every state
// change is reported as an event so the view can show it.
func watchReader(ctx context.Context, wsURL, channel string, parse func([]byte) (watchEvent, bool), events chan<- watchEvent) {
	backoff := time.Second
	for {
		sendEvent(ctx, events, watchEvent{conn: &connChange{channel: channel, state: connConnecting}})

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sendEvent(ctx, events, watchEvent{conn: &connChange{channel: channel, state: connRetrying}})
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 8*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		sendEvent(ctx, events, watchEvent{conn: &connChange{channel: channel, state: connConnected}})

		// Close the socket when ctx ends so ReadMessage unblocks.
		unhook := context.AfterFunc(ctx, func() { conn.Close() })
		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				break
			}
			if ev, ok := parse(data); ok {
				sendEvent(ctx, events, ev)
			}
		}
		unhook()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		sendEvent(ctx, events, watchEvent{conn: &connChange{channel: channel, state: connRetrying}})
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func sendEvent(ctx context.Context, events chan<- watchEvent, ev watchEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// parseLedgerFrame decodes a ledger_updates frame. Frames without a
// fingerprint are dropped; the relay only forwards entries that carry
// one, so anything else is noise.
func parseLedgerFrame(data []byte) (watchEvent, bool) {
	var e client.Entry
	if err := json.Unmarshal(data, &e); err != nil || e.Fingerprint == "" {
		return watchEvent{}, false
	}
	return watchEvent{entry: &e}, true
}

// parseLogFrame decodes a log_stream frame of the form {"log": line}.
func parseLogFrame(data []byte) (watchEvent, bool) {
	var frame struct {
		Log string `json:"log"`
	}
	if err := json.Unmarshal(data, &frame); err != nil || frame.Log == "" {
		return watchEvent{}, false
	}
	return watchEvent{line: strings.TrimRight(frame.Log, "\n")}, true
}
