// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/broadcast"
)

func newTestRelay(t *testing.T, sub broadcast.Subscriber) (Service, context.Context) {
	t.Helper()

	svc, err := New(Config{
		Port:       0,
		GinMode:    gin.TestMode,
		DedupTTL:   time.Minute,
		Logger:     logging.New(logging.Config{Service: "relay", Quiet: true}),
		Subscriber: sub,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-runErr:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("relay did not shut down")
		}
	})

	require.Eventually(t, func() bool { return svc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	return svc, ctx
}

// waitSubscribed blocks until the relay pump has a live subscription
// on channel, so a following publish cannot race the subscribe.
func waitSubscribed(t *testing.T, bus *broadcast.Bus, channel string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return bus.Subscribers(channel) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func dialWS(t *testing.T, svc Service, path string) *websocket.Conn {
	t.Helper()
	_, port, err := net.SplitHostPort(svc.Addr())
	require.NoError(t, err)

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort("127.0.0.1", port), Path: path}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(payload)
}

func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, payload, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", payload)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout(), "expected a read timeout, got: %v", err)
}

func TestRelayStreamsLedgerUpdates(t *testing.T) {
	bus := broadcast.NewBus(16)
	defer bus.Close()
	svc, _ := newTestRelay(t, bus)

	conn := dialWS(t, svc, "/ws/ledger")
	waitSubscribed(t, bus, broadcast.ChannelLedger)

	entry := `{"fingerprint":"aaa111","vendor":"ACME Corp","amount":125.5}`
	require.NoError(t, bus.Publish(context.Background(), broadcast.ChannelLedger, []byte(entry)))

	assert.JSONEq(t, entry, readFrame(t, conn))
}

func TestRelayDeduplicatesLedgerUpdates(t *testing.T) {
	bus := broadcast.NewBus(16)
	defer bus.Close()
	svc, _ := newTestRelay(t, bus)

	conn := dialWS(t, svc, "/ws/ledger")
	waitSubscribed(t, bus, broadcast.ChannelLedger)

	first := `{"fingerprint":"dup-1","vendor":"A"}`
	second := `{"fingerprint":"uniq-2","vendor":"B"}`
	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, broadcast.ChannelLedger, []byte(first)))
	require.NoError(t, bus.Publish(ctx, broadcast.ChannelLedger, []byte(first)))
	require.NoError(t, bus.Publish(ctx, broadcast.ChannelLedger, []byte(second)))

	// The repeat of dup-1 is suppressed, so the very next frame after
	// the first is uniq-2.
	assert.JSONEq(t, first, readFrame(t, conn))
	assert.JSONEq(t, second, readFrame(t, conn))
	expectNoFrame(t, conn)
}

func TestRelayStreamsLogsWithoutDedup(t *testing.T) {
	bus := broadcast.NewBus(16)
	defer bus.Close()
	svc, _ := newTestRelay(t, bus)

	conn := dialWS(t, svc, "/ws/logs")
	waitSubscribed(t, bus, broadcast.ChannelLogs)

	line, err := json.Marshal(map[string]string{"log": "2026-01-02 [INFO] api: stored entry"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, broadcast.ChannelLogs, line))
	require.NoError(t, bus.Publish(ctx, broadcast.ChannelLogs, line))

	// Identical log lines are legitimate; the log hub must not dedup.
	assert.Equal(t, string(line), readFrame(t, conn))
	assert.Equal(t, string(line), readFrame(t, conn))
}

func TestRelayHealthReportsClients(t *testing.T) {
	bus := broadcast.NewBus(16)
	defer bus.Close()
	svc, _ := newTestRelay(t, bus)

	dialWS(t, svc, "/ws/ledger")

	var body struct {
		Status  string         `json:"status"`
		Clients map[string]int `json:"clients"`
	}
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + hostPort(t, svc) + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		return body.Clients[broadcast.ChannelLedger] == 1
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 0, body.Clients[broadcast.ChannelLogs])
}

func hostPort(t *testing.T, svc Service) string {
	t.Helper()
	_, port, err := net.SplitHostPort(svc.Addr())
	require.NoError(t, err)
	return net.JoinHostPort("127.0.0.1", port)
}

func TestRelayShutdownDisconnectsClients(t *testing.T) {
	bus := broadcast.NewBus(16)
	defer bus.Close()

	svc, err := New(Config{
		Port:       0,
		GinMode:    gin.TestMode,
		Logger:     logging.New(logging.Config{Service: "relay", Quiet: true}),
		Subscriber: bus,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()
	require.Eventually(t, func() bool { return svc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn := dialWS(t, svc, "/ws/ledger")

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not shut down")
	}

	// The hub closed the connection; the client sees a close frame or
	// a dropped socket, not a hang.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		require.False(t, netErr.Timeout(), "read should fail with close, not timeout")
	}
}

// flakySubscriber fails the first subscribe per channel, then hands
// off to the real bus.
type flakySubscriber struct {
	bus      *broadcast.Bus
	attempts atomic.Int32
	failures map[string]*atomic.Bool
}

func newFlakySubscriber(bus *broadcast.Bus) *flakySubscriber {
	return &flakySubscriber{
		bus: bus,
		failures: map[string]*atomic.Bool{
			broadcast.ChannelLedger: {},
			broadcast.ChannelLogs:   {},
		},
	}
}

func (f *flakySubscriber) Subscribe(ctx context.Context, channel string) (<-chan broadcast.Message, func(), error) {
	f.attempts.Add(1)
	if failed := f.failures[channel]; failed != nil && failed.CompareAndSwap(false, true) {
		return nil, nil, errors.New("broker down")
	}
	return f.bus.Subscribe(ctx, channel)
}

func TestRelayResubscribesAfterBrokerFailure(t *testing.T) {
	bus := broadcast.NewBus(16)
	defer bus.Close()
	flaky := newFlakySubscriber(bus)
	svc, _ := newTestRelay(t, flaky)

	conn := dialWS(t, svc, "/ws/ledger")

	// The first subscribe attempt failed; the pump retries after ~1s.
	require.Eventually(t, func() bool {
		return bus.Subscribers(broadcast.ChannelLedger) == 1
	}, 5*time.Second, 50*time.Millisecond)

	entry := `{"fingerprint":"recovered","vendor":"ACME Corp"}`
	require.NoError(t, bus.Publish(context.Background(), broadcast.ChannelLedger, []byte(entry)))

	assert.JSONEq(t, entry, readFrame(t, conn))
	assert.GreaterOrEqual(t, flaky.attempts.Load(), int32(3), "both channels retried")
}
