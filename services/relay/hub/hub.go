// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hub fans broker messages out to websocket clients. One Hub
// serves one channel; clients get a bounded outbound queue each, and a
// client that cannot keep up loses messages without slowing the hub or
// its peers.
package hub

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
)

// DefaultSendBuffer is the per-client outbound queue size.
const DefaultSendBuffer = 32

// Config wires a Hub. Only Name is required; nil metrics are skipped.
type Config struct {
	// Name is the channel this hub serves, used in logs and metrics.
	Name string
	// Logger for connect/disconnect events.
	Logger *logging.Logger
	// Clients gauge tracks the connected client count.
	Clients prometheus.Gauge
	// Dropped counts messages lost to full client queues.
	Dropped prometheus.Counter
	// SendBuffer overrides DefaultSendBuffer when > 0.
	SendBuffer int
}

// Hub owns the client set for one channel. All state is confined to
// the Run goroutine; other goroutines talk to it over channels.
type Hub struct {
	name       string
	log        *logging.Logger
	gauge      prometheus.Gauge
	dropped    prometheus.Counter
	sendBuffer int

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	clients map[*Client]struct{}
	count   atomic.Int32

	stop chan struct{}
	done chan struct{}
}

// New builds a Hub. Call Run in a goroutine before serving clients.
func New(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	return &Hub{
		name:       cfg.Name,
		log:        cfg.Logger,
		gauge:      cfg.Clients,
		dropped:    cfg.Dropped,
		sendBuffer: cfg.SendBuffer,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*Client]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and fan-out until Stop. The fan-out send
// is non-blocking per client: a full queue drops the message for that
// client only.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int32(len(h.clients)))
			if h.gauge != nil {
				h.gauge.Inc()
			}
			h.log.Info("Client connected", "channel", h.name, "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int32(len(h.clients)))
				if h.gauge != nil {
					h.gauge.Dec()
				}
				h.log.Info("Client disconnected", "channel", h.name, "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					if h.dropped != nil {
						h.dropped.Inc()
					}
				}
			}
		}
	}
}

// Broadcast queues payload for fan-out. Safe after Stop (the message
// is discarded).
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// ClientCount reports the currently connected clients.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// Stop disconnects every client and ends Run. Idempotent is not
// needed; the relay stops each hub exactly once on shutdown.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}
