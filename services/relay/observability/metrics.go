// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the websocket
// relay: connected clients, fan-out volume, drops, duplicate
// suppression, and broker reconnects.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "e2rt"
	relaySubsystem   = "relay"
)

// Channel identifies which broadcast channel a metric belongs to.
type Channel string

const (
	// ChannelLedger is the ledger update stream.
	ChannelLedger Channel = "ledger_updates"
	// ChannelLogs is the service log stream.
	ChannelLogs Channel = "log_stream"
)

// RelayMetrics holds the Prometheus collectors for the relay service.
type RelayMetrics struct {
	// ConnectedClients tracks currently attached websocket clients.
	//
	// Labels: channel
	ConnectedClients *prometheus.GaugeVec

	// MessagesRelayedTotal counts broker messages fanned out to the
	// hubs, after dedup.
	//
	// Labels: channel
	MessagesRelayedTotal *prometheus.CounterVec

	// MessagesDroppedTotal counts messages lost to full client
	// queues. One slow client can raise this without affecting its
	// peers.
	//
	// Labels: channel
	MessagesDroppedTotal *prometheus.CounterVec

	// DuplicatesSuppressedTotal counts broker messages withheld by
	// the dedup cache.
	//
	// Labels: channel
	DuplicatesSuppressedTotal *prometheus.CounterVec

	// BrokerReconnectsTotal counts subscription re-establishments
	// after a broker failure.
	//
	// Labels: channel
	BrokerReconnectsTotal *prometheus.CounterVec
}

// DefaultMetrics is the shared instance set by InitMetrics.
var DefaultMetrics *RelayMetrics

// InitMetrics registers the relay collectors with the default registry
// and installs them as DefaultMetrics. Call once at startup; promauto
// panics on duplicate registration.
func InitMetrics() *RelayMetrics {
	DefaultMetrics = &RelayMetrics{
		ConnectedClients: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "connected_clients",
			Help:      "Number of websocket clients currently attached",
		}, []string{"channel"}),
		MessagesRelayedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "messages_relayed_total",
			Help:      "Broker messages fanned out to clients after dedup",
		}, []string{"channel"}),
		MessagesDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "messages_dropped_total",
			Help:      "Messages lost to full per-client queues",
		}, []string{"channel"}),
		DuplicatesSuppressedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "duplicates_suppressed_total",
			Help:      "Broker messages withheld by the dedup cache",
		}, []string{"channel"}),
		BrokerReconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: relaySubsystem,
			Name:      "broker_reconnects_total",
			Help:      "Broker subscription re-establishments",
		}, []string{"channel"}),
	}
	return DefaultMetrics
}

// ClientGauge returns the connected-client gauge for a channel, for
// wiring into a hub.
func (m *RelayMetrics) ClientGauge(ch Channel) prometheus.Gauge {
	return m.ConnectedClients.WithLabelValues(string(ch))
}

// DropCounter returns the client-queue drop counter for a channel.
func (m *RelayMetrics) DropCounter(ch Channel) prometheus.Counter {
	return m.MessagesDroppedTotal.WithLabelValues(string(ch))
}

// RecordRelayed counts one message handed to a hub for fan-out.
func (m *RelayMetrics) RecordRelayed(ch Channel) {
	m.MessagesRelayedTotal.WithLabelValues(string(ch)).Inc()
}

// RecordDuplicate counts one message suppressed by dedup.
func (m *RelayMetrics) RecordDuplicate(ch Channel) {
	m.DuplicatesSuppressedTotal.WithLabelValues(string(ch)).Inc()
}

// RecordReconnect counts one broker subscription retry.
func (m *RelayMetrics) RecordReconnect(ch Channel) {
	m.BrokerReconnectsTotal.WithLabelValues(string(ch)).Inc()
}
