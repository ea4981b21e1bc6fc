// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the ingestion
// API: documents ingested per path and outcome, classification
// failures, queue rejections, and broadcast failures.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "e2rt"
	apiSubsystem     = "api"
)

// Mode identifies the ingestion path a document arrived through.
type Mode string

const (
	// ModeFile is a multipart file upload.
	ModeFile Mode = "file"
	// ModeText is a raw text submission.
	ModeText Mode = "text"
)

// APIMetrics holds the Prometheus collectors for the API service.
type APIMetrics struct {
	// DocumentsIngestedTotal counts pipeline outcomes per ingestion
	// path. Status matches the pipeline outcome (published, conflict,
	// classification_failed, storage_failed).
	//
	// Labels: mode, status
	DocumentsIngestedTotal *prometheus.CounterVec

	// ClassificationFailuresTotal counts classifier failures by
	// reason (timeout, extract, canceled).
	//
	// Labels: reason
	ClassificationFailuresTotal *prometheus.CounterVec

	// QueueFullTotal counts uploads rejected because the extraction
	// queue was at capacity.
	QueueFullTotal prometheus.Counter

	// BroadcastFailuresTotal counts ledger updates that could not be
	// published to the broker. The entry is still persisted; only the
	// live stream misses it.
	BroadcastFailuresTotal prometheus.Counter
}

// DefaultMetrics is the shared instance set by InitMetrics.
var DefaultMetrics *APIMetrics

// InitMetrics registers the API collectors with the default registry
// and installs them as DefaultMetrics. Call once at startup; promauto
// panics on duplicate registration.
func InitMetrics() *APIMetrics {
	DefaultMetrics = &APIMetrics{
		DocumentsIngestedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: apiSubsystem,
			Name:      "documents_ingested_total",
			Help:      "Pipeline outcomes per ingestion path",
		}, []string{"mode", "status"}),
		ClassificationFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: apiSubsystem,
			Name:      "classification_failures_total",
			Help:      "Classifier failures by reason",
		}, []string{"reason"}),
		QueueFullTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: apiSubsystem,
			Name:      "queue_full_total",
			Help:      "Uploads rejected because the extraction queue was full",
		}),
		BroadcastFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: apiSubsystem,
			Name:      "broadcast_failures_total",
			Help:      "Ledger updates that failed to publish to the broker",
		}),
	}
	return DefaultMetrics
}

// RecordIngested counts one pipeline outcome for an ingestion path.
func (m *APIMetrics) RecordIngested(mode Mode, status string) {
	m.DocumentsIngestedTotal.WithLabelValues(string(mode), status).Inc()
}

// RecordClassificationFailure counts one classifier failure.
func (m *APIMetrics) RecordClassificationFailure(reason string) {
	m.ClassificationFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordQueueFull counts one rejected upload.
func (m *APIMetrics) RecordQueueFull() {
	m.QueueFullTotal.Inc()
}
