// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/observability"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubEngine hands the raw payload back as text.
type stubEngine struct{}

func (stubEngine) Extract(_ context.Context, _ string, data []byte) (string, error) {
	return string(data), nil
}

// stubProcessor returns a canned outcome and records every document it
// sees. When block is set it parks until the channel is closed, which
// lets tests hold a tracker worker busy.
type stubProcessor struct {
	outcome pipeline.Outcome
	err     error

	block   chan struct{}
	started chan struct{}

	mu  sync.Mutex
	got []pipeline.Document
}

func (p *stubProcessor) Process(_ context.Context, doc pipeline.Document) (pipeline.Outcome, error) {
	p.mu.Lock()
	p.got = append(p.got, doc)
	p.mu.Unlock()
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	return p.outcome, p.err
}

func (p *stubProcessor) documents() []pipeline.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pipeline.Document(nil), p.got...)
}

// failingLedger errors on every query.
type failingLedger struct{}

func (failingLedger) Upsert(context.Context, ledger.Entry) error { return errors.New("store down") }
func (failingLedger) List(context.Context, int, int) ([]ledger.Entry, error) {
	return nil, errors.New("store down")
}
func (failingLedger) Count(context.Context) (int64, error) { return 0, errors.New("store down") }
func (failingLedger) Close() error                         { return nil }

// newMetrics builds unregistered collectors so tests never touch the
// default registry.
func newMetrics() *observability.APIMetrics {
	return &observability.APIMetrics{
		DocumentsIngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_ingested_total",
		}, []string{"mode", "status"}),
		ClassificationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classification_failures_total",
		}, []string{"reason"}),
		QueueFullTotal:         prometheus.NewCounter(prometheus.CounterOpts{Name: "queue_full_total"}),
		BroadcastFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "broadcast_failures_total"}),
	}
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Service: "api", Quiet: true, Level: logging.LevelError})
}

// multipartBody builds a single-file multipart form.
func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}
