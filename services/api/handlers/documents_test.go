// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanrahmadifa/e2RTLedger/services/extract"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

const testFingerprint = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// =============================================================================
// SubmitDocument Tests
// =============================================================================

func newUploadDeps(t *testing.T, proc *stubProcessor, mutate func(*Deps)) (*Deps, *extract.Tracker) {
	t.Helper()
	tr, err := extract.NewTracker(extract.TrackerConfig{
		Processor: proc,
		Engine:    stubEngine{},
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	deps := &Deps{Tracker: tr, Logger: testLogger()}
	if mutate != nil {
		mutate(deps)
	}
	deps.Normalize()
	return deps, tr
}

func postMultipart(t *testing.T, router *gin.Engine, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitDocument_QueuesUpload(t *testing.T) {
	proc := &stubProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusPublished, Fingerprint: testFingerprint}}
	dir := t.TempDir()
	deps, tr := newUploadDeps(t, proc, func(d *Deps) { d.UploadDir = dir })

	router := gin.New()
	router.POST("/v1/documents", SubmitDocument(deps))

	w := postMultipart(t, router, "receipt.txt", []byte("UBER TRIP $23.45"))

	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeJSON(t, w)
	taskID, _ := resp["task_id"].(string)
	require.NotEmpty(t, taskID)
	assert.Equal(t, "pending", resp["status"])

	_, err := tr.Poll(taskID)
	assert.NoError(t, err)

	archived, err := os.ReadFile(filepath.Join(dir, "receipt.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("UBER TRIP $23.45"), archived)
}

func TestSubmitDocument_MissingFile(t *testing.T) {
	deps, _ := newUploadDeps(t, &stubProcessor{}, nil)
	router := gin.New()
	router.POST("/v1/documents", SubmitDocument(deps))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/documents", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file form field")
}

func TestSubmitDocument_TooLarge(t *testing.T) {
	deps, _ := newUploadDeps(t, &stubProcessor{}, func(d *Deps) { d.MaxUploadBytes = 8 })
	router := gin.New()
	router.POST("/v1/documents", SubmitDocument(deps))

	w := postMultipart(t, router, "big.txt", []byte("this payload is larger than eight bytes"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "byte limit")
}

func TestSubmitDocument_RejectsBadFilename(t *testing.T) {
	deps, _ := newUploadDeps(t, &stubProcessor{}, nil)
	router := gin.New()
	router.POST("/v1/documents", SubmitDocument(deps))

	w := postMultipart(t, router, "..", []byte("payload"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid filename")
}

func TestSubmitDocument_QueueFull(t *testing.T) {
	proc := &stubProcessor{
		outcome: pipeline.Outcome{Status: pipeline.StatusPublished, Fingerprint: testFingerprint},
		block:   make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	tr, err := extract.NewTracker(extract.TrackerConfig{
		Processor: proc,
		Engine:    stubEngine{},
		Logger:    testLogger(),
		QueueSize: 1,
		Workers:   1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		close(proc.block)
		tr.Close()
	})

	m := newMetrics()
	deps := &Deps{Tracker: tr, Logger: testLogger(), Metrics: m}
	deps.Normalize()
	router := gin.New()
	router.POST("/v1/documents", SubmitDocument(deps))

	// Occupy the single worker, then fill the one queue slot.
	_, err = tr.Submit("a.txt", []byte("a"))
	require.NoError(t, err)
	<-proc.started
	_, err = tr.Submit("b.txt", []byte("b"))
	require.NoError(t, err)

	w := postMultipart(t, router, "c.txt", []byte("c"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "queue is full")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueueFullTotal))
}

// =============================================================================
// SubmitText Tests
// =============================================================================

func newTextRouter(deps *Deps) *gin.Engine {
	deps.Normalize()
	router := gin.New()
	router.POST("/v1/documents/text", SubmitText(deps))
	return router
}

func postText(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/documents/text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitText_Published(t *testing.T) {
	entry := &ledger.Entry{
		Vendor:      "Uber",
		Amount:      23.45,
		Currency:    "USD",
		Type:        "debit",
		Label:       "Transport",
		Fingerprint: testFingerprint,
	}
	proc := &stubProcessor{outcome: pipeline.Outcome{
		Status:      pipeline.StatusPublished,
		Fingerprint: testFingerprint,
		Entry:       entry,
	}}
	m := newMetrics()
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger(), Metrics: m})

	w := postText(router, `{"text":"UBER TRIP HELP.UBER.COM $23.45"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, "published", resp["status"])
	assert.Equal(t, testFingerprint, resp["fingerprint"])
	respEntry, ok := resp["entry"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Uber", respEntry["vendor"])
	assert.Equal(t, "Transport", respEntry["label"])

	docs := proc.documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "text", docs[0].Source)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentsIngestedTotal.WithLabelValues("text", "published")))
}

func TestSubmitText_PassesSourceAndReference(t *testing.T) {
	proc := &stubProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusPublished, Fingerprint: testFingerprint}}
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger()})

	w := postText(router, `{"text":"WIRE IN $500","source":"statement.csv","referenceid":"TXN-0042"}`)

	require.Equal(t, http.StatusOK, w.Code)
	docs := proc.documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "statement.csv", docs[0].Source)
	assert.Equal(t, "TXN-0042", docs[0].ReferenceID)
}

func TestSubmitText_MissingText(t *testing.T) {
	proc := &stubProcessor{}
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger()})

	w := postText(router, `{"source":"statement.csv"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, proc.documents())
}

func TestSubmitText_EmptyDocument(t *testing.T) {
	proc := &stubProcessor{err: pipeline.ErrEmptyDocument}
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger()})

	w := postText(router, `{"text":"   "}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty")
}

func TestSubmitText_Conflict(t *testing.T) {
	proc := &stubProcessor{outcome: pipeline.Outcome{
		Status:      pipeline.StatusConflict,
		Fingerprint: testFingerprint,
	}}
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger()})

	w := postText(router, `{"text":"UBER TRIP $23.45"}`)

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, "conflict", resp["status"])
	assert.Equal(t, testFingerprint, resp["fingerprint"])
}

func TestSubmitText_ClassificationFailed(t *testing.T) {
	proc := &stubProcessor{outcome: pipeline.Outcome{
		Status:      pipeline.StatusClassificationFailed,
		Reason:      "timeout",
		Fingerprint: testFingerprint,
	}}
	m := newMetrics()
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger(), Metrics: m})

	w := postText(router, `{"text":"UBER TRIP $23.45"}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, "classification_failed", resp["status"])
	assert.Equal(t, "timeout", resp["reason"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ClassificationFailuresTotal.WithLabelValues("timeout")))
}

func TestSubmitText_StorageFailed(t *testing.T) {
	proc := &stubProcessor{outcome: pipeline.Outcome{
		Status:      pipeline.StatusStorageFailed,
		Fingerprint: testFingerprint,
	}}
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger()})

	w := postText(router, `{"text":"UBER TRIP $23.45"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "storage_failed")
}

func TestSubmitText_ProcessError(t *testing.T) {
	proc := &stubProcessor{err: assert.AnError}
	router := newTextRouter(&Deps{Pipeline: proc, Logger: testLogger()})

	w := postText(router, `{"text":"UBER TRIP $23.45"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "processing failed")
}
