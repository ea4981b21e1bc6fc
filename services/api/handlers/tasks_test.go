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
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

func TestTaskStatus_NotFound(t *testing.T) {
	deps, _ := newUploadDeps(t, &stubProcessor{}, nil)
	router := gin.New()
	router.GET("/v1/tasks/:id", TaskStatus(deps))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/tasks/no-such-task", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "task not found")
}

func TestTaskStatus_ReturnsTask(t *testing.T) {
	proc := &stubProcessor{outcome: pipeline.Outcome{
		Status:      pipeline.StatusPublished,
		Fingerprint: testFingerprint,
	}}
	deps, tr := newUploadDeps(t, proc, nil)
	router := gin.New()
	router.GET("/v1/tasks/:id", TaskStatus(deps))

	taskID, err := tr.Submit("receipt.txt", []byte("UBER TRIP $23.45"))
	require.NoError(t, err)

	// Wait for the worker to finish so the response shape is stable.
	require.Eventually(t, func() bool {
		task, err := tr.Poll(taskID)
		return err == nil && task.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/tasks/"+taskID, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, taskID, resp["task_id"])
	assert.Equal(t, "completed", resp["status"])
	outcome, ok := resp["outcome"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "published", outcome["status"])
	assert.Equal(t, testFingerprint, outcome["fingerprint"])
}
