// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/ryanrahmadifa/e2RTLedger/pkg/validation"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/observability"
	"github.com/ryanrahmadifa/e2RTLedger/services/extract"
	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

// SubmitTextRequest is the body of POST /v1/documents/text. The
// referenceid key matches the ledger entry field it overrides.
type SubmitTextRequest struct {
	Text        string `json:"text" binding:"required"`
	Source      string `json:"source"`
	ReferenceID string `json:"referenceid"`
}

// SubmitDocument accepts a multipart file upload and queues it for
// extraction. The upload is archived to the upload dir before it is
// queued; archiving failures are logged but do not fail the request.
func SubmitDocument(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
			return
		}
		if fileHeader.Size > deps.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("file exceeds %d byte limit", deps.MaxUploadBytes),
			})
			return
		}

		name, err := validation.SanitizeFilename(fileHeader.Filename)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
			return
		}

		src, err := fileHeader.Open()
		if err != nil {
			deps.Logger.Error("Failed to open upload", "file", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}
		payload, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			deps.Logger.Error("Failed to read upload", "file", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}

		if deps.UploadDir != "" {
			if err := archiveUpload(deps.UploadDir, name, payload); err != nil {
				deps.Logger.Warn("Failed to archive upload", "file", name, "error", err)
			}
		}

		taskID, err := deps.Tracker.Submit(name, payload)
		if err != nil {
			switch {
			case errors.Is(err, extract.ErrQueueFull):
				if deps.Metrics != nil {
					deps.Metrics.RecordQueueFull()
				}
				deps.Logger.Warn("Extraction queue full", "file", name)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "extraction queue is full, retry later"})
			case errors.Is(err, extract.ErrClosed):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service is shutting down"})
			default:
				deps.Logger.Error("Failed to queue upload", "file", name, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue upload"})
			}
			return
		}

		deps.Logger.Info("Document queued", "file", name, "task_id", taskID)
		c.JSON(http.StatusAccepted, gin.H{
			"task_id": taskID,
			"status":  string(extract.StatePending),
		})
	}
}

// SubmitText runs a raw text document through the pipeline synchronously
// and maps the outcome onto an HTTP status: 200 published, 409 conflict,
// 502 classification failed, 500 storage failed.
func SubmitText(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitTextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		source := req.Source
		if source == "" {
			source = "text"
		}

		outcome, err := deps.Pipeline.Process(c.Request.Context(), pipeline.Document{
			Text:        req.Text,
			Source:      source,
			ReferenceID: req.ReferenceID,
		})
		if err != nil {
			if errors.Is(err, pipeline.ErrEmptyDocument) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "document text is empty"})
				return
			}
			deps.Logger.Error("Text ingestion failed", "source", source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}

		if deps.Metrics != nil {
			deps.Metrics.RecordIngested(observability.ModeText, outcome.Status)
		}

		switch outcome.Status {
		case pipeline.StatusPublished:
			c.JSON(http.StatusOK, gin.H{
				"status":      outcome.Status,
				"fingerprint": outcome.Fingerprint,
				"entry":       outcome.Entry,
			})
		case pipeline.StatusConflict:
			c.JSON(http.StatusConflict, gin.H{
				"status":      outcome.Status,
				"fingerprint": outcome.Fingerprint,
			})
		case pipeline.StatusClassificationFailed:
			if deps.Metrics != nil {
				deps.Metrics.RecordClassificationFailure(outcome.Reason)
			}
			c.JSON(http.StatusBadGateway, gin.H{
				"status":      outcome.Status,
				"reason":      outcome.Reason,
				"fingerprint": outcome.Fingerprint,
			})
		default: // StatusStorageFailed
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":      outcome.Status,
				"fingerprint": outcome.Fingerprint,
			})
		}
	}
}

// archiveUpload writes the accepted payload under dir with restrictive
// permissions.
func archiveUpload(dir, name string, payload []byte) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), payload, 0640)
}
