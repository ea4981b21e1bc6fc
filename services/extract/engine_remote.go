// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// RemoteEngine ships files to an OCR sidecar. The sidecar runs OCR in
// the background; we submit, then poll its result endpoint until the
// task settles or the poll budget runs out.
type RemoteEngine struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

var _ Engine = (*RemoteEngine)(nil)

// Remote engine defaults, matching the sidecar's worst-case OCR time
// for a multi-page scan.
const (
	remotePollInterval = time.Second
	remoteMaxPolls     = 60
)

// NewRemoteEngine points at the OCR sidecar's base URL.
func NewRemoteEngine(baseURL string) *RemoteEngine {
	return &RemoteEngine{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: remotePollInterval,
		maxPolls:     remoteMaxPolls,
	}
}

// ocrStatus is the sidecar's result payload.
type ocrStatus struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Extract submits the file and polls for the OCR result.
func (e *RemoteEngine) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	taskID, err := e.submit(ctx, filename, data)
	if err != nil {
		return "", err
	}

	for i := 0; i < e.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.pollInterval):
		}

		st, err := e.poll(ctx, taskID)
		if err != nil {
			return "", err
		}
		switch st.Status {
		case "completed":
			return st.Text, nil
		case "failed":
			return "", fmt.Errorf("ocr failed: %s", st.Error)
		}
	}
	return "", errors.New("ocr timed out waiting for result")
}

func (e *RemoteEngine) submit(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/ocr_document/", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr submit: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ocr submit: decode response: %w", err)
	}
	if out.TaskID == "" {
		return "", errors.New("ocr submit: empty task id")
	}
	return out.TaskID, nil
}

func (e *RemoteEngine) poll(ctx context.Context, taskID string) (ocrStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/ocr_result/"+taskID, nil)
	if err != nil {
		return ocrStatus{}, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return ocrStatus{}, fmt.Errorf("ocr poll: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ocrStatus{}, fmt.Errorf("ocr poll: task %s unknown to sidecar", taskID)
	}
	if resp.StatusCode != http.StatusOK {
		return ocrStatus{}, fmt.Errorf("ocr poll: unexpected status %d", resp.StatusCode)
	}

	var st ocrStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return ocrStatus{}, fmt.Errorf("ocr poll: decode response: %w", err)
	}
	return st, nil
}
