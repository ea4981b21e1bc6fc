// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client is the typed HTTP client for the ingestion API. The
// poller and the e2rt CLI both talk to the service through it.
//
// The wire types here mirror the server's JSON instead of importing
// the service packages, which keeps the cgo storage drivers out of
// client binaries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Text submissions classify inline on the server, so the default
// budget covers the classifier's 30s worst case with headroom.
const defaultTimeout = 60 * time.Second

// Outcome statuses reported by the server for a processed document.
const (
	StatusPublished            = "published"
	StatusConflict             = "conflict"
	StatusClassificationFailed = "classification_failed"
	StatusStorageFailed        = "storage_failed"
)

var (
	// ErrNotFound reports an id the server has no record of.
	ErrNotFound = errors.New("not found")

	// ErrQueueFull reports a submission the server turned away because
	// its extraction queue is saturated.
	ErrQueueFull = errors.New("queue full")
)

// APIError carries a server-side rejection that maps to no sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

// Entry mirrors one ledger row as the server serializes it.
type Entry struct {
	Text        string    `json:"text"`
	Date        string    `json:"date"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Vendor      string    `json:"vendor"`
	Type        string    `json:"ttype"`
	ReferenceID string    `json:"referenceid"`
	Label       string    `json:"label"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// Outcome is the result of running one document through the pipeline.
type Outcome struct {
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Entry       *Entry `json:"entry,omitempty"`
}

// Task is the lifecycle record for an asynchronous file submission.
type Task struct {
	ID        string    `json:"task_id"`
	Status    string    `json:"status"`
	Filename  string    `json:"filename,omitempty"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the task has finished processing.
func (t *Task) Terminal() bool {
	return t.Status == "completed" || t.Status == "failed"
}

// TextRequest is an inline text submission.
type TextRequest struct {
	Text        string `json:"text"`
	Source      string `json:"source,omitempty"`
	ReferenceID string `json:"referenceid,omitempty"`
}

// LedgerPage is one page of ledger entries plus the store total.
type LedgerPage struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// Health is the /healthz response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Build is the /version response.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Client talks to one ingestion API instance. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the API at baseURL.
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: defaultTimeout})
}

// NewWithHTTPClient builds a client with a caller-supplied http.Client,
// for custom timeouts or transports.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitFile uploads a document for asynchronous extraction. On 202
// the returned task carries the id to poll via TaskStatus. A saturated
// queue surfaces as ErrQueueFull.
func (c *Client) SubmitFile(ctx context.Context, filename string, payload io.Reader) (*Task, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, payload); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var task Task
	if err := c.roundTrip(req, &task); err != nil {
		return nil, fmt.Errorf("submit file: %w", err)
	}
	return &task, nil
}

// SubmitText runs an inline text document through the pipeline and
// returns its outcome. Conflicts and classification failures are
// outcomes, not errors: callers branch on Outcome.Status. The error
// path is reserved for transport failures and request rejections.
func (c *Client) SubmitText(ctx context.Context, treq TextRequest) (*Outcome, error) {
	payload, err := json.Marshal(treq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents/text", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit text: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("submit text: %w", err)
	}

	// Non-2xx responses still carry an outcome when processing ran:
	// 409 conflict, 502 classification_failed, 500 storage_failed.
	var out Outcome
	if err := json.Unmarshal(body, &out); err == nil && out.Status != "" {
		return &out, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil, fmt.Errorf("submit text: unexpected response body %q", body)
	}
	return nil, fmt.Errorf("submit text: %w", apiError(resp.StatusCode, body))
}

// TaskStatus fetches the lifecycle record for a file submission.
// Unknown and expired ids return ErrNotFound.
func (c *Client) TaskStatus(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.get(ctx, "/v1/tasks/"+url.PathEscape(id), &task); err != nil {
		return nil, fmt.Errorf("task status: %w", err)
	}
	return &task, nil
}

// Ledger lists published entries, newest first. Non-positive limit and
// offset are omitted so the server applies its defaults.
func (c *Client) Ledger(ctx context.Context, limit, offset int) (*LedgerPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/ledger"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page LedgerPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return &page, nil
}

// ClaimStatus reports whether a fingerprint currently holds a claim,
// provisional or confirmed.
func (c *Client) ClaimStatus(ctx context.Context, fingerprint string) (bool, error) {
	var out struct {
		Claimed bool `json:"claimed"`
	}
	if err := c.get(ctx, "/v1/claims/"+url.PathEscape(fingerprint), &out); err != nil {
		return false, fmt.Errorf("claim status: %w", err)
	}
	return out.Claimed, nil
}

// CheckHealth pings /healthz.
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/healthz", &h); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &h, nil
}

// ServerVersion fetches the server's build information.
func (c *Client) ServerVersion(ctx context.Context) (*Build, error) {
	var b Build
	if err := c.get(ctx, "/version", &b); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	return &b, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

// roundTrip runs the request and decodes a 2xx body into out. Error
// statuses map to the package sentinels or an APIError.
func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	// 1MB cap; no endpoint returns more than a page of entries.
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// apiError maps an error-status body onto the client error taxonomy.
func apiError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	msg := e.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrQueueFull, msg)
	}
	return &APIError{StatusCode: status, Message: msg}
}
