// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extract turns uploaded files into text and tracks the
// asynchronous jobs doing it. Uploads are accepted onto a bounded
// queue; a fixed pool of workers extracts the text and hands it to the
// ingestion pipeline. Task state is held in memory for a retention
// window, after which polling reports not found.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

var (
	// ErrQueueFull means the intake queue is saturated. Callers map
	// this to HTTP 503 and retry later.
	ErrQueueFull = errors.New("extraction queue is full")

	// ErrNotFound means the task id is unknown or already swept.
	ErrNotFound = errors.New("task not found")

	// ErrClosed rejects submissions after shutdown has begun.
	ErrClosed = errors.New("tracker is closed")

	// ErrUnsupportedFormat means no engine can read the file type.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// State is a task's lifecycle position.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state can still change.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Task is the pollable record of one submitted document.
type Task struct {
	ID        string            `json:"task_id"`
	State     State             `json:"status"`
	Filename  string            `json:"filename,omitempty"`
	Outcome   *pipeline.Outcome `json:"outcome,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Engine extracts text from one file.
type Engine interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// Processor runs extracted text through the ingestion pipeline.
// *pipeline.Orchestrator is the production implementation.
type Processor interface {
	Process(ctx context.Context, doc pipeline.Document) (pipeline.Outcome, error)
}
