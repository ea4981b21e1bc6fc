// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

// Defaults for TrackerConfig zero values.
const (
	DefaultQueueSize     = 64
	DefaultWorkers       = 4
	DefaultRetention     = time.Hour
	DefaultSweepInterval = time.Minute

	// taskTimeout bounds one job end to end: extraction (a remote
	// OCR run can take a minute) plus classification retries.
	taskTimeout = 5 * time.Minute
)

// TrackerConfig wires a Tracker. Processor and Engine are required.
type TrackerConfig struct {
	Processor     Processor
	Engine        Engine
	Logger        *logging.Logger
	QueueSize     int
	Workers       int
	Retention     time.Duration
	SweepInterval time.Duration
}

type job struct {
	id   string
	name string
	data []byte
}

// Tracker owns the intake queue, the worker pool, and the task table.
type Tracker struct {
	processor Processor
	engine    Engine
	log       *logging.Logger
	retention time.Duration

	queue chan job

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewTracker starts the worker pool and the retention janitor.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Processor == nil {
		return nil, errors.New("extract: processor is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("extract: engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	t := &Tracker{
		processor: cfg.Processor,
		engine:    cfg.Engine,
		log:       cfg.Logger,
		retention: cfg.Retention,
		queue:     make(chan job, cfg.QueueSize),
		tasks:     make(map[string]*Task),
		stopCh:    make(chan struct{}),
	}

	t.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go t.worker()
	}
	go t.janitor(cfg.SweepInterval)

	t.log.Info("Extraction tracker started",
		"workers", cfg.Workers, "queue_size", cfg.QueueSize, "retention", cfg.Retention)
	return t, nil
}

// Submit enqueues one file for extraction and returns its task id.
// A full queue rejects immediately rather than blocking the caller.
func (t *Tracker) Submit(name string, payload []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	now := time.Now()
	task := &Task{ID: id, State: StatePending, Filename: name, CreatedAt: now, UpdatedAt: now}

	select {
	case t.queue <- job{id: id, name: name, data: payload}:
		t.tasks[id] = task
		return id, nil
	default:
		return "", ErrQueueFull
	}
}

// Poll returns a snapshot of the task, or ErrNotFound once it has been
// swept or never existed.
func (t *Tracker) Poll(taskID string) (Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *task, nil
}

// Len reports how many tasks are currently tracked. Metrics use.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Close stops intake, drains queued jobs, and waits for workers.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.queue)
	t.wg.Wait()
	close(t.stopCh)
	return nil
}

func (t *Tracker) worker() {
	defer t.wg.Done()
	for j := range t.queue {
		t.run(j)
	}
}

func (t *Tracker) run(j job) {
	t.transition(j.id, func(task *Task) { task.State = StateProcessing })
	log := t.log.With("task_id", j.id, "filename", j.name)

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	text, err := t.engine.Extract(ctx, j.name, j.data)
	if err != nil {
		log.Warn("Text extraction failed", "error", err)
		t.transition(j.id, func(task *Task) {
			task.State = StateFailed
			task.Error = fmt.Sprintf("extract: %v", err)
		})
		return
	}

	out, err := t.processor.Process(ctx, pipeline.Document{Text: text, Source: "file:" + j.name})
	if err != nil {
		log.Warn("Pipeline rejected document", "error", err)
		t.transition(j.id, func(task *Task) {
			task.State = StateFailed
			task.Error = err.Error()
		})
		return
	}

	log.Info("Task finished", "status", out.Status)
	t.transition(j.id, func(task *Task) {
		task.State = StateCompleted
		task.Outcome = &out
	})
}

// transition applies fn to the task under the lock and stamps
// UpdatedAt.
func (t *Tracker) transition(id string, fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return
	}
	fn(task)
	task.UpdatedAt = time.Now()
}

// janitor sweeps terminal tasks older than the retention window.
func (t *Tracker) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweep(time.Now().Add(-t.retention))
		}
	}
}

func (t *Tracker) sweep(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, task := range t.tasks {
		if task.State.Terminal() && task.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
		}
	}
}
