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
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

type fakeEngine struct {
	fn func(ctx context.Context, filename string, data []byte) (string, error)
}

func (f fakeEngine) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	return f.fn(ctx, filename, data)
}

type fakeProcessor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, doc pipeline.Document) (pipeline.Outcome, error)
}

func (f *fakeProcessor) Process(ctx context.Context, doc pipeline.Document) (pipeline.Outcome, error) {
	f.calls.Add(1)
	return f.fn(ctx, doc)
}

func passthroughEngine() fakeEngine {
	return fakeEngine{fn: func(_ context.Context, _ string, data []byte) (string, error) {
		return string(data), nil
	}}
}

func publishingProcessor() *fakeProcessor {
	return &fakeProcessor{fn: func(_ context.Context, doc pipeline.Document) (pipeline.Outcome, error) {
		return pipeline.Outcome{Status: pipeline.StatusPublished, Fingerprint: "f"}, nil
	}}
}

func waitTerminal(t *testing.T, tr *Tracker, id string) Task {
	t.Helper()
	var task Task
	require.Eventually(t, func() bool {
		got, err := tr.Poll(id)
		if err != nil {
			return false
		}
		task = got
		return got.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func TestTrackerLifecycle(t *testing.T) {
	proc := publishingProcessor()
	tr, err := NewTracker(TrackerConfig{Processor: proc, Engine: passthroughEngine()})
	require.NoError(t, err)
	defer tr.Close()

	id, err := tr.Submit("receipt.txt", []byte("UBER TRIP $23.45"))
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(id))

	task := waitTerminal(t, tr, id)
	assert.Equal(t, StateCompleted, task.State)
	assert.Equal(t, "receipt.txt", task.Filename)
	require.NotNil(t, task.Outcome)
	assert.Equal(t, pipeline.StatusPublished, task.Outcome.Status)
	assert.Empty(t, task.Error)
	assert.False(t, task.UpdatedAt.Before(task.CreatedAt))
	assert.Equal(t, int32(1), proc.calls.Load())
}

func TestTrackerQueueFull(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	engine := fakeEngine{fn: func(context.Context, string, []byte) (string, error) {
		started <- struct{}{}
		<-release
		return "text", nil
	}}

	tr, err := NewTracker(TrackerConfig{
		Processor: publishingProcessor(),
		Engine:    engine,
		QueueSize: 1,
		Workers:   1,
	})
	require.NoError(t, err)
	defer func() {
		close(release)
		tr.Close()
	}()

	_, err = tr.Submit("a.txt", []byte("a"))
	require.NoError(t, err)
	<-started // worker is busy with a.txt

	_, err = tr.Submit("b.txt", []byte("b"))
	require.NoError(t, err, "one slot in the queue")

	_, err = tr.Submit("c.txt", []byte("c"))
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestTrackerExtractionFailure(t *testing.T) {
	engine := fakeEngine{fn: func(context.Context, string, []byte) (string, error) {
		return "", ErrUnsupportedFormat
	}}
	proc := publishingProcessor()
	tr, err := NewTracker(TrackerConfig{Processor: proc, Engine: engine})
	require.NoError(t, err)
	defer tr.Close()

	id, err := tr.Submit("photo.bmp", []byte{0x42, 0x4d})
	require.NoError(t, err)

	task := waitTerminal(t, tr, id)
	assert.Equal(t, StateFailed, task.State)
	assert.Contains(t, task.Error, "extract:")
	assert.Contains(t, task.Error, "unsupported")
	assert.Nil(t, task.Outcome)
	assert.Equal(t, int32(0), proc.calls.Load(), "failed extraction never reaches the pipeline")
}

func TestTrackerPipelineError(t *testing.T) {
	proc := &fakeProcessor{fn: func(context.Context, pipeline.Document) (pipeline.Outcome, error) {
		return pipeline.Outcome{}, errors.New("claim store down")
	}}
	tr, err := NewTracker(TrackerConfig{Processor: proc, Engine: passthroughEngine()})
	require.NoError(t, err)
	defer tr.Close()

	id, err := tr.Submit("receipt.txt", []byte("text"))
	require.NoError(t, err)

	task := waitTerminal(t, tr, id)
	assert.Equal(t, StateFailed, task.State)
	assert.Contains(t, task.Error, "claim store down")
}

func TestTrackerPollUnknown(t *testing.T) {
	tr, err := NewTracker(TrackerConfig{Processor: publishingProcessor(), Engine: passthroughEngine()})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Poll(uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTrackerRetentionSweep(t *testing.T) {
	tr, err := NewTracker(TrackerConfig{
		Processor:     publishingProcessor(),
		Engine:        passthroughEngine(),
		Retention:     20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer tr.Close()

	id, err := tr.Submit("receipt.txt", []byte("text"))
	require.NoError(t, err)

	// Only terminal tasks are swept, so NotFound means the task both
	// finished and aged out.
	require.Eventually(t, func() bool {
		_, err := tr.Poll(id)
		return errors.Is(err, ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond, "terminal tasks are swept after retention")
}

func TestTrackerSweepSparesRunningTasks(t *testing.T) {
	release := make(chan struct{})
	engine := fakeEngine{fn: func(context.Context, string, []byte) (string, error) {
		<-release
		return "text", nil
	}}
	tr, err := NewTracker(TrackerConfig{
		Processor:     publishingProcessor(),
		Engine:        engine,
		Retention:     10 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() {
		close(release)
		tr.Close()
	}()

	id, err := tr.Submit("slow.txt", []byte("text"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond) // several sweep cycles
	task, err := tr.Poll(id)
	require.NoError(t, err, "non-terminal tasks survive the sweep")
	assert.NotEqual(t, StateFailed, task.State)
}

func TestTrackerCloseDrainsQueue(t *testing.T) {
	proc := publishingProcessor()
	tr, err := NewTracker(TrackerConfig{Processor: proc, Engine: passthroughEngine(), Workers: 2})
	require.NoError(t, err)

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := tr.Submit("doc.txt", []byte{byte('a' + i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, tr.Close())

	for _, id := range ids {
		task, err := tr.Poll(id)
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, task.State, "queued work finishes before Close returns")
	}

	_, err = tr.Submit("late.txt", []byte("x"))
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, tr.Close(), "idempotent")
}
