// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("broadcast: bus closed")

// DefaultQueueSize bounds each subscriber's delivery queue.
const DefaultQueueSize = 64

// Bus is an in-process broker for tests and single-process setups.
// Each subscriber gets a bounded queue; a message that finds the queue
// full is dropped for that subscriber and counted.
type Bus struct {
	queueSize int

	mu     sync.Mutex
	subs   map[string]map[int]chan Message
	nextID int
	closed bool

	dropped atomic.Uint64
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// NewBus creates a bus with the given per-subscriber queue size.
// Sizes <= 0 select DefaultQueueSize.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		queueSize: queueSize,
		subs:      make(map[string]map[int]chan Message),
	}
}

// Publish delivers payload to every current subscriber of channel.
// Slow subscribers lose the message rather than block the publisher.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	msg := Message{Channel: channel, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a new subscriber on channel. The cancel func is
// idempotent and closes the returned channel.
func (b *Bus) Subscribe(_ context.Context, channel string) (<-chan Message, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrClosed
	}

	ch := make(chan Message, b.queueSize)
	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan Message)
	}
	b.subs[channel][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[channel]; ok {
				if _, live := subs[id]; live {
					delete(subs, id)
					close(ch)
				}
			}
		})
	}
	return ch, cancel, nil
}

// Dropped reports how many messages were discarded on full queues.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribers reports the live subscriber count for a channel. Tests
// use it to wait for an async consumer before publishing.
func (b *Bus) Subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
	}
	return nil
}
