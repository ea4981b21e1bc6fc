// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production broker between the api and relay processes,
// built on Redis PubSub. PubSub gives exactly the semantics the
// channels promise: at-most-once, no history.
type Redis struct {
	client  *redis.Client
	dropped atomic.Uint64
}

var (
	_ Publisher  = (*Redis)(nil)
	_ Subscriber = (*Redis)(nil)
)

// NewRedis connects to Redis at addr and pings it.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

// Publish sends payload to channel. Subscribers that are not connected
// right now simply miss it.
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a PubSub subscription on channel. Messages that
// arrive while the caller's queue is full are dropped and counted,
// never buffered.
func (r *Redis) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	ps := r.client.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so callers never
	// publish into a window where nobody listens yet.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Message, DefaultQueueSize)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			select {
			case out <- Message{Channel: m.Channel, Payload: []byte(m.Payload)}:
			default:
				r.dropped.Add(1)
			}
		}
	}()

	cancel := func() { _ = ps.Close() }
	return out, cancel, nil
}

// Dropped reports how many messages were discarded on full queues.
func (r *Redis) Dropped() uint64 { return r.dropped.Load() }

// Close tears down the underlying client and all subscriptions.
func (r *Redis) Close() error { return r.client.Close() }
