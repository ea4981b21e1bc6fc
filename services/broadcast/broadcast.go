// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package broadcast moves published ledger entries and log lines from
// the api process to relay subscribers. Delivery is best-effort
// at-most-once: there is no history and no replay, subscribers only
// see what is published while they are connected.
package broadcast

import "context"

// Channel names shared by publishers and the relay.
const (
	// ChannelLedger carries the JSON encoding of each published entry.
	ChannelLedger = "ledger_updates"

	// ChannelLogs carries one {"log": line} object per log record.
	ChannelLogs = "log_stream"
)

// Message is one delivery on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Publisher sends payloads to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Subscriber receives payloads from a named channel. The ctx bounds
// subscription setup only; the returned cancel func tears the
// subscription down and closes the message channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error)
}
