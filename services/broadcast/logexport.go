// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package broadcast

import (
	"context"
	"encoding/json"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
)

// LogExporter republishes each log line onto the log_stream channel so
// relay clients can tail the services live.
//
// The exporter itself never logs, which keeps log records from
// re-entering the exporter through the logger they came from. The
// Publisher handed in must hold the same rule.
type LogExporter struct {
	pub Publisher
}

var _ logging.LogExporter = (*LogExporter)(nil)

// NewLogExporter wraps pub. The exporter does not own pub and will not
// close it.
func NewLogExporter(pub Publisher) *LogExporter {
	return &LogExporter{pub: pub}
}

// Export publishes {"log": line} for the entry. Errors are returned to
// the logging layer, which drops them.
func (e *LogExporter) Export(ctx context.Context, entry logging.LogEntry) error {
	payload, err := json.Marshal(map[string]string{"log": entry.Line()})
	if err != nil {
		return err
	}
	return e.pub.Publish(ctx, ChannelLogs, payload)
}

// Flush is a no-op; nothing is buffered here.
func (e *LogExporter) Flush(context.Context) error { return nil }

// Close is a no-op; the Publisher is owned by the caller.
func (e *LogExporter) Close() error { return nil }
