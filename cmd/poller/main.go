// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command poller watches a drop directory and submits new files to the
// e2RT ingestion API.
//
// Files that finish writing are uploaded through the API's multipart
// endpoint and moved to done/ on acceptance or failed/ on rejection.
// Duplicate content is harmless: the server's claim store publishes
// each unique document once regardless of how often it is submitted.
//
// # Environment Variables
//
//   - E2RT_WATCH_DIR: drop directory to watch (required)
//   - E2RT_API_URL: ingestion API base URL (default: http://localhost:8000)
//   - E2RT_POLL_INTERVAL: gap between file size checks (default: 1s)
//   - E2RT_SCAN_INTERVAL: full rescan period (default: 10s)
//   - E2RT_MAX_IN_FLIGHT: concurrent submissions (default: 2)
//   - E2RT_LOG_LEVEL: debug, info, warn, error (default: info)
//   - E2RT_LOG_DIR: directory for file logs (optional)
//   - E2RT_REDIS_ADDR: broker address for log export (optional)
//   - E2RT_REDIS_PASSWORD: broker password (optional)
//   - E2RT_REDIS_DB: broker database number (default: 0)
//
// # Usage
//
//	# Build
//	go build -o poller ./cmd/poller
//
//	# Run
//	E2RT_WATCH_DIR=/data/dropbox ./poller
//
//	# Or via container
//	podman-compose up poller
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
	"github.com/ryanrahmadifa/e2RTLedger/services/poller"
)

func main() {
	apiURL := getEnvString("E2RT_API_URL", "http://localhost:8000")

	cfg := poller.Config{
		WatchDir:      os.Getenv("E2RT_WATCH_DIR"),
		PollInterval:  getEnvDuration("E2RT_POLL_INTERVAL", 0),
		ScanInterval:  getEnvDuration("E2RT_SCAN_INTERVAL", 0),
		MaxInFlight:   getEnvInt("E2RT_MAX_IN_FLIGHT", 0),
		Client:        client.New(apiURL),
		LogLevel:      os.Getenv("E2RT_LOG_LEVEL"),
		LogDir:        os.Getenv("E2RT_LOG_DIR"),
		RedisAddr:     os.Getenv("E2RT_REDIS_ADDR"),
		RedisPassword: os.Getenv("E2RT_REDIS_PASSWORD"),
		RedisDB:       getEnvInt("E2RT_REDIS_DB", 0),
	}

	svc, err := poller.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create poller: %v", err)
	}
	slog.SetDefault(svc.Logger().Slog())

	slog.Info("Starting poller",
		"watch_dir", cfg.WatchDir,
		"api_url", apiURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Poller error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a
// default. Zero lets the service apply its own default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
