// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command relay starts the e2RT websocket relay.
//
// The relay subscribes to the Redis broadcast channels written by the
// api service and streams them to websocket clients: ledger updates on
// /ws/ledger and service logs on /ws/logs.
//
// # Environment Variables
//
//   - E2RT_RELAY_PORT: HTTP server port (default: 8001)
//   - E2RT_REDIS_ADDR: broker address (default: localhost:6379)
//   - E2RT_REDIS_PASSWORD: broker password (optional)
//   - E2RT_REDIS_DB: broker database number (default: 0)
//   - E2RT_LOG_LEVEL: debug, info, warn, error (default: info)
//   - E2RT_GIN_MODE: gin mode - debug, release, test (default: release)
//
// # Usage
//
//	# Build
//	go build -o relay ./cmd/relay
//
//	# Run
//	./relay
//
//	# Or via container
//	podman-compose up relay
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/relay"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("E2RT_LOG_LEVEL")),
		Service: "relay",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := relay.Config{
		Port:          getEnvInt("E2RT_RELAY_PORT", 8001),
		RedisAddr:     getEnvString("E2RT_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("E2RT_REDIS_PASSWORD"),
		RedisDB:       getEnvInt("E2RT_REDIS_DB", 0),
		GinMode:       getEnvString("E2RT_GIN_MODE", gin.ReleaseMode),
		EnableMetrics: true,
		Logger:        logger,
	}

	slog.Info("Starting relay",
		"port", cfg.Port,
		"redis_addr", cfg.RedisAddr,
	)

	svc, err := relay.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create relay: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Relay error: %v", err)
	}
	slog.Info("Relay stopped")
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
