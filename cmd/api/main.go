// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command api starts the e2RT ingestion service.
//
// The service accepts finance documents over HTTP, extracts their
// text, classifies them through an LLM, and records exactly one ledger
// entry per unique document. Published entries and service logs are
// broadcast over Redis for the relay to stream.
//
// # Environment Variables
//
//   - E2RT_API_PORT: HTTP server port (default: 8000)
//   - E2RT_GIN_MODE: gin mode - debug, release, test (default: release)
//   - E2RT_LOG_LEVEL: debug, info, warn, error (default: info)
//   - E2RT_LOG_DIR: directory for file logs (optional)
//   - E2RT_REDIS_ADDR: Redis address for claims and broadcast (default: localhost:6379)
//   - E2RT_REDIS_PASSWORD: Redis password (optional)
//   - E2RT_REDIS_DB: Redis database number (default: 0)
//   - E2RT_CLAIMS_BACKEND: redis, badger, memory (default: redis)
//   - E2RT_BADGER_DIR: badger data directory (default: ./claims.db)
//   - E2RT_CLAIM_TTL: provisional claim lifetime (default: 5m)
//   - E2RT_LEDGER_BACKEND: postgres, sqlite, memory (default: sqlite)
//   - E2RT_POSTGRES_DSN: lib/pq connection string (postgres backend)
//   - E2RT_SQLITE_PATH: sqlite database file (default: ./ledger.db)
//   - E2RT_BROKER_BACKEND: redis, bus (default: redis)
//   - OPENROUTER_API_KEY: classifier credential (required)
//   - E2RT_CLASSIFIER_URL: OpenAI-compatible base URL (default: OpenRouter)
//   - E2RT_MODEL: classifier model id (optional)
//   - E2RT_COMPANY_NAME: company context for classification (optional)
//   - E2RT_CLASSIFY_TIMEOUT: per-document classification budget (default: 30s)
//   - E2RT_CLASSIFY_RPM: classifier requests per minute (default: 60)
//   - E2RT_OCR_URL: remote OCR service; builtin extraction when unset
//   - E2RT_UPLOAD_DIR: upload archive directory (default: ./uploads)
//   - E2RT_MAX_UPLOAD_BYTES: multipart size cap (default: 20971520)
//   - E2RT_QUEUE_SIZE: extraction queue depth (default: 64)
//   - E2RT_WORKERS: extraction worker count (default: 4)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: enables tracing when set
//   - E2RT_TRACE_SAMPLE_RATIO: head sampling ratio (default: 1.0)
//
// # Usage
//
//	# Build
//	go build -o api ./cmd/api
//
//	# Run
//	OPENROUTER_API_KEY=sk-... ./api
//
//	# Or via container
//	podman-compose up api
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

	"github.com/gin-gonic/gin"

	"github.com/ryanrahmadifa/e2RTLedger/services/api"
)

// Set at build time via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg := api.Config{
		Port:              getEnvInt("E2RT_API_PORT", 8000),
		GinMode:           getEnvString("E2RT_GIN_MODE", gin.ReleaseMode),
		EnableMetrics:     true,
		EnableTracing:     otlpEndpoint != "",
		OTLPEndpoint:      otlpEndpoint,
		TraceSampleRatio:  getEnvFloat("E2RT_TRACE_SAMPLE_RATIO", 1.0),
		Version:           version,
		Commit:            commit,
		LogLevel:          os.Getenv("E2RT_LOG_LEVEL"),
		LogDir:            os.Getenv("E2RT_LOG_DIR"),
		RedisAddr:         getEnvString("E2RT_REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("E2RT_REDIS_PASSWORD"),
		RedisDB:           getEnvInt("E2RT_REDIS_DB", 0),
		ClaimsBackend:     getEnvString("E2RT_CLAIMS_BACKEND", "redis"),
		BadgerDir:         os.Getenv("E2RT_BADGER_DIR"),
		ClaimTTL:          getEnvDuration("E2RT_CLAIM_TTL", 0),
		LedgerBackend:     getEnvString("E2RT_LEDGER_BACKEND", "sqlite"),
		PostgresDSN:       os.Getenv("E2RT_POSTGRES_DSN"),
		SQLitePath:        os.Getenv("E2RT_SQLITE_PATH"),
		BrokerBackend:     getEnvString("E2RT_BROKER_BACKEND", "redis"),
		OpenRouterKey:     os.Getenv("OPENROUTER_API_KEY"),
		ClassifierBaseURL: os.Getenv("E2RT_CLASSIFIER_URL"),
		Model:             os.Getenv("E2RT_MODEL"),
		Company:           os.Getenv("E2RT_COMPANY_NAME"),
		ClassifyTimeout:   getEnvDuration("E2RT_CLASSIFY_TIMEOUT", 0),
		RequestsPerMinute: getEnvInt("E2RT_CLASSIFY_RPM", 0),
		OCRBaseURL:        os.Getenv("E2RT_OCR_URL"),
		UploadDir:         os.Getenv("E2RT_UPLOAD_DIR"),
		MaxUploadBytes:    int64(getEnvInt("E2RT_MAX_UPLOAD_BYTES", 0)),
		QueueSize:         getEnvInt("E2RT_QUEUE_SIZE", 0),
		Workers:           getEnvInt("E2RT_WORKERS", 0),
	}

	svc, err := api.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create api service: %v", err)
	}

	// Route package-level slog through the service logger so every
	// component's lines reach the same sinks, log_stream included.
	slog.SetDefault(svc.Logger().Slog())

	slog.Info("Starting api",
		"port", cfg.Port,
		"version", version,
		"claims_backend", cfg.ClaimsBackend,
		"ledger_backend", cfg.LedgerBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("API error: %v", err)
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

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
