// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api assembles the ingestion service: claim store, ledger,
// classifier, pipeline orchestrator, extraction tracker, and the HTTP
// surface that exposes them.
//
// Document intake is exactly-once from the ledger's point of view: the
// claim store serializes concurrent submissions of the same
// fingerprint, the ledger upsert absorbs replays, and the broadcast of
// a published entry is fire-and-forget. Uploads run through a bounded
// worker queue; raw text is processed synchronously on the request.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/handlers"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/observability"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/routes"
	"github.com/ryanrahmadifa/e2RTLedger/services/broadcast"
	"github.com/ryanrahmadifa/e2RTLedger/services/claims"
	"github.com/ryanrahmadifa/e2RTLedger/services/classify"
	"github.com/ryanrahmadifa/e2RTLedger/services/extract"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
	"github.com/ryanrahmadifa/e2RTLedger/services/pipeline"
)

// trackerDrainTimeout bounds how long shutdown waits for in-flight
// extractions before abandoning them. The claim TTL and the ledger
// upsert make an abandoned task safe to resubmit.
const trackerDrainTimeout = 30 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the API lifecycle. Run blocks until the context is
// canceled or the server fails, and may be called at most once per
// instance.
type Service interface {
	Run(ctx context.Context) error

	// Router exposes the gin engine for integration tests.
	Router() *gin.Engine

	// Addr reports the bound listen address. Empty until Run has
	// opened the listener, which makes Port 0 usable in tests.
	Addr() string

	// Logger exposes the service logger so main can install it as the
	// process default.
	Logger() *logging.Logger
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds API configuration. Zero values take defaults.
type Config struct {
	// Port is the HTTP listen port. Default: 8000. Port 0 binds an
	// ephemeral port, reported by Addr.
	Port int

	// GinMode sets the gin framework mode ("debug", "release",
	// "test"). Empty keeps gin's own default.
	GinMode string

	// EnableMetrics registers the Prometheus collectors and serves
	// /metrics. Leave false in tests; registration is global and
	// panics on repetition.
	EnableMetrics bool

	// EnableTracing exports OTLP spans to OTLPEndpoint.
	EnableTracing bool

	// OTLPEndpoint is the collector address, host:port. Required when
	// EnableTracing is set.
	OTLPEndpoint string

	// TraceSampleRatio is the head sampling ratio for new traces;
	// child spans follow their parent's decision. Default: 1.0.
	TraceSampleRatio float64

	// Version and Commit identify the build, surfaced on /healthz and
	// /version.
	Version string
	Commit  string

	// LogLevel is debug, info, warn or error. Default: info.
	LogLevel string

	// LogDir enables file logging when set. Ignored when Logger is
	// injected.
	LogDir string

	// RedisAddr serves both the claim store and the broker. Default:
	// "localhost:6379".
	RedisAddr string

	// RedisPassword authenticates against Redis. Optional.
	RedisPassword string

	// RedisDB selects the Redis database. Default: 0.
	RedisDB int

	// ClaimsBackend is "redis", "badger" or "memory". Default:
	// "redis". The badger backend embeds the claim store in-process;
	// memory is for tests and dev.
	ClaimsBackend string

	// BadgerDir is the badger data directory. Default: "./claims.db".
	BadgerDir string

	// ClaimTTL bounds provisional claims, the window in which a
	// crashed ingest self-heals. Default: claims.DefaultTTL.
	ClaimTTL time.Duration

	// LedgerBackend is "postgres", "sqlite" or "memory". Default:
	// "sqlite".
	LedgerBackend string

	// PostgresDSN is the lib/pq connection string. Required for the
	// postgres backend.
	PostgresDSN string

	// SQLitePath is the sqlite database file. Default: "./ledger.db".
	SQLitePath string

	// BrokerBackend is "redis" or "bus". Default: "redis". The bus
	// broker is in-process only; a separately deployed relay cannot
	// subscribe to it.
	BrokerBackend string

	// OpenRouterKey authenticates the classifier. Required unless
	// Classifier is injected.
	OpenRouterKey string

	// ClassifierBaseURL, Model and Company override the classifier
	// defaults.
	ClassifierBaseURL string
	Model             string
	Company           string

	// ClassifyTimeout bounds one classification round trip.
	ClassifyTimeout time.Duration

	// RequestsPerMinute paces outbound classifier calls.
	RequestsPerMinute int

	// OCRBaseURL selects the remote extraction engine when set;
	// otherwise the builtin engine handles txt, md, csv and pdf.
	OCRBaseURL string

	// UploadDir archives accepted uploads before they are queued.
	// Default: "./uploads".
	UploadDir string

	// MaxUploadBytes rejects larger uploads with 413. Default: 20 MiB.
	MaxUploadBytes int64

	// QueueSize and Workers size the extraction tracker. Defaults per
	// the extract package.
	QueueSize int
	Workers   int

	// Logger overrides the internally built logger. When nil the
	// service builds one that also exports every line to log_stream.
	Logger *logging.Logger

	// Publisher overrides the broker connection, used by tests to
	// wire an in-process bus. When nil the BrokerBackend decides.
	Publisher broadcast.Publisher

	// Classifier overrides the OpenRouter client, used by tests.
	Classifier classify.Classifier
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.TraceSampleRatio <= 0 {
		cfg.TraceSampleRatio = 1.0
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.ClaimsBackend == "" {
		cfg.ClaimsBackend = "redis"
	}
	if cfg.BadgerDir == "" {
		cfg.BadgerDir = "./claims.db"
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = claims.DefaultTTL
	}
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = "sqlite"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "./ledger.db"
	}
	if cfg.BrokerBackend == "" {
		cfg.BrokerBackend = "redis"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = handlers.DefaultMaxUploadBytes
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config  Config
	log     *logging.Logger
	metrics *observability.APIMetrics

	publisher  broadcast.Publisher
	ownsBroker bool
	ownsLogger bool

	claims     claims.Store
	ledger     ledger.Store
	classifier classify.Classifier
	pipeline   *pipeline.Orchestrator
	tracker    *extract.Tracker

	tracerStop func(context.Context)

	router *gin.Engine
	addr   atomic.Value // string
}

// New builds the service bottom-up: broker, logger, stores, classifier,
// pipeline, tracker, tracer, routes. Everything constructed before a
// failure is released again, so a half-built service never leaks
// connections.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &service{config: cfg}

	if cfg.EnableMetrics {
		s.metrics = observability.InitMetrics()
	}

	// The broker comes first: the logger exports to it.
	if err := s.initBroker(); err != nil {
		return nil, err
	}
	s.initLogger()

	if err := s.initClaims(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initLedger(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initClassifier(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initPipeline(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initTracker(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initTracer(); err != nil {
		s.cleanup()
		return nil, err
	}
	s.initRouter()

	s.log.Info("API service initialized",
		"claims", cfg.ClaimsBackend,
		"ledger", cfg.LedgerBackend,
		"broker", cfg.BrokerBackend)
	return s, nil
}

// =============================================================================
// Component Initialization
// =============================================================================

func (s *service) initBroker() error {
	if s.config.Publisher != nil {
		s.publisher = s.config.Publisher
		return nil
	}
	switch s.config.BrokerBackend {
	case "bus":
		s.publisher = broadcast.NewBus(0)
		s.ownsBroker = true
	default:
		broker, err := broadcast.NewRedis(context.Background(),
			s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		s.publisher = broker
		s.ownsBroker = true
	}
	return nil
}

func (s *service) initLogger() {
	if s.config.Logger != nil {
		s.log = s.config.Logger
		return
	}
	s.log = logging.New(logging.Config{
		Level:    logging.ParseLevel(s.config.LogLevel),
		LogDir:   s.config.LogDir,
		Service:  "api",
		Exporter: broadcast.NewLogExporter(s.publisher),
	})
	s.ownsLogger = true
}

func (s *service) initClaims() error {
	var err error
	switch s.config.ClaimsBackend {
	case "badger":
		bcfg := claims.DefaultBadgerConfig(s.config.BadgerDir)
		bcfg.TTL = s.config.ClaimTTL
		s.claims, err = claims.NewBadgerStore(bcfg)
	case "memory":
		s.claims = claims.NewMemoryStore(s.config.ClaimTTL)
	case "redis":
		s.claims, err = claims.NewRedisStore(context.Background(),
			s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB, s.config.ClaimTTL)
	default:
		s.log.Warn("Unknown claims backend, defaulting to redis", "backend", s.config.ClaimsBackend)
		s.claims, err = claims.NewRedisStore(context.Background(),
			s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB, s.config.ClaimTTL)
	}
	if err != nil {
		return fmt.Errorf("open claim store: %w", err)
	}
	s.log.Info("Claim store ready", "backend", s.config.ClaimsBackend, "ttl", s.config.ClaimTTL.String())
	return nil
}

func (s *service) initLedger() error {
	var err error
	switch s.config.LedgerBackend {
	case "postgres":
		s.ledger, err = ledger.NewPostgresStore(context.Background(), s.config.PostgresDSN)
	case "memory":
		s.ledger = ledger.NewMemoryStore()
	case "sqlite":
		s.ledger, err = ledger.NewSQLiteStore(s.config.SQLitePath)
	default:
		s.log.Warn("Unknown ledger backend, defaulting to sqlite", "backend", s.config.LedgerBackend)
		s.ledger, err = ledger.NewSQLiteStore(s.config.SQLitePath)
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	s.log.Info("Ledger ready", "backend", s.config.LedgerBackend)
	return nil
}

func (s *service) initClassifier() error {
	if s.config.Classifier != nil {
		s.classifier = s.config.Classifier
		return nil
	}
	cl, err := classify.NewOpenRouter(classify.Config{
		APIKey:            s.config.OpenRouterKey,
		BaseURL:           s.config.ClassifierBaseURL,
		Model:             s.config.Model,
		Company:           s.config.Company,
		Timeout:           s.config.ClassifyTimeout,
		RequestsPerMinute: s.config.RequestsPerMinute,
	})
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	s.classifier = cl
	return nil
}

func (s *service) initPipeline() error {
	var broadcastFailures prometheus.Counter
	if s.metrics != nil {
		broadcastFailures = s.metrics.BroadcastFailuresTotal
	}
	orch, err := pipeline.NewOrchestrator(pipeline.Config{
		Claims:            s.claims,
		Classifier:        s.classifier,
		Ledger:            s.ledger,
		Publisher:         s.publisher,
		Logger:            s.log,
		BroadcastFailures: broadcastFailures,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	s.pipeline = orch
	return nil
}

func (s *service) initTracker() error {
	var engine extract.Engine
	if s.config.OCRBaseURL != "" {
		engine = extract.NewRemoteEngine(s.config.OCRBaseURL)
		s.log.Info("Using remote OCR extraction engine", "url", s.config.OCRBaseURL)
	} else {
		engine = extract.NewBuiltinEngine()
	}

	tr, err := extract.NewTracker(extract.TrackerConfig{
		Processor: instrumentedProcessor{inner: s.pipeline, metrics: s.metrics},
		Engine:    engine,
		Logger:    s.log,
		QueueSize: s.config.QueueSize,
		Workers:   s.config.Workers,
	})
	if err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}
	s.tracker = tr
	return nil
}

// initTracer sets up the OTLP span exporter. Sampling is head-based at
// TraceSampleRatio, with child spans following their parent, so a
// busy ingest path can be dialed down without orphaning traces.
func (s *service) initTracer() error {
	if !s.config.EnableTracing {
		return nil
	}
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("e2rt-api")))
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.config.TraceSampleRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	s.tracerStop = func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.log.Error("Failed to shut down OTLP exporter", "error", err)
		}
	}
	return nil
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("e2rt-api"))

	routes.SetupRoutes(s.router, &handlers.Deps{
		Tracker:        s.tracker,
		Pipeline:       s.pipeline,
		Ledger:         s.ledger,
		Claims:         s.claims,
		Metrics:        s.metrics,
		Logger:         s.log,
		UploadDir:      s.config.UploadDir,
		MaxUploadBytes: s.config.MaxUploadBytes,
		Version:        s.config.Version,
		Commit:         s.config.Commit,
	}, s.config.EnableMetrics)
}

// instrumentedProcessor records pipeline outcomes for documents that
// arrive through the async upload path; the text path records in its
// handler.
type instrumentedProcessor struct {
	inner   extract.Processor
	metrics *observability.APIMetrics
}

func (p instrumentedProcessor) Process(ctx context.Context, doc pipeline.Document) (pipeline.Outcome, error) {
	outcome, err := p.inner.Process(ctx, doc)
	if err == nil && p.metrics != nil {
		p.metrics.RecordIngested(observability.ModeFile, outcome.Status)
		if outcome.Status == pipeline.StatusClassificationFailed {
			p.metrics.RecordClassificationFailure(outcome.Reason)
		}
	}
	return outcome, err
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails. Shutdown drains in-flight extractions (bounded by
// trackerDrainTimeout) before closing the stores.
func (s *service) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		s.drainTracker()
		s.cleanup()
		return fmt.Errorf("listen: %w", err)
	}
	s.addr.Store(lis.Addr().String())

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("API listening", "addr", lis.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	s.drainTracker()
	s.log.Info("API stopped")
	s.cleanup()
	return err
}

func (s *service) Router() *gin.Engine { return s.router }

func (s *service) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

func (s *service) Logger() *logging.Logger { return s.log }

// =============================================================================
// Shutdown
// =============================================================================

// drainTracker lets queued and in-flight extractions finish, bounded so
// shutdown cannot hang on a stuck worker.
func (s *service) drainTracker() {
	if s.tracker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		if err := s.tracker.Close(); err != nil {
			s.log.Warn("Tracker close error", "error", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(trackerDrainTimeout):
		s.log.Warn("Tracker drain timed out", "timeout", trackerDrainTimeout.String())
	}
}

// cleanup releases everything New built, in reverse dependency order.
// The logger closes before the broker so its exporter can flush; its
// stderr handler keeps working afterwards, so the broker close is
// still reported.
func (s *service) cleanup() {
	if s.tracerStop != nil {
		s.tracerStop(context.Background())
		s.tracerStop = nil
	}
	if s.claims != nil {
		if err := s.claims.Close(); err != nil {
			s.log.Warn("Claim store close error", "error", err)
		}
		s.claims = nil
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.log.Warn("Ledger close error", "error", err)
		}
		s.ledger = nil
	}
	if s.ownsLogger {
		_ = s.log.Close()
	}
	if s.ownsBroker && s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Warn("Broker close error", "error", err)
		}
		s.publisher = nil
	}
}

// Interface compliance check.
var _ Service = (*service)(nil)
