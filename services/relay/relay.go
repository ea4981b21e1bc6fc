// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package relay implements the websocket fan-out service.
//
// The relay subscribes to the broker channels published by the ingest
// pipeline (ledger_updates and log_stream) and streams them to any
// number of websocket clients. Delivery is best-effort at-most-once:
// there is no history, a client connecting after a publish never sees
// it, and a client that cannot drain its queue loses messages without
// slowing anyone else down.
//
// A bounded dedup cache sits in front of the ledger hub so a broker
// replay of the same fingerprint inside the window reaches clients
// once.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/broadcast"
	"github.com/ryanrahmadifa/e2RTLedger/services/relay/hub"
	"github.com/ryanrahmadifa/e2RTLedger/services/relay/observability"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the relay lifecycle. Run blocks until the context is
// canceled or the server fails, and may be called at most once per
// instance.
type Service interface {
	Run(ctx context.Context) error

	// Router exposes the gin engine for integration tests.
	Router() *gin.Engine

	// Addr reports the bound listen address. Empty until Run has
	// opened the listener, which makes Port 0 usable in tests.
	Addr() string
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds relay configuration. Zero values take defaults.
type Config struct {
	// Port is the HTTP listen port. Default: 8001. Port 0 binds an
	// ephemeral port, reported by Addr.
	Port int

	// RedisAddr is the broker address. Default: "localhost:6379".
	// Ignored when Subscriber is set.
	RedisAddr string

	// RedisPassword authenticates against the broker. Optional.
	RedisPassword string

	// RedisDB selects the broker database. Default: 0.
	RedisDB int

	// DedupTTL is the duplicate suppression window for ledger
	// updates. Default: 5m.
	DedupTTL time.Duration

	// DedupMaxEntries bounds the dedup cache. Default: 4096.
	DedupMaxEntries int

	// SendBuffer is the per-client outbound queue size. Default: 32.
	SendBuffer int

	// EnableMetrics registers the Prometheus collectors and serves
	// /metrics. Leave false in tests; registration is global and
	// panics on repetition.
	EnableMetrics bool

	// GinMode sets the gin framework mode ("debug", "release",
	// "test"). Empty keeps gin's own default.
	GinMode string

	// Logger defaults to logging.Default(). The relay never exports
	// its own logs to log_stream; it is the consumer side of that
	// channel.
	Logger *logging.Logger

	// Subscriber overrides the broker connection, used by tests to
	// wire an in-process bus. When nil the relay dials Redis.
	Subscriber broadcast.Subscriber
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8001
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = hub.DefaultDedupTTL
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = hub.DefaultDedupMaxEntries
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = hub.DefaultSendBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config  Config
	log     *logging.Logger
	metrics *observability.RelayMetrics

	sub    broadcast.Subscriber
	broker *broadcast.Redis // set only when the relay owns the connection

	ledgerHub *hub.Hub
	logsHub   *hub.Hub
	dedup     *hub.Dedup

	router   *gin.Engine
	upgrader websocket.Upgrader
	addr     atomic.Value // string
}

// New builds the relay: broker connection (unless injected), one hub
// per channel, the dedup cache, and the HTTP routes. The returned
// Service is ready for a single Run call.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &service{
		config: cfg,
		log:    cfg.Logger,
	}

	if cfg.EnableMetrics {
		s.metrics = observability.InitMetrics()
		s.log.Info("Initialized Prometheus metrics for relay")
	}

	if cfg.Subscriber != nil {
		s.sub = cfg.Subscriber
	} else {
		broker, err := broadcast.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		s.broker = broker
		s.sub = broker
	}

	s.ledgerHub = hub.New(hub.Config{
		Name:       broadcast.ChannelLedger,
		Logger:     s.log,
		Clients:    s.clientGauge(observability.ChannelLedger),
		Dropped:    s.dropCounter(observability.ChannelLedger),
		SendBuffer: cfg.SendBuffer,
	})
	s.logsHub = hub.New(hub.Config{
		Name:       broadcast.ChannelLogs,
		Logger:     s.log,
		Clients:    s.clientGauge(observability.ChannelLogs),
		Dropped:    s.dropCounter(observability.ChannelLogs),
		SendBuffer: cfg.SendBuffer,
	})
	s.dedup = hub.NewDedup(cfg.DedupTTL, cfg.DedupMaxEntries)

	// The relay sits on internal networks behind the compose stack;
	// browser clients connect from arbitrary origins.
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	s.initRouter()
	return s, nil
}

// clientGauge and dropCounter return nil when metrics are disabled;
// the hub treats nil collectors as no-ops.

func (s *service) clientGauge(ch observability.Channel) prometheus.Gauge {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.ClientGauge(ch)
}

func (s *service) dropCounter(ch observability.Channel) prometheus.Counter {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.DropCounter(ch)
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the hubs, the broker subscriber loops, and the HTTP
// server, then blocks until ctx is canceled or a component fails.
// All clients are disconnected on the way out.
func (s *service) Run(ctx context.Context) error {
	go s.ledgerHub.Run()
	go s.logsHub.Run()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		s.shutdown()
		return fmt.Errorf("listen: %w", err)
	}
	s.addr.Store(lis.Addr().String())

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("Relay listening", "addr", lis.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pump(gctx, broadcast.ChannelLedger, s.ledgerHub, s.dedup) })
	g.Go(func() error { return s.pump(gctx, broadcast.ChannelLogs, s.logsHub, nil) })
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
	s.shutdown()
	return err
}

func (s *service) Router() *gin.Engine { return s.router }

func (s *service) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

// =============================================================================
// Subscriber Loop
// =============================================================================

// pump keeps one broker subscription alive and feeds its hub. Lost
// subscriptions are retried with doubling backoff capped at 30s. The
// per-message path never logs: a log line here would loop straight
// back through log_stream.
func (s *service) pump(ctx context.Context, channel string, h *hub.Hub, dd *hub.Dedup) error {
	backoff := time.Second
	for {
		msgs, cancel, err := s.sub.Subscribe(ctx, channel)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("Broker subscribe failed, retrying",
				"channel", channel, "backoff", backoff.String(), "error", err)
			if s.metrics != nil {
				s.metrics.RecordReconnect(observability.Channel(channel))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		backoff = time.Second
		s.log.Info("Subscribed to broker channel", "channel", channel)
		s.drain(ctx, msgs, h, dd, channel)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
	}
}

// drain forwards messages until the subscription closes or ctx ends.
func (s *service) drain(ctx context.Context, msgs <-chan broadcast.Message, h *hub.Hub, dd *hub.Dedup, channel string) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if dd != nil {
				if key := dedupKey(m.Payload); key != "" && dd.Seen(key) {
					if s.metrics != nil {
						s.metrics.RecordDuplicate(observability.Channel(channel))
					}
					continue
				}
			}
			h.Broadcast(m.Payload)
			if s.metrics != nil {
				s.metrics.RecordRelayed(observability.Channel(channel))
			}
		}
	}
}

// dedupKey pulls the fingerprint out of a ledger update. Payloads
// without one (or non-JSON payloads) are passed through undeduped.
func dedupKey(payload []byte) string {
	var probe struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.Fingerprint
}

// =============================================================================
// HTTP Routes
// =============================================================================

func (s *service) initRouter() {
	s.router = gin.Default()

	s.router.GET("/ws/ledger", s.handleWS(s.ledgerHub))
	s.router.GET("/ws/logs", s.handleWS(s.logsHub))
	s.router.GET("/healthz", s.handleHealth)
	if s.config.EnableMetrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func (s *service) handleWS(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response.
			s.log.Warn("Websocket upgrade failed", "error", err)
			return
		}
		hub.ServeConn(h, conn)
	}
}

func (s *service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"clients": gin.H{
			broadcast.ChannelLedger: s.ledgerHub.ClientCount(),
			broadcast.ChannelLogs:   s.logsHub.ClientCount(),
		},
	})
}

// =============================================================================
// Cleanup
// =============================================================================

func (s *service) shutdown() {
	s.ledgerHub.Stop()
	s.logsHub.Stop()
	s.dedup.Close()
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.log.Warn("Broker close error", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
