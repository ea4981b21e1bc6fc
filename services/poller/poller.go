// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package poller watches a drop directory and submits each new file to
// the ingestion API.
//
// Files land in the watch directory from scanners, exports, or manual
// copies, and may take several seconds to finish writing. A file is
// picked up once its size stops changing between two polls, submitted
// through the shared API client, and moved to done/ on acceptance or
// failed/ on rejection. The server's claim store is the duplicate
// guard; the poller's in-flight set only stops one path from being
// submitted twice at the same time.
//
// Detection runs on two legs: an fsnotify watch for prompt pickup and
// a periodic rescan that catches files dropped while the watcher was
// down or events the kernel coalesced away.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/client"
	"github.com/ryanrahmadifa/e2RTLedger/pkg/logging"
	"github.com/ryanrahmadifa/e2RTLedger/services/broadcast"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the poller lifecycle. Run blocks until the context is
// canceled, and may be called at most once per instance.
type Service interface {
	Run(ctx context.Context) error

	// Logger exposes the service logger so main can route package
	// level slog output through the same sinks.
	Logger() *logging.Logger
}

// Submitter is the slice of the API client the poller needs. The
// concrete *client.Client satisfies it.
type Submitter interface {
	SubmitFile(ctx context.Context, filename string, payload io.Reader) (*client.Task, error)
}

// =============================================================================
// Configuration
// =============================================================================

// Poller defaults. The stability budget is sized for a slow scanner
// writing a multi-page PDF over the network.
const (
	DefaultPollInterval     = time.Second
	DefaultScanInterval     = 10 * time.Second
	DefaultMaxInFlight      = 2
	DefaultStabilityTimeout = 2 * time.Minute
)

// Subdirectories of the watch dir that hold processed files. Both are
// skipped by the scanner.
const (
	doneDirName   = "done"
	failedDirName = "failed"
)

// Config holds poller configuration. Zero values take defaults.
type Config struct {
	// WatchDir is the drop directory. Required.
	WatchDir string

	// DoneDir receives accepted files. Default: WatchDir/done.
	DoneDir string

	// FailedDir receives rejected files. Default: WatchDir/failed.
	FailedDir string

	// PollInterval is the gap between the two size checks that decide
	// a file has finished writing. Default: 1s.
	PollInterval time.Duration

	// ScanInterval is how often the watch dir is rescanned for files
	// the notify events missed. Default: 10s.
	ScanInterval time.Duration

	// MaxInFlight bounds concurrent submissions. Default: 2.
	MaxInFlight int

	// StabilityTimeout is how long a file may keep growing before it
	// is given up on and moved to failed/. Default: 2m.
	StabilityTimeout time.Duration

	// Client submits files to the API. Required.
	Client Submitter

	// LogLevel is the minimum level ("debug", "info", "warn",
	// "error"). Default: info. Ignored when Logger is set.
	LogLevel string

	// LogDir enables file logging when set. Ignored when Logger is set.
	LogDir string

	// RedisAddr wires the poller's log lines onto the log_stream
	// broadcast channel. Empty disables export. Ignored when Logger
	// is set.
	RedisAddr string

	// RedisPassword authenticates against the broker. Optional.
	RedisPassword string

	// RedisDB selects the broker database. Default: 0.
	RedisDB int

	// Logger overrides the constructed logger, used by tests.
	Logger *logging.Logger
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.DoneDir == "" {
		cfg.DoneDir = filepath.Join(cfg.WatchDir, doneDirName)
	}
	if cfg.FailedDir == "" {
		cfg.FailedDir = filepath.Join(cfg.WatchDir, failedDirName)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.StabilityTimeout <= 0 {
		cfg.StabilityTimeout = DefaultStabilityTimeout
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config Config
	log    *logging.Logger
	client Submitter

	publisher  broadcast.Publisher // set only when the poller owns the broker connection
	ownsLogger bool

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	inflight map[string]struct{}

	slots chan struct{} // submission semaphore
	wg    sync.WaitGroup
}

// errNeverStable marks a file that kept growing past the budget.
var errNeverStable = errors.New("file size kept changing")

// New builds the poller: directories, the fsnotify watch, and a logger
// that exports to log_stream when a broker address is configured. The
// returned Service is ready for a single Run call.
func New(cfg Config) (Service, error) {
	if cfg.WatchDir == "" {
		return nil, errors.New("poller: watch dir is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("poller: client is required")
	}
	cfg = applyConfigDefaults(cfg)

	s := &service{
		config:   cfg,
		client:   cfg.Client,
		inflight: make(map[string]struct{}),
		slots:    make(chan struct{}, cfg.MaxInFlight),
	}

	if err := s.initBroker(); err != nil {
		return nil, err
	}
	s.initLogger()

	for _, dir := range []string{cfg.WatchDir, cfg.DoneDir, cfg.FailedDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(cfg.WatchDir); err != nil {
		watcher.Close()
		s.cleanup()
		return nil, fmt.Errorf("watch %s: %w", cfg.WatchDir, err)
	}
	s.watcher = watcher

	s.log.Info("Poller initialized",
		"watch_dir", cfg.WatchDir,
		"max_in_flight", cfg.MaxInFlight,
	)
	return s, nil
}

func (s *service) initBroker() error {
	if s.config.Logger != nil || s.config.RedisAddr == "" {
		return nil
	}
	broker, err := broadcast.NewRedis(context.Background(),
		s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	s.publisher = broker
	return nil
}

func (s *service) initLogger() {
	if s.config.Logger != nil {
		s.log = s.config.Logger
		return
	}
	var exporter logging.LogExporter
	if s.publisher != nil {
		exporter = broadcast.NewLogExporter(s.publisher)
	}
	s.log = logging.New(logging.Config{
		Level:    logging.ParseLevel(s.config.LogLevel),
		LogDir:   s.config.LogDir,
		Service:  "poller",
		Exporter: exporter,
	})
	s.ownsLogger = true
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run scans the watch dir, then follows notify events and periodic
// rescans until ctx is canceled. In-flight submissions are waited for
// on the way out; files interrupted mid-submission stay in the watch
// dir for the next start.
func (s *service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.scan(gctx)
		return s.watchLoop(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.config.ScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.scan(gctx)
			}
		}
	})

	err := g.Wait()
	s.wg.Wait()
	s.log.Info("Poller stopped")
	s.cleanup()
	return err
}

func (s *service) Logger() *logging.Logger { return s.log }

// =============================================================================
// Detection
// =============================================================================

// watchLoop feeds notify events into the submission path. Watcher
// errors are logged and watching continues; the periodic rescan covers
// whatever was missed.
func (s *service) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				s.enqueue(ctx, event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Watcher error", "error", err)
		}
	}
}

// scan walks the watch dir top level. Subdirectories (done/, failed/)
// and dotfiles are skipped.
func (s *service) scan(ctx context.Context) {
	entries, err := os.ReadDir(s.config.WatchDir)
	if err != nil {
		s.log.Warn("Scan failed", "dir", s.config.WatchDir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s.enqueue(ctx, filepath.Join(s.config.WatchDir, entry.Name()))
	}
}

// enqueue starts an ingest goroutine for the path unless one is
// already running for the same name.
func (s *service) enqueue(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}
	if !s.markInFlight(name) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.clearInFlight(name)
		s.ingest(ctx, path)
	}()
}

func (s *service) markInFlight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[name]; busy {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *service) clearInFlight(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, name)
}

// =============================================================================
// Submission
// =============================================================================

func (s *service) ingest(ctx context.Context, path string) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.slots }()

	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// Already moved, removed, or a directory event.
		return
	}

	size, err := s.waitStable(ctx, path)
	switch {
	case errors.Is(err, errNeverStable):
		s.log.Warn("File never stabilized, giving up", "file", name)
		s.moveTo(path, s.config.FailedDir)
		return
	case os.IsNotExist(err):
		return
	case err != nil:
		// Context canceled or stat failure; leave the file for the
		// next pass.
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.log.Warn("Cannot open file", "file", name, "error", err)
		s.moveTo(path, s.config.FailedDir)
		return
	}

	task, err := s.client.SubmitFile(ctx, name, f)
	f.Close()
	if err != nil {
		if ctx.Err() != nil {
			s.log.Info("Submission interrupted by shutdown, leaving file", "file", name)
			return
		}
		s.log.Warn("Submission rejected", "file", name, "error", err)
		s.moveTo(path, s.config.FailedDir)
		return
	}

	s.log.Info("File submitted",
		"file", name,
		"size_bytes", size,
		"task_id", task.ID,
	)
	s.moveTo(path, s.config.DoneDir)
}

// waitStable polls until two consecutive size checks agree and the
// file is non-empty. Scanners create the file first and stream into
// it, so an empty file just has not started yet.
func (s *service) waitStable(ctx context.Context, path string) (int64, error) {
	deadline := time.Now().Add(s.config.StabilityTimeout)
	last := int64(-1)
	for {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		size := info.Size()
		if size == last && size > 0 {
			return size, nil
		}
		last = size
		if time.Now().After(deadline) {
			return 0, errNeverStable
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.config.PollInterval):
		}
	}
}

func (s *service) moveTo(path, dir string) {
	target := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		s.log.Warn("Failed to move file", "from", path, "to", target, "error", err)
	}
}

// =============================================================================
// Cleanup
// =============================================================================

func (s *service) cleanup() {
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.Warn("Watcher close error", "error", err)
		}
	}
	if s.ownsLogger {
		_ = s.log.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Warn("Broker close error", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
var _ Submitter = (*client.Client)(nil)
