// Package server provides the HTTP server of phaserun serve.
//
// The server runs test groups from a catalog on demand or on cron schedules
// and exposes their live status, their history and Prometheus metrics.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - GET /metrics - Prometheus metrics
//   - GET /groups - Test groups that can be run
//   - GET /status - Running groups, live test case status and schedules
//   - GET /history - Outcomes of finished runs, optionally ?group= filtered
//   - GET /history/{id} - Outcome of one run
//   - GET /info - Build and instance properties
//   - POST /run - Runs test groups in the background
//
// # Example
//
//	srv, err := server.New(cfg, catalog, server.WithSchedule("arithmetic:0 2 * * *"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nomis52/phasetest/buildinfo"
	"github.com/nomis52/phasetest/config"
	"github.com/nomis52/phasetest/history"
	"github.com/nomis52/phasetest/logging"
	"github.com/nomis52/phasetest/metrics"
	"github.com/nomis52/phasetest/runner"
	"github.com/nomis52/phasetest/schedule"
	"github.com/nomis52/phasetest/server/handlers"
	"github.com/nomis52/phasetest/status"
	"github.com/nomis52/phasetest/suites"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Server is the HTTP server running test groups.
type Server struct {
	cfg          config.Config
	addr         string
	logger       *slog.Logger
	log          io.Writer
	ref          io.Writer
	scheduleSpec string

	catalog    *suites.Catalog
	registry   *metrics.ScrapeRegistry
	statuses   *status.Collection
	store      *history.MemoryStore
	dispatcher *Dispatcher
	schedules  *schedule.Manager
	props      handlers.ServerProperties
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets the server logger. Defaults to a logger built from the
// logging configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithListenAddr overrides the configured listen address.
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		if addr == "" {
			return errors.New("listen address cannot be empty")
		}
		s.addr = addr
		return nil
	}
}

// WithStreams sets the log and reference output streams of the test group
// runs.
func WithStreams(log, ref io.Writer) Option {
	return func(s *Server) error {
		s.log = log
		s.ref = ref
		return nil
	}
}

// WithSchedule adds schedules in the format of schedule.ParseSpecs to the
// configured ones.
func WithSchedule(spec string) Option {
	return func(s *Server) error {
		s.scheduleSpec = spec
		return nil
	}
}

// New creates a Server running the test groups of catalog.
func New(cfg config.Config, catalog *suites.Catalog, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		addr:    cfg.Server.Listener.Addr,
		catalog: catalog,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		s.logger = logger.Logger
	}

	var err error
	if s.registry, err = metrics.NewScrapeRegistry(); err != nil {
		return nil, fmt.Errorf("creating metrics registry: %w", err)
	}
	runMetrics, err := metrics.NewRunMetrics(s.registry)
	if err != nil {
		return nil, err
	}

	s.statuses = status.NewCollection(s.logger)
	s.store = history.NewMemoryStore(cfg.Server.HistorySize)

	runOpts := []runner.Option{
		runner.WithLogger(s.logger),
		runner.WithLoggingConfig(cfg.Logging),
		runner.WithObserver(s.statuses),
		runner.WithObserver(runMetrics),
		runner.WithVariantRecorder(runMetrics),
		runner.WithReverseOrder(cfg.Run.ReverseOrder),
		runner.WithLogCapture(cfg.Run.CaptureLogs),
	}
	if s.log != nil && s.ref != nil {
		runOpts = append(runOpts, runner.WithStreams(s.log, s.ref))
	}
	s.dispatcher = NewDispatcher(
		runner.New(runOpts...),
		catalog,
		history.NewRecorder(s.store),
		runMetrics,
		cfg.Run.Args,
		s.logger,
	)

	if err := s.buildSchedules(); err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	s.props = handlers.ServerProperties{
		Build:     buildinfo.Get(),
		StartedAt: time.Now(),
		Hostname:  hostname,
	}
	return s, nil
}

func (s *Server) buildSchedules() error {
	available := s.catalog.Available()
	specs, err := schedule.FromConfig(s.cfg.Server.Schedules, available)
	if err != nil {
		return err
	}
	if s.scheduleSpec != "" {
		extra, err := schedule.ParseSpecs(s.scheduleSpec, available)
		if err != nil {
			return err
		}
		specs = append(specs, extra...)
	}
	if len(specs) == 0 {
		return nil
	}

	s.schedules, err = schedule.NewManager(specs, s.dispatcher, s.logger)
	return err
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Dispatcher returns the dispatcher running test groups.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
// Configured schedules are started with the server.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	listener := s.cfg.Server.Listener
	if listener.CertFile != "" {
		loader, err := NewCertLoader(listener.CertFile, listener.KeyFile, s.logger)
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = &tls.Config{
			GetCertificate: loader.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}
	}

	if s.schedules != nil {
		s.logger.Info("starting schedules", "next_run", s.schedules.NextRun())
		s.schedules.Start(ctx)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"tls", s.httpServer.TLSConfig != nil,
			"test_groups", s.catalog.Names(),
		)
		var err error
		if s.httpServer.TLSConfig != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server", "running", s.dispatcher.Running())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	var scheduleProvider handlers.ScheduleProvider
	if s.schedules != nil {
		scheduleProvider = s.schedules
	}

	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /metrics", s.registry.Handler())
	mux.Handle("GET /groups", handlers.NewGroupsHandler(s.catalog))
	mux.Handle("GET /status", handlers.NewStatusHandler(s.dispatcher, s.statuses, scheduleProvider))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.store))
	mux.Handle("GET /history/{id}", handlers.NewRunDetailsHandler(s.store))
	mux.Handle("GET /info", handlers.NewInfoHandler(s.props))
	mux.Handle("POST /run", handlers.NewRunHandler(s.dispatcher))
}
