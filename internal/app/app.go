// Package app wires configuration, logging, the match coordinator and the
// HTTP surface into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"arena-duel/server/internal/config"
	"arena-duel/server/internal/moves"
	servernet "arena-duel/server/internal/net"
	"arena-duel/server/internal/session"
	"arena-duel/server/internal/telemetry"
	"arena-duel/server/logging"
	logcombat "arena-duel/server/logging/combat"
	loggingSinks "arena-duel/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	// Logger overrides the zap-backed process logger.
	Logger telemetry.Logger
	Env    config.Config
	// Listener replaces Env.Addr, mainly for tests.
	Listener net.Listener
	// Observer receives every event next to the router.
	Observer logging.Publisher
}

// Server is the assembled process.
type Server struct {
	logger   telemetry.Logger
	zap      *zap.Logger
	router   *logging.Router
	coord    *session.Coordinator
	counters *telemetry.Counters
	metrics  *logging.Metrics
	handler  http.Handler
	http     *http.Server
	listener net.Listener
	closers  []func() error
}

func New(cfg Config) (*Server, error) {
	env := cfg.Env
	s := &Server{counters: telemetry.NewCounters(), metrics: &logging.Metrics{}, listener: cfg.Listener}

	zapLogger, err := newZap(env.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("failed to construct zap logger: %w", err)
	}
	s.zap = zapLogger
	s.logger = cfg.Logger
	if s.logger == nil {
		s.logger = telemetry.WrapZap(zapLogger)
	}
	fallbackLogger := zap.NewStdLog(zapLogger)

	logConfig := logging.DefaultConfig()
	logConfig.Fields = map[string]any{"service": "arena-duel"}
	named := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout)},
		{Name: "zap", Sink: loggingSinks.NewZap(zapLogger)},
	}
	if env.LogJSONPath != "" {
		file, err := os.OpenFile(env.LogJSONPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to open json log %s: %w", env.LogJSONPath, err)
		}
		s.closers = append(s.closers, file.Close)
		named = append(named, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logConfig.JSONFlushEvery)})
	}
	if env.TelemetryURL != "" {
		httpCfg := logConfig.HTTP
		httpCfg.URL = env.TelemetryURL
		named = append(named, logging.NamedSink{
			Name: "http",
			Sink: loggingSinks.Only(loggingSinks.NewHTTPBatch(httpCfg, fallbackLogger), logcombat.EventHit),
		})
	}
	if env.TelemetrySQLite != "" {
		sqlite, err := loggingSinks.NewSQLite(env.TelemetrySQLite)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to open sqlite telemetry %s: %w", env.TelemetrySQLite, err)
		}
		named = append(named, logging.NamedSink{Name: "sqlite", Sink: sqlite})
	}
	s.router = logging.NewRouter(logging.SystemClock{}, logConfig, named)
	publisher := logging.Fanout(s.router, cfg.Observer)

	lib := moves.Default()
	if env.MovesFile != "" {
		lib, err = moves.LoadFile(env.MovesFile)
		if err != nil {
			_ = s.router.Close(context.Background())
			s.cleanup()
			return nil, fmt.Errorf("failed to load move library: %w", err)
		}
		s.logger.Printf("loaded %d moves from %s", lib.Len(), env.MovesFile)
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.Engine.StepMs = env.StepMs()
	sessionCfg.HeartbeatInterval = env.HeartbeatInterval
	sessionCfg.HeartbeatTimeout = env.HeartbeatTimeout
	sessionCfg.MaxMissedPings = env.MaxMissedPings
	sessionCfg.InputLeadFrames = env.InputLeadFrames
	sessionCfg.StallTimeout = env.StallTimeout
	sessionCfg.Logger = s.logger
	sessionCfg.Metrics = s.metrics
	sessionCfg.Publisher = publisher
	sessionCfg.Counters = s.counters
	s.coord = session.NewCoordinator(sessionCfg, lib)

	s.handler = servernet.NewHTTPHandler(s.coord, lib, servernet.HTTPHandlerConfig{
		Logger:      s.logger,
		Publisher:   publisher,
		Counters:    s.counters,
		Router:      s.router,
		Metrics:     s.metrics,
		TickRate:    env.TickRate,
		Heartbeat:   env.HeartbeatInterval,
		EnablePprof: env.EnablePprof,
	})
	s.http = &http.Server{Addr: env.Addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

func newZap(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Coordinator() *session.Coordinator { return s.coord }

// Serve blocks until ctx is cancelled or the listener fails, then shuts
// everything down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Printf("server listening on %s", s.listener.Addr())
			err = s.http.Serve(s.listener)
		} else {
			s.logger.Printf("server listening on %s", s.http.Addr)
			err = s.http.ListenAndServe()
		}
		errCh <- err
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}
	if err := s.Close(); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Close stops the HTTP server, every match and the logging router.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.coord.Close()
	if err := s.router.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close logging router: %w", err))
	}
	s.cleanup()
	return errors.Join(errs...)
}

func (s *Server) cleanup() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			log.Printf("cleanup: %v", err)
		}
	}
	s.closers = nil
	if s.zap != nil {
		_ = s.zap.Sync()
	}
}

// Run builds a server from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}
