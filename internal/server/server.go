// Package server exposes the audit engine over a small JSON API for the
// admin UI: background refresh triggering and polling, chunked interactive
// audits, remediation, and dashboard aggregates.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"shelfaudit/internal/audit"
	"shelfaudit/internal/config"
	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
	"shelfaudit/internal/memocache"
	"shelfaudit/internal/sweep"
	"shelfaudit/internal/task"
)

// Server wires the audit components behind HTTP handlers.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	lib    *library.Store
	health *healthdb.Store
	policy *audit.Policy
	runner *task.Runner

	statusCache *memocache.Cache[statusPayload]

	mu       sync.Mutex
	refresh  *task.Handle
	sessions map[string]*sweep.Session

	listener net.Listener
	server   *http.Server
}

// New builds a server over the given stores and task runner.
func New(cfg *config.Config, logger *slog.Logger, lib *library.Store, health *healthdb.Store, policy *audit.Policy, runner *task.Runner) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "api-server"),
		lib:         lib,
		health:      health,
		policy:      policy,
		runner:      runner,
		statusCache: memocache.New[statusPayload](time.Duration(cfg.Workflow.ResultCacheTTL)*time.Second, 4, nil),
		sessions:    make(map[string]*sweep.Session),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/refresh/status", s.handleRefreshStatus)
	mux.HandleFunc("/api/audit", s.handleAuditStart)
	mux.HandleFunc("/api/audit/process", s.handleAuditProcess)
	mux.HandleFunc("/api/fix", s.handleFix)
	mux.HandleFunc("/api/unhealthy", s.handleUnhealthy)
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address and shuts down when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
