// Package server exposes the orchestration and correlation engine over
// HTTP, plus a websocket stream for live session progress.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/agent"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/graph"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

// Server wires the engine's components behind the REST surface.
type Server struct {
	orch     orchestrator.Orchestrator
	registry *agent.Registry
	builder  *graph.Builder
	metrics  *metrics.Collector
	logger   *slog.Logger

	http *http.Server
}

// New builds the server and its route table.
func New(addr string, orch orchestrator.Orchestrator, registry *agent.Registry, builder *graph.Builder, mc *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orch:     orch,
		registry: registry,
		builder:  builder,
		metrics:  mc,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orchestrate", s.handleOrchestrate)
	mux.HandleFunc("GET /api/orchestrations", s.handleListSessions)
	mux.HandleFunc("GET /api/orchestration/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/orchestration/{id}", s.handleCancelSession)
	mux.HandleFunc("GET /api/orchestration/{id}/stream", s.handleStreamSession)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("POST /api/agents/{id}/execute", s.handleExecuteAgent)
	mux.HandleFunc("GET /api/graph/forensic", s.handleGraph)
	mux.HandleFunc("GET /api/graph/search", s.handleSearch)
	mux.HandleFunc("GET /api/graph/path/{a}/{b}", s.handlePath)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
