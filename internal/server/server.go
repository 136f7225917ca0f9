// Package server is the Papercast HTTP server. It owns the listener
// lifecycle and, when configured, the managed Qdrant container.
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

	"github.com/papercast-ai/papercast/internal/app"
	"github.com/papercast-ai/papercast/internal/config"
	"github.com/papercast-ai/papercast/internal/svcctx"
)

// Server is the main Papercast HTTP server.
type Server struct {
	httpServer *http.Server
	app        *app.App
	cfgMgr     *config.Manager
	logger     *slog.Logger

	mu      sync.RWMutex
	running bool
}

// New builds the service graph and the HTTP server around it.
func New(cfgMgr *config.Manager, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a, err := app.Build(cfgMgr, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:    a,
		cfgMgr: cfgMgr,
		logger: logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	cfg := cfgMgr.Get()
	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: withServices(a.Services, mux),
	}
	return s, nil
}

// withServices enriches every request context with the service graph.
func withServices(services *svcctx.Services, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})
}

// Start runs the server until the context is cancelled. When a managed
// Qdrant container is configured it is started first and stopped on the way
// out.
func (s *Server) Start(ctx context.Context) error {
	if s.app.Qdrant != nil {
		s.logger.Info("starting managed qdrant container")
		if err := s.app.Qdrant.Start(ctx); err != nil {
			return fmt.Errorf("starting qdrant: %w", err)
		}
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown error", "error", err)
	}

	// Let in-flight jobs settle before tearing down backends.
	s.app.Services.Orchestrator.Wait()

	if s.app.Qdrant != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.app.Qdrant.Stop(stopCtx); err != nil {
			s.logger.Warn("qdrant stop error", "error", err)
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return s.app.Close()
}

// Running reports whether the server is accepting requests.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
