// Package api exposes the gateway over HTTP: the query trigger endpoint, the
// per-destination delivery stream, the monitor event stream, and the settings
// surface. It also owns the SSE-backed delivery sink the dispatch coordinator
// pushes results into.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/snipq/snipq/internal/auth"
	"github.com/snipq/snipq/internal/events"
	"github.com/snipq/snipq/internal/history"
	"github.com/snipq/snipq/internal/settings"
)

// Dispatcher accepts one trigger into the dispatch engine.
type Dispatcher interface {
	Dispatch(queryText, destination string) error
}

// Config holds API server configuration.
type Config struct {
	Listen string

	// APIKey, when set, is a single bearer credential with full access.
	APIKey string

	// Tokens are scoped bearer credentials. With neither APIKey nor Tokens
	// set the API serves unauthenticated.
	Tokens []auth.TokenConfig
}

// Server is the HTTP front of the gateway.
type Server struct {
	config   Config
	dispatch Dispatcher
	sink     *DestinationHub
	settings *settings.Store
	history  *history.Log
	events   *events.Hub
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new API server instance. The returned server's Sink is what
// the dispatch coordinator should deliver into.
func New(config Config, dispatch Dispatcher, sink *DestinationHub, st *settings.Store, hist *history.Log, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:   config,
		dispatch: dispatch,
		sink:     sink,
		settings: st,
		history:  hist,
		events:   hub,
		logger:   logger,
	}
}

// Handler returns the gateway's HTTP handler, routed and wrapped in
// middleware. Start serves it; tests can mount it directly.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.Handler()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("API server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes(auth.ScopeDispatchRW)).Post("/query", s.handleQuery)
		r.With(s.requireScopes(auth.ScopeDispatchRO)).Get("/stream/{destination}", s.handleStream)
		r.With(s.requireScopes(auth.ScopeDispatchRO)).Get("/events", s.handleEvents)
		r.With(s.requireScopes(auth.ScopeDispatchRO)).Get("/history", s.handleHistory)

		r.Route("/settings", func(r chi.Router) {
			r.With(s.requireScopes(auth.ScopeSettingsRO)).Get("/providers", s.handleGetProviders)
			r.With(s.requireScopes(auth.ScopeSettingsRW)).Put("/providers/{provider}", s.handlePutProvider)
			r.With(s.requireScopes(auth.ScopeSettingsRO)).Get("/active", s.handleGetActive)
			r.With(s.requireScopes(auth.ScopeSettingsRW)).Put("/active", s.handlePutActive)
		})
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
