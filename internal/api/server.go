// Package api exposes scan control, catalog lookup and the janitor over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/catalogd/internal/auth"
	"github.com/mattjoyce/catalogd/internal/catalog"
	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/janitor"
	"github.com/mattjoyce/catalogd/internal/scan"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks github.com/mattjoyce/catalogd/internal/api ScanService,JanitorService,CatalogReader

// ScanService starts and tracks catalog scans.
type ScanService interface {
	Start(ctx context.Context, cfg scan.Config) (string, error)
	Status(ctx context.Context, id string) (*scan.Job, error)
	Stop(id string) bool
	List(ctx context.Context, limit int) ([]*scan.Job, error)
	LiveCount() int
}

// JanitorService analyzes directories and executes cleanups.
type JanitorService interface {
	Policies() []janitor.Policy
	Analyze(ctx context.Context, path string) (*janitor.Analysis, error)
	Suggest(ctx context.Context, path string, policies []string) (*janitor.SuggestResult, error)
	Execute(ctx context.Context, files []string, dryRun bool) *janitor.ExecuteResult
}

// CatalogReader looks up cataloged files.
type CatalogReader interface {
	Get(ctx context.Context, path string) (*catalog.Record, error)
	Count(ctx context.Context) (int64, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single admin bearer token.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// Scanner fills fields omitted from scan start requests.
	Scanner config.ScannerConfig
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	scans     ScanService
	janitor   JanitorService
	catalog   CatalogReader
	events    *events.Hub
	authz     *auth.Authorizer
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(cfg Config, scans ScanService, jan JanitorService, cat CatalogReader, hub *events.Hub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = events.NewHub(256)
	}
	return &Server{
		config:    cfg,
		scans:     scans,
		janitor:   jan,
		catalog:   cat,
		events:    hub,
		authz:     auth.NewAuthorizer(cfg.APIKey, cfg.Tokens),
		logger:    logger.With("component", "api"),
		startedAt: time.Now(),
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// Analyze and suggest walk whole trees before answering.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes(auth.ScopeScansWrite)).Post("/scans", s.handleStartScan)
		r.With(s.requireScopes(auth.ScopeScansRead)).Get("/scans", s.handleListScans)
		r.With(s.requireScopes(auth.ScopeScansRead)).Get("/scans/{scanID}", s.handleGetScan)
		r.With(s.requireScopes(auth.ScopeScansWrite)).Post("/scans/{scanID}/stop", s.handleStopScan)
		r.With(s.requireScopes(auth.ScopeScansRead)).Get("/catalog", s.handleGetCatalogRecord)

		r.With(s.requireScopes(auth.ScopeJanitorRead)).Get("/janitor/policies", s.handleListPolicies)
		r.With(s.requireScopes(auth.ScopeJanitorRead)).Post("/janitor/analyze", s.handleAnalyze)
		r.With(s.requireScopes(auth.ScopeJanitorRead)).Post("/janitor/suggest", s.handleSuggest)
		r.With(s.requireScopes(auth.ScopeJanitorWrite)).Post("/janitor/execute", s.handleExecute)

		r.With(s.requireScopes(auth.ScopeEventsRead)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
