// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/stratum/internal/application"
	"github.com/jobrunner/stratum/internal/config"
)

// Server wraps the HTTP server with application handlers.
type Server struct {
	server    *http.Server
	router    *mux.Router
	search    *application.SearchService
	catalog   *application.CatalogService
	health    *application.HealthService
	refresher *application.Refresher
	logger    *slog.Logger
	config    config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg config.ServerConfig,
	search *application.SearchService,
	catalog *application.CatalogService,
	health *application.HealthService,
	refresher *application.Refresher,
	logger *slog.Logger,
) *Server {
	s := &Server{
		search:    search,
		catalog:   catalog,
		health:    health,
		refresher: refresher,
		logger:    logger,
		config:    cfg,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Add CORS middleware if configured
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// Catalog endpoints
	r.HandleFunc("/", s.handleLanding).Methods(http.MethodGet)
	r.HandleFunc("/conformance", s.handleConformance).Methods(http.MethodGet)
	r.HandleFunc("/queryables", s.handleQueryables).Methods(http.MethodGet)
	r.HandleFunc("/collections", s.handleListCollections).Methods(http.MethodGet)
	r.HandleFunc("/collections/{collectionId}", s.handleGetCollection).Methods(http.MethodGet)
	r.HandleFunc("/collections/{collectionId}/items", s.handleCollectionItems).Methods(http.MethodGet)
	r.HandleFunc("/collections/{collectionId}/items/{itemId}", s.handleGetItem).Methods(http.MethodGet)

	// Search endpoints
	r.HandleFunc("/search", s.handleSearchGet).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearchPost).Methods(http.MethodPost)

	// Admin endpoints
	r.HandleFunc("/admin/refresh-index", s.handleRefreshIndex).Methods(http.MethodPost)

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
