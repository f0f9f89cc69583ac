// Package api serves the imported entities, the gene search index and the
// import history over a read-only JSON API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/nishad/ptmdb/internal/cache"
	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/progress"
	"github.com/nishad/ptmdb/internal/search"
)

// Server represents the HTTP API server
type Server struct {
	router  *mux.Router
	server  *http.Server
	db      *database.DB
	index   *search.Index
	tracker *progress.Tracker
	limit   int
	results *cache.Cache[[]search.GeneMatch]
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	EnableCORS   bool
	DefaultLimit int // search results when the request sets none
	CacheSize    int // cached search responses, 0 for the default
	CacheTTL     time.Duration
}

const (
	defaultCacheSize = 1000
	defaultCacheTTL  = 5 * time.Minute
)

// NewServer creates a new API server over an open database. index may be
// nil when search is disabled; the search endpoint then answers 503.
func NewServer(cfg Config, db *database.DB, index *search.Index) (*Server, error) {
	tracker, err := progress.NewTracker(db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open import history: %w", err)
	}

	s := &Server{
		router:  mux.NewRouter(),
		db:      db,
		index:   index,
		tracker: tracker,
		limit:   cfg.DefaultLimit,
	}
	if s.limit <= 0 {
		s.limit = 20
	}
	if index != nil {
		size, ttl := cfg.CacheSize, cfg.CacheTTL
		if size <= 0 {
			size = defaultCacheSize
		}
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		s.results = cache.New[[]search.GeneMatch](size, ttl)
	}

	s.setupRoutes()

	if cfg.EnableCORS {
		s.router.Use(corsMiddleware)
	}
	s.router.Use(loggingMiddleware)
	s.router.Use(jsonMiddleware)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/genes/{name}", s.handleGetGene).Methods("GET")
	api.HandleFunc("/proteins/{refseq}", s.handleGetProtein).Methods("GET")
	api.HandleFunc("/search", s.handleSearch).Methods("GET")
	api.HandleFunc("/imports", s.handleListImports).Methods("GET")
	api.HandleFunc("/imports/{id}", s.handleGetImport).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The database and the index
// stay open; they belong to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down API server")
	if s.results != nil {
		s.results.Close()
	}
	return s.server.Shutdown(ctx)
}

// Middleware functions

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request", "method", r.Method, "uri", r.RequestURI, "took", time.Since(start))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("encoding JSON response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"status":  status,
	})
}

// writeFailure answers with the status matching the kind of err.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetKind(err) {
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindValidation:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
	}
	s.writeError(w, status, err.Error())
}

// handleRoot returns API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "ptmdb API",
		"version":     "1.0.0",
		"description": "Genes, proteins and PTM sites imported by ptmdb",
		"endpoints": map[string]string{
			"genes":    "/api/v1/genes/{name}",
			"proteins": "/api/v1/proteins/{refseq}",
			"search":   "/api/v1/search?q=",
			"imports":  "/api/v1/imports",
			"stats":    "/api/v1/stats",
			"health":   "/api/v1/health",
		},
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"search":    s.index != nil,
	}

	status := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		health["status"] = "unhealthy"
		health["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, health)
}
