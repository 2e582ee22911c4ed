// Package server provides the HTTP API for ZANTARA retrieval.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/zantara/internal/config"
	"github.com/hyperjump/zantara/internal/indexer"
	"github.com/hyperjump/zantara/internal/retrieval"
	"github.com/hyperjump/zantara/internal/storage"
	"github.com/hyperjump/zantara/internal/vector"
	"go.uber.org/zap"
)

// Server is the HTTP server for the retrieval API.
type Server struct {
	orchestrator *retrieval.Orchestrator
	indexer      *indexer.Indexer // nil disables ingestion endpoints
	storage      storage.Storage  // nil disables document listing
	vectors      vector.Store
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. idx, store and vectors may be nil.
func NewServer(
	orch *retrieval.Orchestrator,
	idx *indexer.Indexer,
	store storage.Storage,
	vectors vector.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		orchestrator: orch,
		indexer:      idx,
		storage:      store,
		vectors:      vectors,
		config:       cfg,
		logger:       logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	timeout := 60 * time.Second
	if s.config != nil && s.config.Server.RequestTimeout > 0 {
		timeout = s.config.Server.RequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/search", s.handleSearch)
		r.Post("/route", s.handleRoute)
		r.Get("/status", s.handleStatus)
		r.Get("/collections", s.handleCollections)
		r.Route("/collections/{collection}/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleIngestDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})
	})
	return r
}

// requestLogger logs one debug line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
