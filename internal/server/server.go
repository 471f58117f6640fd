// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Server is the HTTP server for the kotae API.
type Server struct {
	sessions *session.Manager
	store    storage.Store
	embedder *embedding.Service
	config   *config.Config
	logger   *zap.Logger
	validate *validator.Validate
	server   *http.Server

	faissAvailable bool
}

// NewServer creates a server with the given dependencies.
func NewServer(
	sessions *session.Manager,
	store storage.Store,
	embedder *embedding.Service,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions: sessions,
		store:    store,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),

		faissAvailable: vector.IsFAISSAvailable(),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", s.handleListDatasets)
			r.Post("/", s.handleCreateDataset)
			r.Get("/{id}", s.handleGetDataset)
			r.Delete("/{id}", s.handleDeleteDataset)
			r.Post("/{id}/retrieve", s.handleRetrieve)
			r.Post("/{id}/ask", s.handleAsk)
		})
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestTimeout leaves room for a full LLM call including retries.
func (s *Server) requestTimeout() time.Duration {
	timeout := 60 * time.Second
	if s.config != nil && s.config.LLM.Timeout > 0 {
		timeout = s.config.LLM.Timeout * time.Duration(s.config.LLM.Retries()+1)
	}
	return timeout
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
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
