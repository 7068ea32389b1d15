// Package server provides the HTTP API for medrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/medrag/internal/collection"
	"github.com/hyperjump/medrag/internal/config"
	"github.com/hyperjump/medrag/internal/retriever"
	"go.uber.org/zap"
)

// Server is the HTTP server for retrieval and collection administration.
// A nil retriever means retrieval is disabled: queries return no context.
type Server struct {
	retriever  *retriever.Retriever
	manager    *collection.Manager
	collection string
	config     *config.ServerConfig
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ret *retriever.Retriever,
	mgr *collection.Manager,
	collectionName string,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		retriever:  ret,
		manager:    mgr,
		collection: collectionName,
		config:     cfg,
		logger:     logger,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/format", s.handleFormat)
		r.Get("/collection", s.handleStats)
		r.Post("/collection/reset", s.handleReset)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("retrieval_enabled", s.retriever != nil))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
