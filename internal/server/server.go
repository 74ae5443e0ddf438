// Package server provides the HTTP API for osusume.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/catalog"
	"github.com/osusume-io/osusume/internal/config"
	"github.com/osusume-io/osusume/internal/indexer"
	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/recommend"
	"github.com/osusume-io/osusume/internal/search"
	"github.com/osusume-io/osusume/internal/vector"
)

// Server is the HTTP server for the osusume API.
type Server struct {
	searches  *search.Service
	recs      *recommend.Service
	builder   *indexer.Builder
	behaviors *behavior.Store
	catalog   *catalog.Store
	registry  *partition.Registry
	global    *vector.Handle
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	searches *search.Service,
	recs *recommend.Service,
	builder *indexer.Builder,
	behaviors *behavior.Store,
	cat *catalog.Store,
	registry *partition.Registry,
	global *vector.Handle,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		searches:  searches,
		recs:      recs,
		builder:   builder,
		behaviors: behaviors,
		catalog:   cat,
		registry:  registry,
		global:    global,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search/text", s.handleTextSearch)
	r.Post("/api/v1/search/image", s.handleImageSearch)
	r.Get("/api/v1/recommendations/{userID}", s.handleRecommendations)
	r.Post("/api/v1/clicks/search", s.handleSearchClick)
	r.Post("/api/v1/clicks/recommendation", s.handleRecommendationClick)
	r.Get("/api/v1/users/{userID}/history", s.handleHistory)
	r.Delete("/api/v1/users/{userID}/history", s.handleDeleteHistory)
	r.Post("/api/v1/admin/rebuild", s.handleRebuild)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
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
