// Package server provides the HTTP API for shohin.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/metrics"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/storage"
	"go.uber.org/zap"
)

// Searcher answers keyword queries over stored products.
type Searcher interface {
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
	IndexSize() uint64
}

// Scraper runs one URL through the pipeline.
type Scraper interface {
	RunOne(ctx context.Context, rawURL string) models.Outcome
}

// Server is the HTTP server for the shohin API.
type Server struct {
	store   storage.Store
	engine  Searcher
	scraper Scraper
	metrics *metrics.Metrics
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithScraper enables POST /api/v1/scrape.
func WithScraper(s Scraper) Option {
	return func(srv *Server) { srv.scraper = s }
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// NewServer creates a server with the given dependencies.
func NewServer(store storage.Store, engine Searcher, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		store:  store,
		engine: engine,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))
		r.Get("/health", s.handleHealth)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/products", s.handleListProducts)
		r.Get("/api/v1/products/{id}", s.handleGetProduct)
		r.Post("/api/v1/search", s.handleSearch)
	})
	// Scraping waits on the reader and the model; the reader client has its own timeout.
	r.Post("/api/v1/scrape", s.handleScrape)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
