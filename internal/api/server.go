package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eshaffer321/invoice-match-backend/internal/api/handlers"
	"github.com/eshaffer321/invoice-match-backend/internal/api/middleware"
	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string

	// JWTSecret enables bearer-token auth on /api when non-empty.
	JWTSecret string

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	svc        *service.MatchService
}

// NewServer creates a new API server.
// If svc is nil, the match, extraction write and job endpoints are not available.
func NewServer(cfg Config, repo storage.Repository, svc *service.MatchService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: gin.New(),
		logger: logger,
		repo:   repo,
		svc:    svc,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.GET("/health", healthHandler.Get)

	if s.config.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))
	}

	r := s.router.Group("/api")
	if s.config.JWTSecret != "" {
		r.Use(middleware.Auth([]byte(s.config.JWTSecret)))
	}

	// Purchase orders
	poHandler := handlers.NewPurchaseOrdersHandler(s.repo)
	r.POST("/purchase-orders", poHandler.Create)
	r.GET("/purchase-orders/:id", poHandler.Get)

	// Link history
	linksHandler := handlers.NewLinksHandler(s.repo)
	r.GET("/links", linksHandler.List)

	statsHandler := handlers.NewStatsHandler(s.repo)
	r.GET("/stats", statsHandler.Get)

	runsHandler := handlers.NewRunsHandler(s.repo)
	r.GET("/runs", runsHandler.List)
	r.GET("/runs/:id", runsHandler.Get)

	reportsHandler := handlers.NewReportsHandler(s.repo)
	r.GET("/reports/links", reportsHandler.Links)

	// Extractions: reads only need storage
	var extractionSvc handlers.ExtractionService
	if s.svc != nil {
		extractionSvc = s.svc
	}
	extractionsHandler := handlers.NewExtractionsHandler(s.repo, extractionSvc)
	r.GET("/extractions", extractionsHandler.List)
	r.GET("/extractions/:id", extractionsHandler.Get)
	r.GET("/extractions/:id/link", extractionsHandler.GetLink)

	if s.svc != nil {
		r.POST("/extractions", extractionsHandler.Create)
		r.POST("/extractions/:id/match", extractionsHandler.Match)

		matchHandler := handlers.NewMatchHandler(s.svc)
		r.POST("/match", matchHandler.Search)

		// Batch jobs (async)
		jobsHandler := handlers.NewJobsHandler(s.svc)
		r.POST("/jobs", jobsHandler.Start)
		r.GET("/jobs", jobsHandler.List)
		r.GET("/jobs/active", jobsHandler.ListActive)
		r.GET("/jobs/:id", jobsHandler.Get)
		r.DELETE("/jobs/:id", jobsHandler.Cancel)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr, "auth", s.config.JWTSecret != "")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
