// Package api exposes the simulation core over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"speedquant/internal/config"
	"speedquant/internal/logging"
	"speedquant/internal/middleware"
	"speedquant/internal/monitoring"
)

// Server is the HTTP boundary: backtest and optimization endpoints plus
// health and metrics.
type Server struct {
	config  *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics
	router  *gin.Engine
	http    *http.Server
}

// NewServer creates the API server with its full middleware chain.
func NewServer(cfg *config.Config, log *logging.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		log:     log.WithComponent("api"),
		metrics: monitoring.NewMetrics(),
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	router := gin.New()
	router.Use(middleware.Recovery(s.log))
	router.Use(s.metrics.Middleware())
	router.Use(middleware.RateLimit(s.config.RateLimit))
	router.Use(middleware.ErrorHandler(s.log))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/backtest/run", s.handleBacktestRun)
		v1.POST("/optimizer/run", s.handleOptimizerRun)
	}

	s.router = router
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.log.WithField("addr", addr).Info("starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.log.Info("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}
