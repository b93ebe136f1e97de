// Package api serves the engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/logging"
	"github.com/codex-k8s/localaictl/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server exposes engine operations as JSON endpoints.
type Server struct {
	engine  *engine.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
	router  *gin.Engine
}

// NewServer builds the router. m may be nil, in which case /metrics returns 404.
func NewServer(e *engine.Engine, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{engine: e, metrics: m, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.routes(router)
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.GET("/config", s.getConfig)
	api.POST("/services/enable-all", s.bulk("", true))
	api.POST("/services/disable-all", s.bulk("", false))
	api.POST("/services/:id/enable", s.toggle(true))
	api.POST("/services/:id/disable", s.toggle(false))
	api.POST("/categories/:category/enable", s.bulkCategory(true))
	api.POST("/categories/:category/disable", s.bulkCategory(false))
	api.PUT("/profile", s.selectProfile)
	api.PUT("/environment", s.selectEnvironment)
	api.GET("/effective", s.effective)
	api.POST("/apply", s.apply)
	api.POST("/stop", s.stop)
	api.GET("/status", s.status)
	api.GET("/containers", s.containers)
	api.GET("/containers/:id/stats", s.containerStats)
	api.GET("/containers/:id/logs", s.containerLogs)
	api.POST("/containers/:id/actions/:action", s.containerAction)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
