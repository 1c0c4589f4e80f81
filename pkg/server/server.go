// Package server exposes the classifier over HTTP with gin.
//
// Routes:
//
//	POST /predict        multipart: audio (required), latitude, longitude, device_id
//	GET  /heatmap        ?range=24h|90m|7d
//	GET  /audio/:id      archived upload of a prediction
//	GET  /health
//	GET  /model          bundle summary
//	GET  /metrics        Prometheus exposition
//
// Failures are answered with {"error": {"kind", "message"}} and a status
// derived from the error kind.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/haivivi/noisemap/pkg/api"
	"github.com/haivivi/noisemap/pkg/metrics"
)

// DefaultMaxUploadBytes bounds a request body when Options leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

// Options configures the server.
type Options struct {
	Predictor *api.Predictor
	Metrics   *metrics.Metrics

	MaxUploadBytes int64
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins  []string
	HeatmapLimit int
	Debug        bool
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	engine *gin.Engine
}

// New builds the gin engine and registers every route.
func New(opts Options) (*Server, error) {
	if opts.Predictor == nil || opts.Predictor.Service == nil {
		return nil, fmt.Errorf("server: predictor with a service is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Metrics == nil {
		opts.Metrics = opts.Predictor.Metrics
	}
	if opts.Predictor.Metrics == nil {
		opts.Predictor.Metrics = opts.Metrics
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware())
	engine.Use(metricsMiddleware(opts.Metrics))
	engine.Use(cors.New(corsConfig(opts.CORSOrigins)))

	s := &Server{opts: opts, engine: engine}
	engine.POST("/predict", s.handlePredict)
	engine.GET("/heatmap", s.handleHeatmap)
	engine.GET("/audio/:id", s.handleAudio)
	engine.GET("/health", s.handleHealth)
	engine.GET("/model", s.handleModel)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: api.ErrorBody{Kind: "not_found", Message: "no such route"}})
	})

	b := opts.Predictor.Service.Bundle()
	opts.Metrics.SetBundle(b.Fingerprint, b.FormatVersion, len(b.Labels))
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is done, then shuts down within
// grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
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

	slog.Info("http server shutting down", "grace", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Device-Id"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			slog.Error("http request", attrs...)
			return
		}
		slog.Debug("http request", attrs...)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Writer.Status())
	}
}

func respondError(c *gin.Context, err error) {
	status := api.StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.NewErrorResponse(err))
}

func (s *Server) audioURL(id string) string {
	return path.Join("/audio", id)
}
