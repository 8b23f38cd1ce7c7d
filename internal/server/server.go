// Package server serves report analysis and stored sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/session"
)

// DefaultMaxUploadBytes caps a multipart upload.
const DefaultMaxUploadBytes = 64 << 20

// Options configures the HTTP API.
type Options struct {
	Report         report.Config
	Store          session.Store // nil disables the session routes and save=true
	MaxUploadBytes int64
	AllowOrigins   []string
	AccessLog      io.Writer // nil disables request logging
	Progress       *output.Progress
}

// Server is the HTTP API.
type Server struct {
	router   *gin.Engine
	opts     Options
	progress *output.Progress
}

// New builds the router. The gin mode must be set by the caller.
func New(opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.AccessLog != nil {
		router.Use(gin.LoggerWithWriter(opts.AccessLog))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	s := &Server{router: router, opts: opts, progress: opts.Progress}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "bwlens",
		})
	})

	api := s.router.Group("/api")
	api.POST("/analyze", s.handleAnalyze)

	if s.opts.Store != nil {
		api.GET("/sessions", s.handleListSessions)
		api.DELETE("/sessions", s.handleClearSessions)
		api.GET("/sessions/:id", s.handleGetSession)
		api.GET("/sessions/:id/metrics", s.handleSessionMetrics)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.progress.Log("Starting HTTP API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		s.progress.Log("Shutting down HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
