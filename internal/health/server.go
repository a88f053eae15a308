// Package health serves the liveness and readiness endpoints next to the
// worker loop.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	serviceName    = "snp-bioinfo-service"
	serviceVersion = "1.0.0"
)

// Readiness reports whether the required configuration values are present.
// The checks are configuration presence only; this surface never dials the
// upstreams itself.
type Readiness struct {
	RedisConfigured    bool
	DatabaseConfigured bool
	NCBIConfigured     bool
}

func (r Readiness) ready() bool {
	return r.RedisConfigured && r.DatabaseConfigured && r.NCBIConfigured
}

// Server exposes the health surface on its own listener.
type Server struct {
	echo      *echo.Echo
	port      string
	readiness Readiness
	logger    *slog.Logger
}

// NewServer builds the echo instance with its routes registered.
func NewServer(port string, readiness Readiness, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, port: port, readiness: readiness, logger: logger}
	e.GET("/", s.root)
	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("health server listening", "port", s.port)
		if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": serviceName,
		"status":  "running",
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
		"version":   serviceVersion,
	})
}

func (s *Server) ready(c echo.Context) error {
	status := "ready"
	if !s.readiness.ready() {
		status = "not_ready"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":              status,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"redis_configured":    s.readiness.RedisConfigured,
		"database_configured": s.readiness.DatabaseConfigured,
		"ncbi_configured":     s.readiness.NCBIConfigured,
	})
}
