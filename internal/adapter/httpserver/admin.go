package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// AdminServer serves metrics, probes and build info on a port of its own.
type AdminServer struct {
	echo         *echo.Echo
	port         string
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewAdminServer(port string, gatherer prometheus.Gatherer, healthChecks []HealthCheck, clock clockwork.Clock) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &AdminServer{
		echo:         e,
		port:         port,
		healthChecks: healthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	e.Use(requestLoggerMiddleware())
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	e.GET("/health/startup", srv.handleStartup)
	e.GET("/health/live", srv.handleLiveness)
	e.GET("/health/ready", srv.handleReadiness)
	e.GET("/version", srv.handleVersion)

	return srv
}

func (s *AdminServer) Handler() http.Handler {
	return s.echo
}

func (s *AdminServer) Start() error {
	slog.Info("Starting admin server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}
	return nil
}

func (s *AdminServer) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

func (s *AdminServer) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": "ok",
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *AdminServer) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

func (s *AdminServer) runHealthChecks(c echo.Context, ctx context.Context) error {
	for _, hc := range s.healthChecks {
		err := hc.Check(ctx)
		if err == nil {
			continue
		}

		slog.Warn("Health check failed", "check", hc.Name, "error", err)
		response := map[string]any{
			"status":       "unhealthy",
			"failed_check": hc.Name,
			"error":        err.Error(),
		}
		if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "ready"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *AdminServer) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
