package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
)

// statusBody is returned for every request on the relay port that is not a
// WebSocket upgrade.
const statusBody = "WebSocket server is running.\n"

// Server is the public relay listener.
type Server struct {
	echo             *echo.Echo
	port             string
	websocketHandler http.Handler
	httpMetrics      *metrics.HTTPMetrics
}

func NewServer(port string, websocketHandler http.Handler, httpMetrics *metrics.HTTPMetrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		port:             port,
		websocketHandler: websocketHandler,
		httpMetrics:      httpMetrics,
	}
	srv.registerRoutes()
	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting relay server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
