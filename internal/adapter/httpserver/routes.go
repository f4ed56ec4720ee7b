package httpserver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(requestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}

	s.echo.Any("/", s.handleRoot)
	s.echo.Any("/*", s.handleRoot)
}

// handleRoot upgrades WebSocket requests and answers everything else with the
// fixed status body, whatever the method or path.
func (s *Server) handleRoot(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		s.websocketHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	}
	return c.String(http.StatusOK, statusBody)
}
