package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Realtime gateways. Auth happens inside the handlers: the WebSocket
	// must close with its own code on failure, and the stream accepts the
	// token from either the header or the query string.
	s.echo.GET("/ws/events", s.handleWebSocket)
	s.echo.GET("/stream/events", s.handleStream)

	// Operational event log listing (staff only)
	s.echo.GET("/api/events", s.handleListEvents, s.requireAuth, s.requireStaff)
}
