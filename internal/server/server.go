package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/app"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/auth"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/broadcast"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/config"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	apperrors "github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/errors"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Deps carries the collaborators the HTTP layer needs.
type Deps struct {
	Store    domain.EventStore
	Registry *broadcast.Registry
	Replay   *app.ReplayEngine
	Tokens   *auth.Manager
	Clock    clockwork.Clock

	PostgresHealth HealthCheck
	// RedisHealth is nil when no relay is configured; readiness then skips it.
	RedisHealth HealthCheck
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	store     domain.EventStore
	registry  *broadcast.Registry
	replay    *app.ReplayEngine
	tokens    *auth.Manager
	clock     clockwork.Clock
	checks    []namedCheck
	startTime time.Time
}

type namedCheck struct {
	name string
	fn   HealthCheck
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		store:     deps.Store,
		registry:  deps.Registry,
		replay:    deps.Replay,
		tokens:    deps.Tokens,
		clock:     deps.Clock,
		startTime: deps.Clock.Now(),
	}

	if deps.PostgresHealth != nil {
		srv.checks = append(srv.checks, namedCheck{"postgres", deps.PostgresHealth})
	}
	if deps.RedisHealth != nil {
		srv.checks = append(srv.checks, namedCheck{"redis", deps.RedisHealth})
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
