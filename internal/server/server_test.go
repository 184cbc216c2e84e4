package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/app"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/auth"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/broadcast"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/config"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/eventlog"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	srv      *Server
	store    *eventlog.InMemoryStore
	registry *broadcast.Registry
	tokens   *auth.Manager
	http     *httptest.Server
}

type testServerOption func(*Deps)

func withHealthChecks(pg, redis HealthCheck) testServerOption {
	return func(d *Deps) {
		d.PostgresHealth = pg
		d.RedisHealth = redis
	}
}

func newTestServer(t *testing.T, opts ...testServerOption) *testServer {
	t.Helper()

	clock := clockwork.NewRealClock()
	store := eventlog.NewInMemoryStore(clock)
	registry := broadcast.NewRegistry(clock)
	t.Cleanup(registry.Stop)

	tokens := auth.NewManager(testSecret, clock)

	deps := Deps{
		Store:          store,
		Registry:       registry,
		Replay:         app.NewReplayEngine(store),
		Tokens:         tokens,
		Clock:          clock,
		PostgresHealth: func(context.Context) error { return nil },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	cfg := &config.Config{AppEnv: "test", Port: "0"}
	srv := NewServer(cfg, deps)

	httpServer := httptest.NewServer(srv.echo)
	t.Cleanup(httpServer.Close)

	return &testServer{
		srv:      srv,
		store:    store,
		registry: registry,
		tokens:   tokens,
		http:     httpServer,
	}
}

func (ts *testServer) mint(t *testing.T, identity domain.Identity) string {
	t.Helper()
	token, err := ts.tokens.Mint(identity)
	require.NoError(t, err)
	return token
}

func (ts *testServer) seed(t *testing.T, typ domain.EventType, subject *int64, payload string) domain.Event {
	t.Helper()
	e, err := ts.store.Append(context.Background(), typ, subject, []byte(payload))
	require.NoError(t, err)
	return e
}

func cadetID(id int64) *int64 { return &id }

func cadetIdentity(userID, cadetID int64) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleCadet, CadetID: &cadetID}
}

func adminIdentity(userID int64) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleAdmin}
}
