package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/app"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/auth"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/broadcast"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/config"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/database"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/eventlog"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/logging"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/platform/version"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/relay"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/server"
)

func setupConfig() *config.Config {
	// Missing .env is fine; env vars may come from the environment itself.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func runGracefulShutdown(srv *server.Server, registry *broadcast.Registry, cancelJobs context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelJobs()
		registry.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", build.Version,
		"commit", build.Commit,
	)

	pool := setupDB(cfg)
	defer pool.Close()

	store := eventlog.NewPostgresStore(pool)
	registry := broadcast.NewRegistry(clock)
	tokens := auth.NewManager(cfg.TokenSecret, clock)
	replayEngine := app.NewReplayEngine(store)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Without Redis the deployment is single-process: the dispatcher feeds
	// the local registry directly and the background jobs just run. With
	// Redis, events flow through the relay so every instance's registry
	// sees them, and leader election keeps the jobs on exactly one
	// instance.
	dispatchSink := domain.EventSink(registry)
	var (
		redisHealth server.HealthCheck
		election    *relay.LeaderElection
	)
	if cfg.RedisURL != "" {
		redisClient, err := relay.NewClient(cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()

		eventRelay := relay.New(redisClient)
		dispatchSink = eventRelay
		redisHealth = redisClient.Ping
		go eventRelay.Run(jobCtx, registry)

		hostname, _ := os.Hostname()
		instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
		election = relay.NewLeaderElection(redisClient, instanceID, "leader:dispatch", 30*time.Second)
	}

	dispatcher := app.NewDispatchWorker(store, clock, dispatchSink).
		WithInterval(cfg.DispatchInterval).
		WithBatchSize(cfg.DispatchBatchSize)
	sweeper := app.NewRetentionSweeper(store, clock).
		WithInterval(cfg.SweepInterval).
		WithRetention(time.Duration(cfg.RetentionDays) * 24 * time.Hour)

	runJobs := func(ctx context.Context) {
		go sweeper.Run(ctx)
		dispatcher.Run(ctx)
	}
	if election != nil {
		go election.RunWhenLeader(jobCtx, clock, runJobs)
	} else {
		go runJobs(jobCtx)
	}

	srv := server.NewServer(cfg, server.Deps{
		Store:          store,
		Registry:       registry,
		Replay:         replayEngine,
		Tokens:         tokens,
		Clock:          clock,
		PostgresHealth: pool.Ping,
		RedisHealth:    redisHealth,
	})

	done := runGracefulShutdown(srv, registry, cancelJobs)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
