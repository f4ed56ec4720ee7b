package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/badger"
	"github.com/pscheid92/chatrelay/internal/adapter/filestore"
	"github.com/pscheid92/chatrelay/internal/adapter/httpserver"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/adapter/postgres"
	"github.com/pscheid92/chatrelay/internal/adapter/redis"
	"github.com/pscheid92/chatrelay/internal/adapter/websocket"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/identity"
	"github.com/pscheid92/chatrelay/internal/platform/config"
	"github.com/pscheid92/chatrelay/internal/platform/logging"
	"github.com/pscheid92/chatrelay/internal/platform/version"
	"github.com/pscheid92/chatrelay/internal/relay"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// identityBackend is a snapshot store together with its health check and
// release function.
type identityBackend struct {
	store domain.IdentitySnapshotStore
	check httpserver.HealthCheck
	close func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupBackend(ctx context.Context, cfg *config.Config, storageMetrics *metrics.StorageMetrics) (identityBackend, error) {
	switch cfg.IdentityBackend {
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL, storageMetrics)
		if err != nil {
			return identityBackend{}, err
		}
		store := redis.NewIdentityStore(client, cfg.RedisIdentityKey)
		return identityBackend{
			store: store,
			check: httpserver.HealthCheck{Name: "redis", Check: store.Ping},
			close: func() { _ = client.Close() },
		}, nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, storageMetrics)
		if err != nil {
			return identityBackend{}, err
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return identityBackend{}, err
		}
		store := postgres.NewIdentityStore(pool)
		return identityBackend{
			store: store,
			check: httpserver.HealthCheck{Name: "postgres", Check: store.Ping},
			close: pool.Close,
		}, nil

	case config.BackendBadger:
		db, err := badger.Open(cfg.BadgerPath)
		if err != nil {
			return identityBackend{}, err
		}
		store := badger.NewIdentityStore(db)
		return identityBackend{
			store: store,
			check: httpserver.HealthCheck{Name: "badger", Check: store.Ping},
			close: func() {
				if err := db.Close(); err != nil {
					slog.Error("Failed to close badger database", "error", err)
				}
			},
		}, nil

	case config.BackendFile:
		store := filestore.NewIdentityStore(cfg.IdentityFile)
		return identityBackend{
			store: store,
			check: httpserver.HealthCheck{Name: "identity_file", Check: store.Ping},
			close: func() {},
		}, nil

	default:
		return identityBackend{}, fmt.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}
}

// runGracefulShutdown waits for SIGINT or SIGTERM, then stops accepting
// connections, closes the open ones and flushes the identity snapshot.
func runGracefulShutdown(srv *httpserver.Server, admin *httpserver.AdminServer, engine *relay.Engine, identities *identity.Store) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked connections are not tracked by the HTTP server, so this
		// returns once the listener is closed.
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		engine.Stop()

		if err := identities.Close(ctx); err != nil {
			slog.Error("Failed to flush identity snapshot", "error", err)
		}

		if admin != nil {
			if err := admin.Shutdown(ctx); err != nil {
				slog.Error("Admin server shutdown error", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit, "identity_backend", cfg.IdentityBackend)

	registry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)
	identityMetrics := metrics.NewIdentityMetrics(registry)
	storageMetrics := metrics.NewStorageMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	backend, err := setupBackend(startupCtx, cfg, storageMetrics)
	cancel()
	if err != nil {
		slog.Error("Failed to set up identity backend", "backend", cfg.IdentityBackend, "error", err)
		os.Exit(1)
	}
	defer backend.close()

	identities := identity.NewStore(backend.store, identityMetrics, identity.DefaultWriterConfig())
	loadCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	identities.Load(loadCtx)
	cancel()

	engine := relay.NewEngine(identities, relay.Options{
		SendBufferSize: cfg.SendBufferSize,
		ExcludeSender:  cfg.ExcludeSender,
		Clock:          clock,
		Metrics:        relayMetrics,
	})

	limits := websocket.NewLimits(websocket.LimitsConfig{
		MaxConnections:       cfg.MaxWebSocketConnections,
		MaxConnectionsPerIP:  cfg.MaxConnectionsPerIP,
		ConnectionsPerSecond: cfg.ConnectionRatePerSecond,
		Burst:                cfg.ConnectionBurst,
	}, clock)
	wsHandler := websocket.NewHandler(engine, websocket.HandlerConfig{
		MaxMessageBytes: cfg.MaxMessageBytes,
		AllowedOrigins:  cfg.Origins(),
		Limits:          limits,
		Clock:           clock,
		Metrics:         relayMetrics,
	})

	srv := httpserver.NewServer(cfg.Port, wsHandler, httpMetrics)

	var admin *httpserver.AdminServer
	if cfg.AdminPort != "" {
		admin = httpserver.NewAdminServer(cfg.AdminPort, registry, []httpserver.HealthCheck{backend.check}, clock)
		go func() {
			if err := admin.Start(); err != nil {
				slog.Error("Admin server error", "error", err)
			}
		}()
	}

	done := runGracefulShutdown(srv, admin, engine, identities)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
