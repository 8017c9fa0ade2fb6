package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatlabels/internal/adapter/engine"
	"github.com/pscheid92/chatlabels/internal/adapter/httpserver"
	"github.com/pscheid92/chatlabels/internal/adapter/metrics"
	"github.com/pscheid92/chatlabels/internal/adapter/postgres"
	"github.com/pscheid92/chatlabels/internal/adapter/redis"
	"github.com/pscheid92/chatlabels/internal/app"
	"github.com/pscheid92/chatlabels/internal/domain"
	"github.com/pscheid92/chatlabels/internal/platform/config"
	"github.com/pscheid92/chatlabels/internal/platform/crypto"
	"github.com/pscheid92/chatlabels/internal/platform/logging"
	"github.com/pscheid92/chatlabels/internal/platform/version"
	"github.com/pscheid92/chatlabels/internal/session"
	goredis "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(metrics.NewDBMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupCredentials returns the Postgres store, decorated with the Redis cache when REDIS_URL is set.
func setupCredentials(cfg *config.Config, pool *pgxpool.Pool, reg prometheus.Registerer) (domain.CredentialStore, []httpserver.HealthCheck, func()) {
	cryptoSvc, err := crypto.New(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create crypto service", "error", err)
		os.Exit(1)
	}

	store := postgres.NewCredentialStore(pool, cryptoSvc)
	checks := []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}}

	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, credential cache disabled")
		return store, checks, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	cache := redis.NewCredentialCache(rdb, store, cfg.CredentialCacheTTL, metrics.NewCacheMetrics(reg))
	checks = append(checks, httpserver.HealthCheck{Name: "redis", Check: redisPing(rdb)})
	return cache, checks, func() { _ = rdb.Close() }
}

func redisPing(rdb *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

func setupGateway(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) *engine.Gateway {
	gw, err := engine.NewGateway(engine.Config{
		BaseURL:        cfg.EngineURL,
		APIKey:         cfg.EngineAPIKey,
		PollInterval:   cfg.EnginePollInterval,
		StatusInterval: cfg.EngineStatusInterval,
		RequestTimeout: cfg.EngineRequestTimeout,
	}, clock, metrics.NewEngineMetrics(reg))
	if err != nil {
		slog.Error("Failed to create engine gateway", "error", err)
		os.Exit(1)
	}
	return gw
}

func runGracefulShutdown(srv *httpserver.Server, appSvc *app.Service) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdown(shutdownCtx, srv, appSvc)

		close(done)
	}()

	return done
}

type httpShutdowner interface {
	Shutdown(ctx context.Context) error
}

type sessionCloser interface {
	StopPairing()
	Close(ctx context.Context) error
}

// shutdown stops pairing before the HTTP server so open /connect streams can finish.
func shutdown(ctx context.Context, srv httpShutdowner, appSvc sessionCloser) {
	appSvc.StopPairing()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	if err := appSvc.Close(ctx); err != nil {
		slog.Error("Failed to close sessions", "error", err)
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version, "commit", version.Commit)

	reg := metrics.NewRegistry()

	pool := setupDB(cfg, reg)
	defer pool.Close()

	credentials, healthChecks, closeRedis := setupCredentials(cfg, pool, reg)
	defer closeRedis()

	gateway := setupGateway(cfg, clock, reg)
	healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "engine", Check: gateway.Ping})

	appSvc := app.NewService(
		session.NewRegistry(),
		gateway,
		credentials,
		clock,
		metrics.NewPairingMetrics(reg),
		metrics.NewLabelMetrics(reg),
		app.Options{
			AdminToken:        cfg.AdminToken,
			LabelPollInterval: cfg.LabelPollInterval,
			LabelPollAttempts: cfg.LabelPollAttempts,
		},
	)

	srv := httpserver.NewServer(cfg, appSvc, metrics.NewHTTPMetrics(reg), metrics.Handler(reg), healthChecks)

	done := runGracefulShutdown(srv, appSvc)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
