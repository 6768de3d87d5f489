package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/trendlens/trendlens-api/api/controllers"
	"github.com/trendlens/trendlens-api/api/middleware"
	"github.com/trendlens/trendlens-api/api/routes"
	"github.com/trendlens/trendlens-api/internal/users"
	clerkwebhook "github.com/trendlens/trendlens-api/internal/webhooks/clerk"
	"github.com/trendlens/trendlens-api/pkg/clerk"
	"github.com/trendlens/trendlens-api/pkg/config"
	"github.com/trendlens/trendlens-api/pkg/db"
	"github.com/trendlens/trendlens-api/pkg/instance"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/metrics"
	"github.com/trendlens/trendlens-api/pkg/migrate"
	"github.com/trendlens/trendlens-api/pkg/n8n"
	"github.com/trendlens/trendlens-api/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	relayMetrics := metrics.NewRelayMetrics(registry)

	// Redis is optional: without it webhook replay detection, Idempotency-Key
	// replays and relay rate limiting are off.
	var (
		store       routes.Store
		redisPinger controllers.Pinger
		guard       *clerkwebhook.DeliveryGuard
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		store, redisPinger = redisClient, redisClient
		if guard, err = clerkwebhook.NewDeliveryGuard(redisClient, cfg.Webhooks.ReplayTTL); err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured; replay protection and rate limiting disabled")
	}

	var directory users.ProfileSource
	if cfg.Clerk.SecretKey != "" {
		dir, err := clerk.NewDirectory(clerk.DirectoryOptions{SecretKey: cfg.Clerk.SecretKey, APIURL: cfg.Clerk.APIURL})
		if err != nil {
			return err
		}
		directory = dir
	} else {
		logg.Warn(ctx, "clerk secret key not configured; users are provisioned without profile data")
	}

	var sessions middleware.SessionVerifier
	if cfg.Clerk.SessionAuthEnabled() {
		verifier, err := clerk.NewSessionVerifier(ctx, cfg.Clerk, logg)
		if err != nil {
			return err
		}
		defer verifier.Close()
		sessions = verifier
	} else {
		logg.Warn(ctx, "clerk jwks url not configured; authenticated routes will reject requests")
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:      users.NewRepository(dbClient.DB()),
		Directory: directory,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	webhookService, err := newWebhookService(cfg, logg, userService, guard, webhookMetrics)
	if err != nil {
		return err
	}

	relay := n8n.NewClient(cfg.N8N, n8n.WithMetrics(relayMetrics), n8n.WithLogger(logg))

	handler := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Store:    store,
		Redis:    redisPinger,
		Sessions: sessions,
		Users:    userService,
		Webhooks: webhookService,
		Relay:    relay,
		Metrics:  registry,
	})

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"relay":      relay.Status().Ready,
		"redis":      store != nil,
		"clerk_api":  directory != nil,
		"clerk_auth": sessions != nil,
	})
	logg.Info(startCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newWebhookService(
	cfg *config.Config,
	logg *logger.Logger,
	store clerkwebhook.UserStore,
	guard *clerkwebhook.DeliveryGuard,
	m *metrics.WebhookMetrics,
) (*clerkwebhook.Service, error) {
	verifier, err := clerkwebhook.NewVerifier(cfg.Clerk.WebhookSecret, logg)
	if err != nil {
		return nil, err
	}
	dispatcher, err := clerkwebhook.NewDispatcher(clerkwebhook.DispatcherParams{
		Store:   store,
		Logger:  logg,
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}
	params := clerkwebhook.ServiceParams{
		Verifier:   verifier,
		Dispatcher: dispatcher,
		Metrics:    m,
		Logger:     logg,
	}
	if guard != nil {
		params.Guard = guard
	}
	return clerkwebhook.NewService(params)
}
