package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trendlens/trendlens-api/api/controllers"
	analysiscontrollers "github.com/trendlens/trendlens-api/api/controllers/analysis"
	webhookcontrollers "github.com/trendlens/trendlens-api/api/controllers/webhooks"
	"github.com/trendlens/trendlens-api/api/middleware"
	"github.com/trendlens/trendlens-api/pkg/config"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/redis"
)

// Store is the Redis surface the router needs: replay storage for
// Idempotency-Key requests and the relay rate limiter.
type Store interface {
	redis.IdempotencyStore
	redis.RateLimiter
}

// Deps holds everything the router wires into handlers. Store, Sessions and
// Metrics may be nil.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Store    Store
	Redis    controllers.Pinger
	Sessions middleware.SessionVerifier
	Users    controllers.UserService
	Webhooks webhookcontrollers.ClerkWebhookService
	Relay    analysiscontrollers.Relay
	Metrics  prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	maxWebhookBody := int64(cfg.Webhooks.MaxBodyKB) << 10
	r.Route("/api/v1/webhooks/clerk", func(r chi.Router) {
		r.Post("/", webhookcontrollers.ClerkWebhook(d.Webhooks, maxWebhookBody, logg))
		if !cfg.App.IsProd() {
			debug := webhookcontrollers.ClerkWebhookDebug(cfg.Clerk.WebhookSecret != "", maxWebhookBody, logg)
			r.Get("/debug", debug)
			r.Post("/debug", debug)
		}
	})

	r.With(middleware.OptionalAuth(d.Sessions, logg)).
		Get("/api/v1/auth/status", controllers.AuthStatus(d.Users, logg))

	idempotent := func(next http.Handler) http.Handler { return next }
	var limiter redis.RateLimiter
	if d.Store != nil {
		idempotent = middleware.Idempotency(d.Store, logg)
		limiter = d.Store
	}
	relayLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("relay", cfg.Relay.RateLimit, cfg.Relay.RateWindow),
		limiter,
		logg,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Sessions, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.CurrentUser(d.Users, logg))
			r.Patch("/", controllers.UpdateCurrentUser(d.Users, logg))
			r.With(idempotent).Post("/sync", controllers.SyncCurrentUser(d.Users, logg))
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/status", analysiscontrollers.Status(d.Relay))
			r.With(relayLimit).Post("/video", analysiscontrollers.Video(d.Relay, cfg.Relay.MaxVideoBytes(), logg))
			r.With(relayLimit, idempotent).Post("/youtube", analysiscontrollers.YouTube(d.Relay, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Sessions, logg))
		r.Use(middleware.RequireAdmin(d.Users, logg))
		r.Get("/users", controllers.AdminListUsers(d.Users, logg))
	})

	return r
}
