// Package api provides the HTTP API for trendpush.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/api/handler"
	"github.com/trendpush/trendpush/internal/api/middleware"
	"github.com/trendpush/trendpush/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Events runs submitted trend events (required).
	Events handler.EventProcessor

	// Tokens and TokenValidator enable the token registration route when both are set.
	Tokens         handler.TokenStore
	TokenValidator middleware.TokenValidator

	// Backends and Pingers feed the readiness check.
	Backends *resilience.Registry
	Pingers  map[string]handler.Pinger

	// Zero values use middleware.NotificationRateLimit and middleware.TokenRateLimit.
	NotificationRateLimit middleware.RateLimitConfig
	TokenRateLimit        middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "trendpush-api"
	}

	notificationLimit := cfg.NotificationRateLimit
	if notificationLimit.RequestLimit <= 0 {
		notificationLimit = middleware.NotificationRateLimit
	}
	tokenLimit := cfg.TokenRateLimit
	if tokenLimit.RequestLimit <= 0 {
		tokenLimit = middleware.TokenRateLimit
	}

	// Order matters: the request id must exist before tracing and logging read it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Backends, cfg.Pingers)
	notificationHandler := handler.NewNotificationHandler(cfg.Events, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.With(middleware.RateLimitByIP(notificationLimit)).
			Post("/notifications/trending", notificationHandler.SendTrending)

		if cfg.Tokens != nil && cfg.TokenValidator != nil {
			tokenHandler := handler.NewTokenHandler(cfg.Tokens, cfg.Logger)
			r.Route("/users/{userId}", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.TokenValidator))
				r.Use(middleware.RateLimitByUser(tokenLimit))
				r.With(middleware.RequireJSON).Put("/fcm-token", tokenHandler.PutToken)
				r.Get("/fcm-token", tokenHandler.GetToken)
				r.Delete("/fcm-token", tokenHandler.DeleteToken)
			})
		}
	})

	return r
}
