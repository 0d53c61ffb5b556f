// Package main provides the entrypoint for the trendpush API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/trendpush/trendpush/internal/api"
	"github.com/trendpush/trendpush/internal/api/middleware"
	"github.com/trendpush/trendpush/internal/auth"
	"github.com/trendpush/trendpush/internal/bootstrap"
	"github.com/trendpush/trendpush/internal/config"
	"github.com/trendpush/trendpush/internal/device"
	"github.com/trendpush/trendpush/internal/provider/resilience"
	"github.com/trendpush/trendpush/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trendpush-api"

	cfg, err := config.Load(config.Path())
	if err != nil {
		bootLog := bootstrap.NewLogger(os.Stderr, serviceName, Version, "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := bootstrap.NewLogger(os.Stdout, serviceName, Version, cfg.App.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.App.Environment).
		Msg("starting trendpush API")

	ctx := context.Background()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = serviceName
	telemetryCfg.ServiceVersion = Version
	telemetryCfg.Environment = cfg.App.Environment

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	if !cfg.IsProduction() && cfg.Auth.SigningKey == config.Default().Auth.SigningKey {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	stores, err := bootstrap.OpenStores(ctx, cfg, false, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}
	defer stores.Close()

	backends := resilience.NewRegistry()
	sender, err := bootstrap.NewSender(ctx, cfg.Push, backends, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create push backend")
	}

	pipeline, err := bootstrap.NewPipeline(sender, cfg.Push, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pipeline")
	}
	log.Info().
		Str("backend", sender.Name()).
		Str("registry", cfg.Registry.Store).
		Msg("pipeline initialized")

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		RequireTLS:     cfg.App.RequireTLS,
		Events:         pipeline,
		Tokens:         device.NewService(stores.Registry, log),
		TokenValidator: jwtService,
		Backends:       backends,
		Pingers:        stores.Pingers,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
