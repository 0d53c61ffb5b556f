// Package main provides the entrypoint for the trendpush worker, which turns
// newly created trend event records into push notifications.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/api/middleware"
	"github.com/trendpush/trendpush/internal/api/response"
	"github.com/trendpush/trendpush/internal/bootstrap"
	"github.com/trendpush/trendpush/internal/config"
	"github.com/trendpush/trendpush/internal/database"
	"github.com/trendpush/trendpush/internal/provider/resilience"
	"github.com/trendpush/trendpush/internal/telemetry"
	"github.com/trendpush/trendpush/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trendpush-worker"

	cfg, err := config.Load(config.Path())
	if err != nil {
		bootLog := bootstrap.NewLogger(os.Stderr, serviceName, Version, "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := bootstrap.NewLogger(os.Stdout, serviceName, Version, cfg.App.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if !cfg.Worker.ListenPostgres && cfg.PubSub.Subscription == "" {
		log.Fatal().Msg("no record source configured: enable worker.listen_postgres or set pubsub.subscription")
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting trendpush worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = serviceName
	telemetryCfg.ServiceVersion = Version
	telemetryCfg.Environment = cfg.App.Environment

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	stores, err := bootstrap.OpenStores(ctx, cfg, cfg.Worker.ListenPostgres, log)
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

	trigger := worker.NewChangeTrigger(worker.ChangeTriggerConfig{
		Processor: pipeline,
		Timeout:   cfg.Worker.HandleTimeout,
		Logger:    log,
	})

	var wg sync.WaitGroup
	run := func(name string, start func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("source", name).Msg("record source stopped")
				cancel()
			}
		}()
	}

	if cfg.Worker.ListenPostgres {
		listener, err := worker.NewPostgresListener(worker.PostgresListenerConfig{
			Source:  worker.NewPgNotifySource(stores.Pool),
			Handler: trigger,
			Channel: database.TrendEventsChannel,
			Config:  cfg.Worker,
			Logger:  log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create postgres listener")
		}
		run("postgres", listener.Start)
	}

	if cfg.PubSub.Subscription != "" {
		projectID := cfg.PubSub.ProjectID
		if projectID == "" {
			projectID = cfg.Push.ProjectID
		}
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: cfg.PubSub.Subscription,
			MaxOutstanding:   cfg.PubSub.MaxOutstanding,
			Trigger:          trigger,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()
		run("pubsub", handler.Start)
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      healthRouter(log, trigger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	wg.Wait()
	log.Info().Msg("worker stopped")
}

// healthRouter serves GET /health with the trigger counters.
func healthRouter(log zerolog.Logger, trigger *worker.ChangeTrigger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{
			"status":  "healthy",
			"version": Version,
			"trigger": trigger.MetricsSnapshot(),
		})
	})
	return r
}
