// Package bootstrap builds the components shared by the trendpush binaries
// from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/api/handler"
	"github.com/trendpush/trendpush/internal/config"
	"github.com/trendpush/trendpush/internal/database"
	"github.com/trendpush/trendpush/internal/device"
	"github.com/trendpush/trendpush/internal/ingest"
	"github.com/trendpush/trendpush/internal/provider/resilience"
	"github.com/trendpush/trendpush/internal/push"
	"github.com/trendpush/trendpush/internal/push/fcm"
)

// NewLogger returns the JSON process logger tagged with service and version.
// An unknown level falls back to info.
func NewLogger(w io.Writer, service, version, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// NewSender builds the configured push backend. The FCM client is registered
// with backends so readiness can report its circuit state.
func NewSender(ctx context.Context, cfg config.PushConfig, backends *resilience.Registry, logger zerolog.Logger) (push.Sender, error) {
	switch cfg.Backend {
	case config.BackendLog:
		return push.NewLogSender(logger), nil
	case config.BackendFCM:
	default:
		return nil, fmt.Errorf("unknown push backend %q", cfg.Backend)
	}

	var credentials []byte
	if cfg.CredentialsFile != "" {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading fcm credentials: %w", err)
		}
		credentials = b
	}

	httpClient, projectID, err := fcm.NewCredentialedHTTPClient(ctx, credentials)
	if err != nil {
		return nil, err
	}
	if cfg.ProjectID != "" {
		projectID = cfg.ProjectID
	}

	clientCfg := resilience.DefaultClientConfig(fcm.ProviderName)
	clientCfg.HTTPClient = httpClient
	if cfg.Timeout > 0 {
		clientCfg.Timeout = cfg.Timeout
	}
	cbCfg := resilience.DefaultCircuitBreakerConfig(fcm.ProviderName)
	cbCfg.OnStateChange = resilience.LogStateChange(logger)
	clientCfg.CircuitBreaker = &cbCfg

	client := resilience.NewClient(clientCfg)
	if backends != nil {
		backends.Register(client)
	}

	return fcm.NewClient(fcm.ClientConfig{
		ProjectID:  projectID,
		BaseURL:    cfg.BaseURL,
		HTTPClient: client,
		Logger:     logger,
	})
}

// NewPipeline wires sender behind a dispatcher and returns the ingest pipeline.
func NewPipeline(sender push.Sender, cfg config.PushConfig, logger zerolog.Logger) (*ingest.Pipeline, error) {
	dispatcher, err := push.NewDispatcher(push.DispatcherConfig{
		Sender:  sender,
		Logger:  logger,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	return ingest.NewPipeline(ingest.PipelineConfig{Dispatcher: dispatcher, Logger: logger})
}

// Stores holds the opened data stores. Nil fields were not needed.
type Stores struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Registry device.TokenRegistry
	Pingers  map[string]handler.Pinger
}

// OpenStores connects what the configuration selects. Postgres is opened when
// it backs the registry or when needPostgres is set, and its schema is ensured.
func OpenStores(ctx context.Context, cfg *config.Config, needPostgres bool, logger zerolog.Logger) (*Stores, error) {
	s := &Stores{Pingers: make(map[string]handler.Pinger)}

	if needPostgres || cfg.Registry.Store == config.RegistryPostgres {
		pool, err := database.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		s.Pool = pool
		s.Pingers["postgres"] = pool
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	}

	switch cfg.Registry.Store {
	case config.RegistryPostgres:
		s.Registry = device.NewPostgresRegistry(s.Pool)
	case config.RegistryRedis:
		s.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.Registry = device.NewRedisRegistry(s.Redis)
		s.Pingers["redis"] = redisPinger{s.Redis}
	case config.RegistryMemory:
		s.Registry = device.NewInMemoryRegistry()
	default:
		s.Close()
		return nil, fmt.Errorf("unknown registry store %q", cfg.Registry.Store)
	}

	return s, nil
}

// Close releases every opened store.
func (s *Stores) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	return errors.Join(errs...)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
