// Package config loads trendpush configuration from defaults, an optional
// YAML file and TRENDPUSH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/trendpush/trendpush/internal/database"
	"github.com/trendpush/trendpush/internal/telemetry"
	"github.com/trendpush/trendpush/internal/worker"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TRENDPUSH_"

	// PathEnv names the variable holding the config file path.
	PathEnv = "TRENDPUSH_CONFIG"

	// DefaultPath is read when PathEnv is unset. A missing file is not an error.
	DefaultPath = "trendpush.yml"
)

// Push backends.
const (
	BackendFCM = "fcm"
	BackendLog = "log"
)

// Token registry stores.
const (
	RegistryMemory   = "memory"
	RegistryPostgres = "postgres"
	RegistryRedis    = "redis"
)

// Config is the complete configuration shared by the trendpush binaries.
type Config struct {
	App       AppConfig        `koanf:"app"`
	Database  database.Config  `koanf:"database"`
	Redis     RedisConfig      `koanf:"redis"`
	Push      PushConfig       `koanf:"push"`
	Auth      AuthConfig       `koanf:"auth"`
	Telemetry telemetry.Config `koanf:"telemetry"`
	PubSub    PubSubConfig     `koanf:"pubsub"`
	Worker    worker.Config    `koanf:"worker"`
	Registry  RegistryConfig   `koanf:"registry"`
}

// AppConfig holds process level settings.
type AppConfig struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
	Port        int    `koanf:"port"`
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `koanf:"require_tls"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RedisConfig configures the Redis token registry.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// PushConfig selects and configures the push backend.
type PushConfig struct {
	Backend string        `koanf:"backend"`
	Timeout time.Duration `koanf:"timeout"`
	// ProjectID overrides the project id found in the credentials.
	ProjectID string `koanf:"project_id"`
	// CredentialsFile is a service account JSON file. Empty uses application default credentials.
	CredentialsFile string `koanf:"credentials_file"`
	BaseURL         string `koanf:"base_url"`
}

// AuthConfig configures bearer token validation for the token endpoint.
type AuthConfig struct {
	SigningKey string        `koanf:"signing_key"`
	Issuer     string        `koanf:"issuer"`
	Audience   string        `koanf:"audience"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
}

// PubSubConfig configures the Pub/Sub record source of the worker.
// The source is off unless Subscription is set.
type PubSubConfig struct {
	ProjectID      string `koanf:"project_id"`
	Subscription   string `koanf:"subscription"`
	MaxOutstanding int    `koanf:"max_outstanding"`
}

// RegistryConfig selects where device tokens are stored.
type RegistryConfig struct {
	Store string `koanf:"store"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Environment:     "development",
			LogLevel:        "info",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: database.DefaultConfig(),
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Push: PushConfig{
			Backend: BackendLog,
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			SigningKey: "dev-signing-key-change-in-production",
			Issuer:     "https://api.trendpush.dev",
			Audience:   "trendpush-api",
			TokenTTL:   time.Hour,
		},
		Telemetry: telemetry.DefaultConfig(),
		PubSub: PubSubConfig{
			MaxOutstanding: 10,
		},
		Worker: worker.DefaultConfig(),
		Registry: RegistryConfig{
			Store: RegistryMemory,
		},
	}
}

// Path returns the config file path from PathEnv or DefaultPath.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the file at path, if it exists, then applies environment overrides.
// TRENDPUSH_DATABASE__HOST sets database.host.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	if s == PathEnv {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks enums and settings that the selected components require.
func (c *Config) Validate() error {
	var errs []error

	switch c.Push.Backend {
	case BackendFCM, BackendLog:
	default:
		errs = append(errs, fmt.Errorf("push.backend %q: must be one of fcm, log", c.Push.Backend))
	}

	switch c.Registry.Store {
	case RegistryMemory, RegistryPostgres:
	case RegistryRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis registry"))
		}
	default:
		errs = append(errs, fmt.Errorf("registry.store %q: must be one of memory, postgres, redis", c.Registry.Store))
	}

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signing_key is required"))
	}
	if c.Database.MaxOpenConns < 1 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, errors.New("database: max_open_conns must be >= 1 and >= max_idle_conns"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %v: must be within [0, 1]", c.Telemetry.SampleRatio))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
