package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendpush/trendpush/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, config.BackendLog, cfg.Push.Backend)
	assert.Equal(t, config.RegistryMemory, cfg.Registry.Store)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.True(t, cfg.Worker.ListenPostgres)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trendpush.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9090
  environment: staging
push:
  backend: fcm
  project_id: demo-project
  timeout: 5s
database:
  host: db.internal
worker:
  concurrency: 8
`), 0o600))

	t.Setenv("TRENDPUSH_DATABASE__HOST", "db.override")
	t.Setenv("TRENDPUSH_REGISTRY__STORE", "redis")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, config.BackendFCM, cfg.Push.Backend)
	assert.Equal(t, "demo-project", cfg.Push.ProjectID)
	assert.Equal(t, 5*time.Second, cfg.Push.Timeout)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, config.RegistryRedis, cfg.Registry.Store)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unclosed"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		errMsg string
	}{
		{name: "unknown backend", modify: func(c *config.Config) { c.Push.Backend = "apns" }, errMsg: "push.backend"},
		{name: "unknown store", modify: func(c *config.Config) { c.Registry.Store = "etcd" }, errMsg: "registry.store"},
		{name: "redis without addr", modify: func(c *config.Config) {
			c.Registry.Store = config.RegistryRedis
			c.Redis.Addr = ""
		}, errMsg: "redis.addr"},
		{name: "port out of range", modify: func(c *config.Config) { c.App.Port = 70000 }, errMsg: "app.port"},
		{name: "no signing key", modify: func(c *config.Config) { c.Auth.SigningKey = "" }, errMsg: "auth.signing_key"},
		{name: "bad sample ratio", modify: func(c *config.Config) { c.Telemetry.SampleRatio = 2 }, errMsg: "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv(config.PathEnv, "")
	assert.Equal(t, config.DefaultPath, config.Path())

	t.Setenv(config.PathEnv, "/etc/trendpush/config.yml")
	assert.Equal(t, "/etc/trendpush/config.yml", config.Path())
}
