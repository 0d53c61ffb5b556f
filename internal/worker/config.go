// Package worker runs the change trigger: trend event records created in the
// event store are fed through the ingest pipeline, with outcomes only logged.
package worker

import (
	"time"
)

// Config holds configuration for the worker sources.
type Config struct {
	// Concurrency bounds how many records are processed at once.
	// Default: 4
	Concurrency int `koanf:"concurrency"`

	// HandleTimeout bounds the processing of one record.
	// Default: 30 seconds
	HandleTimeout time.Duration `koanf:"handle_timeout"`

	// ReconnectInitial is the first wait before reconnecting the listener.
	// Default: 500 milliseconds
	ReconnectInitial time.Duration `koanf:"reconnect_initial"`

	// ReconnectMax caps the wait between reconnect attempts.
	// Default: 30 seconds
	ReconnectMax time.Duration `koanf:"reconnect_max"`

	// ListenPostgres enables the Postgres NOTIFY source.
	ListenPostgres bool `koanf:"listen_postgres"`
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      4,
		HandleTimeout:    30 * time.Second,
		ReconnectInitial: 500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
		ListenPostgres:   true,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = d.HandleTimeout
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = d.ReconnectInitial
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = d.ReconnectMax
	}
	return c
}
