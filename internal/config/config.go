// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration sourced from environment
// variables. Field defaults match .env.example.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────────
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	AppEnv     string `env:"APP_ENV"     envDefault:"development"`
	// DocRoot is the directory static route bodies are read from.
	DocRoot string `env:"DOC_ROOT" envDefault:"."`
	// Connection deadlines applied around request-line read and response write.
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"  envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`

	// ── Worker pool ──────────────────────────────────────────────────────────────
	WorkerCount int `env:"WORKER_COUNT" envDefault:"5"`
	// PoolRespawnWorkers restarts a worker after a handler panic instead of
	// letting pool capacity shrink by one. Off by default.
	PoolRespawnWorkers bool `env:"POOL_RESPAWN_WORKERS" envDefault:"false"`

	// ── Accept rate limiting ─────────────────────────────────────────────────────
	// AcceptRateLimit is connections per second admitted by the accept loop;
	// 0 disables limiting entirely.
	AcceptRateLimit float64 `env:"ACCEPT_RATE_LIMIT" envDefault:"0"`
	AcceptRateBurst int     `env:"ACCEPT_RATE_BURST" envDefault:"10"`

	// ── Observability ────────────────────────────────────────────────────────────
	// OpsAddr serves /healthz and /metrics; empty disables the ops listener.
	OpsAddr string `env:"OPS_ADDR" envDefault:":9090"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
// Returns an error if parsing fails or a value is out of range.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects values the lower layers treat as documented misuse rather
// than errors. A zero-worker pool accepts jobs that never run, so the
// mistake is caught here where an operator sees it.
func (c *Config) validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be >= 1, got %d", c.WorkerCount)
	}
	if c.AcceptRateLimit < 0 {
		return fmt.Errorf("ACCEPT_RATE_LIMIT must be >= 0, got %g", c.AcceptRateLimit)
	}
	if c.AcceptRateLimit > 0 && c.AcceptRateBurst < 1 {
		return fmt.Errorf("ACCEPT_RATE_BURST must be >= 1 when limiting, got %d", c.AcceptRateBurst)
	}
	return nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
