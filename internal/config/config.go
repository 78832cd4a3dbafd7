// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Core holds configuration for the client-side chat sync runtime.
type Core struct {
	Addr          string        `env:"OMNII_CORE_ADDR" envDefault:"localhost:8090"`
	DataDir       string        `env:"OMNII_DATA_DIR" envDefault:"./data"`
	ServerURL     string        `env:"OMNII_SERVER_URL" envDefault:"http://localhost:8091"`
	AuthToken     string        `env:"OMNII_AUTH_TOKEN"`
	ProbeURL      string        `env:"OMNII_PROBE_URL" envDefault:"http://localhost:8091/api/health"`
	ProbeInterval time.Duration `env:"OMNII_PROBE_INTERVAL" envDefault:"5s"`
	BackoffBase   time.Duration `env:"OMNII_BACKOFF_BASE" envDefault:"2s"`
	BackoffCap    time.Duration `env:"OMNII_BACKOFF_CAP" envDefault:"5m"`
	LogLevel      string        `env:"OMNII_LOG_LEVEL" envDefault:"INFO"`
}

// Server holds configuration for the delivery server.
type Server struct {
	Addr            string        `env:"OMNII_SERVER_ADDR" envDefault:"localhost:8091"`
	RateLimitWindow time.Duration `env:"OMNII_RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax    int           `env:"OMNII_RATE_LIMIT_MAX" envDefault:"100"`
	LogLevel        string        `env:"OMNII_LOG_LEVEL" envDefault:"INFO"`
}

// ParseCore loads core runtime configuration from the environment.
func ParseCore() (*Core, error) {
	cfg := &Core{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseServer loads delivery server configuration from the environment.
func ParseServer() (*Server, error) {
	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
