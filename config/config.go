// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the server.
type Config struct {
	Addr            string        `env:"CHARCOUNT_ADDR" envDefault:":8787"`
	LogLevel        string        `env:"CHARCOUNT_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"CHARCOUNT_LOG_FORMAT" envDefault:"text"`
	RequestTimeout  time.Duration `env:"CHARCOUNT_REQUEST_TIMEOUT" envDefault:"30s"`
	ReadTimeout     time.Duration `env:"CHARCOUNT_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"CHARCOUNT_WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"CHARCOUNT_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes    int64         `env:"CHARCOUNT_MAX_BODY_BYTES" envDefault:"4194304"`
	RateLimit       int           `env:"CHARCOUNT_RATE_LIMIT" envDefault:"0"`
	RateBurst       int           `env:"CHARCOUNT_RATE_BURST" envDefault:"10"`
	CORSOrigins     []string      `env:"CHARCOUNT_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	WebSocket       bool          `env:"CHARCOUNT_WEBSOCKET" envDefault:"true"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName     string        `env:"OTEL_SERVICE_NAME" envDefault:"char-counter-server"`
}

// Load reads an optional dotenv file, then the environment. Variables
// already set in the environment win over the file. An empty path means
// ".env"; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied, ignoring
// the process environment.
func Default() *Config {
	var cfg Config
	// Defaults are static; parsing an empty environment cannot fail.
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return &cfg
}

// Validate checks the values Load cannot check by type alone.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.RequestTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate burst must be positive when rate limiting, got %d", c.RateBurst))
	}
	if len(c.CORSOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
