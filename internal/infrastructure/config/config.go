// Package config loads agentflow configuration from AGENTFLOW_* environment
// variables with an optional YAML file overlaid on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/emiliopalmerini/agentflow/internal/util"
)

// Prefix is the environment variable prefix.
const Prefix = "AGENTFLOW"

// OTel holds metrics export configuration.
type OTel struct {
	Enabled  bool   `envconfig:"ENABLED" yaml:"enabled"`
	Endpoint string `envconfig:"ENDPOINT" default:"localhost:4317" yaml:"endpoint"`
	Insecure bool   `envconfig:"INSECURE" default:"true" yaml:"insecure"`
}

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8787" yaml:"addr"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdown_timeout"`
	AuthToken       string        `envconfig:"AUTH_TOKEN" yaml:"auth_token"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`

	DatabaseURL   string `envconfig:"DATABASE_URL" yaml:"database_url"`
	DatabaseToken string `envconfig:"DATABASE_TOKEN" yaml:"database_token"`

	// ServerURL makes hook and ingest forward to a running server instead of
	// writing to the database.
	ServerURL  string `envconfig:"SERVER_URL" yaml:"server_url"`
	GitHubUser string `envconfig:"GITHUB_USER" yaml:"github_user"`

	OTel OTel `envconfig:"OTEL" yaml:"otel"`
}

// Load reads the environment, then overlays the YAML file at path when path
// is not empty. An unset database URL falls back to the local XDG database.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		url, err := util.DefaultDatabaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that envconfig and yaml cannot.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.OTel.Enabled && c.OTel.Endpoint == "" {
		return errors.New("otel endpoint is required when otel is enabled")
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ParseLevel maps debug, info, warn and error onto slog levels. The empty
// string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
