// Package config provides configuration loading and management for the
// Meltano pipelines adapter.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete adapter configuration. It configures the adapter
// itself, never the pipelines; those live in the pipeline document.
type Config struct {
	Meltano MeltanoConfig `yaml:"meltano"`
	Log     LogConfig     `yaml:"log"`
	NATS    NATSConfig    `yaml:"nats"`
	Serve   ServeConfig   `yaml:"serve"`
}

// MeltanoConfig configures how the Meltano CLI is invoked.
type MeltanoConfig struct {
	// Executable is the meltano binary to invoke (default: "meltano" on PATH).
	Executable string `yaml:"executable"`
	// RunTimeout bounds a single pipeline run. Zero disables the bound.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// LogConfig configures adapter logging.
type LogConfig struct {
	// Level is the slog level: debug, info, warn or error.
	Level string `yaml:"level"`
}

// NATSConfig configures the run event relay.
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server in serve mode).
	URL string `yaml:"url"`
	// Embedded indicates whether serve mode starts an embedded NATS server.
	Embedded bool `yaml:"embedded"`
	// SubjectPrefix prefixes run event subjects (default: meltano.pipelines).
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ServeConfig configures serve mode.
type ServeConfig struct {
	// MetricsAddr is the listen address for /metrics and /healthz.
	MetricsAddr string `yaml:"metrics_addr"`
	// Scheduler enables the cron scheduler for declared pipeline schedules.
	Scheduler bool `yaml:"scheduler"`
	// Watch enables reloading the pipeline document on change.
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Meltano: MeltanoConfig{
			Executable: "meltano",
			RunTimeout: 0,
		},
		Log: LogConfig{
			Level: "info",
		},
		NATS: NATSConfig{
			URL:           "",
			Embedded:      true,
			SubjectPrefix: "meltano.pipelines",
		},
		Serve: ServeConfig{
			MetricsAddr: ":9650",
			Scheduler:   true,
			Watch:       true,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Meltano.Executable == "" {
		return fmt.Errorf("meltano.executable is required")
	}
	if c.Meltano.RunTimeout < 0 {
		return fmt.Errorf("meltano.run_timeout must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats.subject_prefix is required")
	}
	return nil
}

// Merge overlays non-zero fields of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Meltano.Executable != "" {
		c.Meltano.Executable = other.Meltano.Executable
	}
	if other.Meltano.RunTimeout != 0 {
		c.Meltano.RunTimeout = other.Meltano.RunTimeout
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
	if other.Serve.MetricsAddr != "" {
		c.Serve.MetricsAddr = other.Serve.MetricsAddr
	}
}

// LoadFromFile reads a config file. The error passes through os.IsNotExist
// so callers can treat a missing file as "no overrides".
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
