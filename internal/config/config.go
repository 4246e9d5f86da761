// Package config handles TOML configuration for fleetvoice.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// Config is the root configuration structure.
type Config struct {
	AWS      AWSConfig      `toml:"aws"`
	Server   ServerConfig   `toml:"server"`
	Session  SessionConfig  `toml:"session"`
	Workflow WorkflowConfig `toml:"workflow"`
	OTEL     OTELConfig     `toml:"otel"`
	Log      LogConfig      `toml:"log"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Profile        string `toml:"profile"`
	CallTimeoutStr string `toml:"call_timeout"`
	CallTimeout    time.Duration
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// SessionConfig selects where session attributes are kept when the
// client does not echo them back.
type SessionConfig struct {
	Store string `toml:"store"`
	Path  string `toml:"path"`
}

// WorkflowConfig holds untagged-termination settings.
type WorkflowConfig struct {
	DryRun bool `toml:"dry_run"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	// An explicit 0.0 disables sampling, so only an absent key gets the default.
	if !md.IsDefined("otel", "traces", "sample_rate") {
		cfg.OTEL.Traces.SampleRate = defaultSampleRate
	}

	if err := parseTimeout(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.OTEL.Traces.SampleRate = defaultSampleRate
	// The default timeout string always parses.
	_ = parseTimeout(cfg)
	return cfg
}

// defaultSampleRate samples every trace.
const defaultSampleRate = 1.0

func applyDefaults(cfg *Config) {
	if cfg.AWS.CallTimeoutStr == "" {
		cfg.AWS.CallTimeoutStr = "10s"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreMemory
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = "fleetvoice.db"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "fleetvoice"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseTimeout(cfg *Config) error {
	d, err := time.ParseDuration(cfg.AWS.CallTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse call_timeout %q: %w", cfg.AWS.CallTimeoutStr, err)
	}
	cfg.AWS.CallTimeout = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.AWS.CallTimeout <= 0 {
		return fmt.Errorf("aws: call_timeout must be positive (got %v)", c.AWS.CallTimeout)
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreBolt:
		if c.Session.Path == "" {
			return fmt.Errorf("session: path required for bolt store")
		}
	default:
		return fmt.Errorf("session: unknown store %q (want %q or %q)", c.Session.Store, StoreMemory, StoreBolt)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}
