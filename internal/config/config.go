package config

import (
	"fmt"
	"time"
)

// Config represents the main kerani configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Gateway (HTTP/websocket surface)
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Session registry
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"` // debug, info, warn, error
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// GatewayConfig holds gateway configuration
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// SessionsConfig holds session registry configuration
type SessionsConfig struct {
	ArchiveCapacity         int    `json:"archive_capacity" mapstructure:"archive_capacity"`
	StartTimeoutMs          int    `json:"start_timeout_ms" mapstructure:"start_timeout_ms"`
	ReadTimeoutMs           int    `json:"read_timeout_ms" mapstructure:"read_timeout_ms"`
	TerminateGraceMs        int    `json:"terminate_grace_ms" mapstructure:"terminate_grace_ms"`
	Shell                   string `json:"shell" mapstructure:"shell"` // empty selects the platform default
	ArchiveRetentionMinutes int    `json:"archive_retention_minutes" mapstructure:"archive_retention_minutes"`
	JanitorSchedule         string `json:"janitor_schedule" mapstructure:"janitor_schedule"`
}

// StartTimeout returns the default initial output window as a duration.
func (s SessionsConfig) StartTimeout() time.Duration {
	return time.Duration(s.StartTimeoutMs) * time.Millisecond
}

// ReadTimeout returns the default read wait as a duration.
func (s SessionsConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// TerminateGrace returns the graceful-stop grace period as a duration.
func (s SessionsConfig) TerminateGrace() time.Duration {
	return time.Duration(s.TerminateGraceMs) * time.Millisecond
}

// ArchiveRetention returns the archive retention as a duration.
func (s SessionsConfig) ArchiveRetention() time.Duration {
	return time.Duration(s.ArchiveRetentionMinutes) * time.Minute
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9199",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8780",
		},
		Sessions: SessionsConfig{
			ArchiveCapacity:         100,
			StartTimeoutMs:          30000,
			ReadTimeoutMs:           5000,
			TerminateGraceMs:        2000,
			ArchiveRetentionMinutes: 360,
			JanitorSchedule:         "*/5 * * * *",
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr cannot be empty when metrics are enabled")
	}
	if c.Gateway.Enabled && c.Gateway.Addr == "" {
		return fmt.Errorf("gateway addr cannot be empty when the gateway is enabled")
	}

	if c.Sessions.ArchiveCapacity <= 0 {
		return fmt.Errorf("archive capacity must be positive")
	}
	if c.Sessions.StartTimeoutMs <= 0 {
		return fmt.Errorf("start timeout must be positive")
	}
	if c.Sessions.ReadTimeoutMs <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Sessions.TerminateGraceMs <= 0 {
		return fmt.Errorf("terminate grace must be positive")
	}
	if c.Sessions.ArchiveRetentionMinutes <= 0 {
		return fmt.Errorf("archive retention must be positive")
	}

	return nil
}
