// Package config loads dispatcher configuration from an optional
// config.toml file, overridable by environment variables, via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every configuration value for the dispatcher.
type Config struct {
	ListenPort      int      `mapstructure:"listen_port"`
	BackendBaseURL  string   `mapstructure:"backend_base_url"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
	DisableDashboard bool    `mapstructure:"disable_dashboard"`

	ShutdownDrainSeconds   int      `mapstructure:"shutdown_drain_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	IdleThresholdSeconds   int      `mapstructure:"idle_threshold_seconds"`
	BridgeBufferSize       int      `mapstructure:"bridge_buffer_size"`
	MaxRequestSizeMB       int      `mapstructure:"max_request_size_mb"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
	LogFile                string   `mapstructure:"log_file"`
	LogFileMaxSizeMB       int      `mapstructure:"log_file_max_size_mb"`
}

// CallTimeout returns TimeoutSeconds as a time.Duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IdleThreshold returns IdleThresholdSeconds as a time.Duration.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSeconds) * time.Second
}

// Load reads configuration from ./config.toml (if present) and env vars,
// applying documented defaults for every configuration surface.
// A missing config.toml is not an error: env vars and defaults alone are
// a valid configuration for this dispatcher.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("listen_port", 11435)
	v.SetDefault("backend_base_url", "http://localhost:11434")
	v.SetDefault("timeout_seconds", 300)
	v.SetDefault("disable_dashboard", false)
	v.SetDefault("shutdown_drain_seconds", 2)
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("idle_threshold_seconds", 60)
	v.SetDefault("bridge_buffer_size", 4)
	v.SetDefault("max_request_size_mb", 1)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_file", "ollamamq.log")
	v.SetDefault("log_file_max_size_mb", 100)

	_ = v.BindEnv("listen_port", "PORT")
	_ = v.BindEnv("backend_base_url", "OLLAMA_URL")
	_ = v.BindEnv("timeout_seconds", "TIMEOUT")
	_ = v.BindEnv("disable_dashboard", "DISABLE_DASHBOARD")
	_ = v.BindEnv("shutdown_drain_seconds", "SHUTDOWN_DRAIN_SECONDS")
	_ = v.BindEnv("shutdown_timeout_seconds", "SHUTDOWN_TIMEOUT_SECONDS")
	_ = v.BindEnv("idle_threshold_seconds", "IDLE_THRESHOLD_SECONDS")
	_ = v.BindEnv("bridge_buffer_size", "BRIDGE_BUFFER_SIZE")
	_ = v.BindEnv("max_request_size_mb", "MAX_REQUEST_SIZE_MB")
	_ = v.BindEnv("allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("log_file", "LOG_FILE")
	_ = v.BindEnv("log_file_max_size_mb", "LOG_FILE_MAX_SIZE_MB")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ALLOWED_ORIGINS as an env var arrives as a comma-separated string;
	// viper's decode hook may split it without trimming, or leave it as a
	// single entry, so split if needed and trim every origin.
	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		cfg.AllowedOrigins = strings.Split(cfg.AllowedOrigins[0], ",")
	}
	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("backend_base_url (OLLAMA_URL) must not be empty")
	}
	if cfg.ListenPort <= 0 {
		return nil, fmt.Errorf("listen_port (PORT) must be positive")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	if cfg.BridgeBufferSize <= 0 {
		cfg.BridgeBufferSize = 4
	}
	if cfg.IdleThresholdSeconds <= 0 {
		cfg.IdleThresholdSeconds = 60
	}

	return &cfg, nil
}
