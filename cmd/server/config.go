// Package main provides the TaskHive server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/task-hive/taskhive/internal/notify"
)

// Config represents the server configuration. Durations are YAML
// strings in time.ParseDuration syntax; Validate resolves them.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database DatabaseConfig    `yaml:"database"`
	Auth     AuthConfig        `yaml:"auth"`
	Janitor  JanitorConfig     `yaml:"janitor"`
	Mail     notify.MailConfig `yaml:"mail"`
	Verbose  bool              `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address        string `yaml:"address"`         // API listen address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus listen address (default: :9090)
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file path
}

// AuthConfig contains token and lockout settings. The JWT secret is
// never read from the config file; it comes from TASKHIVE_JWT_SECRET.
type AuthConfig struct {
	AccessTokenTTL   string `yaml:"access_token_ttl"`  // default: 15m
	RefreshTokenTTL  string `yaml:"refresh_token_ttl"` // default: 168h
	LockoutThreshold int    `yaml:"lockout_threshold"` // default: 5
	LockoutDuration  string `yaml:"lockout_duration"`  // default: 30m
	RateLimitPerIP   int    `yaml:"rate_limit_per_ip"`
	RateLimitPerUser int    `yaml:"rate_limit_per_user"`

	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	lockoutDuration time.Duration
}

// JanitorConfig controls the background sweep loop that expires
// invites, purges archived workspaces, and drops stale refresh tokens.
type JanitorConfig struct {
	Interval string `yaml:"interval"` // sweep interval (default: 1h)

	interval time.Duration
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	// Defaults always validate; this resolves the duration strings.
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9090"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/taskhive.db"
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "15m"
	}
	if c.Auth.RefreshTokenTTL == "" {
		c.Auth.RefreshTokenTTL = "168h" // 7 days
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "30m"
	}
	if c.Janitor.Interval == "" {
		c.Janitor.Interval = "1h"
	}
}

// Validate checks the configuration for errors and resolves duration
// strings.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	var err error
	if c.Auth.accessTokenTTL, err = time.ParseDuration(c.Auth.AccessTokenTTL); err != nil {
		return fmt.Errorf("auth.access_token_ttl: %w", err)
	}
	if c.Auth.refreshTokenTTL, err = time.ParseDuration(c.Auth.RefreshTokenTTL); err != nil {
		return fmt.Errorf("auth.refresh_token_ttl: %w", err)
	}
	if c.Auth.lockoutDuration, err = time.ParseDuration(c.Auth.LockoutDuration); err != nil {
		return fmt.Errorf("auth.lockout_duration: %w", err)
	}
	if c.Janitor.interval, err = time.ParseDuration(c.Janitor.Interval); err != nil {
		return fmt.Errorf("janitor.interval: %w", err)
	}
	if c.Janitor.interval < time.Minute {
		return fmt.Errorf("janitor.interval must be at least 1m")
	}

	if err := c.Mail.Validate(); err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	return nil
}

// TTLs returns the resolved access, refresh, and lockout durations.
func (c *AuthConfig) TTLs() (access, refresh, lockout time.Duration) {
	return c.accessTokenTTL, c.refreshTokenTTL, c.lockoutDuration
}

// SweepInterval returns the resolved janitor interval.
func (c *JanitorConfig) SweepInterval() time.Duration {
	return c.interval
}
