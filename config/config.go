// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/cost"
	"github.com/deepalweb/travelbuddy-sub001/domain/tier"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig          `yaml:"server"`
	Database    DatabaseConfig        `yaml:"database"`
	Enforcement EnforcementConfig     `yaml:"enforcement"`
	Admin       AdminConfig           `yaml:"admin"`
	Cost        CostConfig            `yaml:"cost"`
	Tiers       map[string]TierConfig `yaml:"tiers"`
	Logging     LoggingConfig         `yaml:"logging"`
	Metrics     MetricsConfig         `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the storage backend.
// Driver "sqlite" selects the durable stores; "memory" selects the
// in-process development fallback.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// EnforcementConfig configures policy enforcement.
type EnforcementConfig struct {
	Enabled       *bool         `yaml:"enabled"`         // default true
	SweepInterval time.Duration `yaml:"sweep_interval"`  // stale rate bucket sweep cadence
	BucketIdleAge time.Duration `yaml:"bucket_idle_age"` // idle age before a bucket is swept
}

// AdminConfig configures the admin bearer token.
// TokenHash is a bcrypt hash of the token; empty disables the gate
// (development mode).
type AdminConfig struct {
	TokenHash       string `yaml:"token_hash"`
	RequireForCosts bool   `yaml:"require_for_costs"`
}

// CostConfig holds the startup defaults for cost accounting.
// The persisted store takes precedence once a mutation has been saved.
type CostConfig struct {
	IncludeErrors bool               `yaml:"include_errors"`
	Rates         map[string]float64 `yaml:"rates"` // api -> USD per call
}

// TierConfig configures one subscription tier.
type TierConfig struct {
	APIs     map[string]PolicyConfig `yaml:"apis"`
	Features FeaturesConfig          `yaml:"features"`
}

// PolicyConfig configures admission limits for one tier+api pair.
type PolicyConfig struct {
	Daily     int64 `yaml:"daily"`
	PerMinute int   `yaml:"per_minute"`
}

// FeaturesConfig configures tier capability caps.
type FeaturesConfig struct {
	MaxRadiusKm float64 `yaml:"max_radius_km"`
	MaxResults  int     `yaml:"max_results"`
	AIPlanner   bool    `yaml:"ai_planner"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// EnforcementEnabled returns the global enforcement flag (default true).
func (c *Config) EnforcementEnabled() bool {
	if c.Enforcement.Enabled == nil {
		return true
	}
	return *c.Enforcement.Enabled
}

// TierTable converts the configured tiers to the domain policy table.
// An empty tiers block yields the built-in defaults.
func (c *Config) TierTable() tier.Table {
	if len(c.Tiers) == 0 {
		return tier.Defaults()
	}

	table := make(tier.Table, len(c.Tiers))
	for name, tc := range c.Tiers {
		tp := tier.TierPolicy{
			APIs: make(map[usage.API]tier.Policy, len(tc.APIs)),
			Features: tier.Features{
				MaxRadiusKm: tc.Features.MaxRadiusKm,
				MaxResults:  tc.Features.MaxResults,
				AIPlanner:   tc.Features.AIPlanner,
			},
		}
		for api, pc := range tc.APIs {
			tp.APIs[usage.API(api)] = tier.Policy{Daily: pc.Daily, PerMinute: pc.PerMinute}
		}
		table[tier.Tier(name)] = tp
	}
	return table
}

// CostDefaults converts the configured cost block to the domain config.
// An empty rates block yields the built-in defaults.
func (c *Config) CostDefaults() cost.Config {
	if len(c.Cost.Rates) == 0 {
		return cost.DefaultConfig()
	}

	cfg := cost.Config{
		IncludeErrors: c.Cost.IncludeErrors,
		Rates:         make(map[usage.API]float64, len(c.Cost.Rates)),
	}
	for api, rate := range c.Cost.Rates {
		cfg.Rates[usage.API(api)] = rate
	}
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	METERD_SERVER_HOST         - Server host (default: 0.0.0.0)
//	METERD_SERVER_PORT         - Server port (default: 8080)
//	METERD_DATABASE_DRIVER     - Storage backend: sqlite or memory
//	METERD_DATABASE_DSN        - Database path (default: meterd.db)
//	METERD_ENFORCEMENT_ENABLED - Global enforcement flag (default: true)
//	METERD_ADMIN_TOKEN_HASH    - bcrypt hash of the admin bearer token
//	METERD_LOG_LEVEL           - Log level: debug, info, warn, error
//	METERD_LOG_FORMAT          - Log format: json or console
//	METERD_METRICS_ENABLED     - Enable /metrics endpoint
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables when the file does not exist.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies METERD_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("METERD_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("METERD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("METERD_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("METERD_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("METERD_ENFORCEMENT_ENABLED"); v != "" {
		b := parseBool(v)
		cfg.Enforcement.Enabled = &b
	}
	if v := os.Getenv("METERD_ADMIN_TOKEN_HASH"); v != "" {
		cfg.Admin.TokenHash = v
	}
	if v := os.Getenv("METERD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METERD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("METERD_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "meterd.db"
	}

	if cfg.Enforcement.SweepInterval == 0 {
		cfg.Enforcement.SweepInterval = 10 * time.Minute
	}
	if cfg.Enforcement.BucketIdleAge == 0 {
		cfg.Enforcement.BucketIdleAge = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	for name, tc := range cfg.Tiers {
		if !tier.Known(name) {
			return fmt.Errorf("tiers.%s: unknown tier", name)
		}
		for api, pc := range tc.APIs {
			if !usage.ValidAPI(api) {
				return fmt.Errorf("tiers.%s.apis.%s: unknown api", name, api)
			}
			if pc.Daily < 0 {
				return fmt.Errorf("tiers.%s.apis.%s: daily must be >= 0", name, api)
			}
			if pc.PerMinute < 0 {
				return fmt.Errorf("tiers.%s.apis.%s: per_minute must be >= 0", name, api)
			}
		}
	}

	for api, rate := range cfg.Cost.Rates {
		if !usage.ValidAPI(api) {
			return fmt.Errorf("cost.rates.%s: unknown api", api)
		}
		if rate < 0 {
			return fmt.Errorf("cost.rates.%s: rate must be >= 0", api)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}
