// Package config provides configuration loading, validation, and hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metercore/metercore/domain/credential"
	"github.com/metercore/metercore/domain/pricing"
	"github.com/metercore/metercore/domain/ratelimit"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Usage     UsageConfig     `yaml:"usage"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the usage store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures identity extraction and the reporting API gate.
type AuthConfig struct {
	// KeyHeader and KeyQueryParam locate the raw API key. The key is
	// digested immediately; only the digest is kept.
	KeyHeader     string `yaml:"key_header"`      // default: X-API-Key
	KeyQueryParam string `yaml:"key_query_param"` // default: api_key

	// Identity headers. All optional on requests.
	CustomerHeader string `yaml:"customer_header"` // default: X-Customer-ID
	TeamHeader     string `yaml:"team_header"`     // default: X-Team-ID
	OrgHeader      string `yaml:"org_header"`      // default: X-Organization

	// AdminTokenHash is the bcrypt hash of the token required by the
	// reporting API. Empty disables the gate (development only).
	AdminTokenHash string `yaml:"admin_token_hash"`
}

// RateLimitConfig configures admission control.
type RateLimitConfig struct {
	Enabled       bool             `yaml:"enabled"`
	Default       PolicyConfig     `yaml:"default"`
	Overrides     []OverrideConfig `yaml:"overrides"`
	Shards        int              `yaml:"shards"`
	SweepInterval time.Duration    `yaml:"sweep_interval"`
	IdleTTL       time.Duration    `yaml:"idle_ttl"`
}

// PolicyConfig holds the three ceilings. Zero means unlimited.
type PolicyConfig struct {
	PerMinute int64 `yaml:"per_minute"`
	PerHour   int64 `yaml:"per_hour"`
	PerDay    int64 `yaml:"per_day"`
}

// OverrideConfig binds a policy to one credential. Key takes a raw API key
// (digested at load time); Digest takes an already-digested credential.
type OverrideConfig struct {
	Key       string `yaml:"key,omitempty"`
	Digest    string `yaml:"digest,omitempty"`
	PerMinute int64  `yaml:"per_minute"`
	PerHour   int64  `yaml:"per_hour"`
	PerDay    int64  `yaml:"per_day"`
}

// UsageConfig configures the buffered usage writer and retention.
type UsageConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	Retention     time.Duration `yaml:"retention"` // 0 = keep forever
}

// PricingConfig configures the cost model.
type PricingConfig struct {
	Default RuleConfig            `yaml:"default"`
	Kinds   map[string]RuleConfig `yaml:"kinds"`
}

// RuleConfig prices one operation kind.
type RuleConfig struct {
	BasePrice      float64          `yaml:"base_price"`
	PricePerMB     float64          `yaml:"price_per_mb"`
	PricePerMinute float64          `yaml:"price_per_minute"`
	Discounts      []DiscountConfig `yaml:"discounts,omitempty"`
}

// DiscountConfig is one volume-discount step.
type DiscountConfig struct {
	Threshold int64   `yaml:"threshold"`
	Percent   float64 `yaml:"percent"`
}

// isZero reports whether no field of the rule is set. RuleConfig holds a
// slice, so it cannot be compared against its zero value directly.
func (r RuleConfig) isZero() bool {
	return r.BasePrice == 0 && r.PricePerMB == 0 && r.PricePerMinute == 0 && len(r.Discounts) == 0
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// Load reads and validates configuration from a YAML file, applying
// defaults and METERCORE_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from METERCORE_* environment variables
// alone (container deployments without a config file).
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasEnvConfig reports whether any METERCORE_* variable is set.
func HasEnvConfig() bool {
	for _, key := range []string{"METERCORE_DATABASE_DSN", "METERCORE_SERVER_PORT", "METERCORE_LOG_LEVEL"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func (c *Config) applyEnv() {
	if v := os.Getenv("METERCORE_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("METERCORE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("METERCORE_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("METERCORE_DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("METERCORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("METERCORE_ADMIN_TOKEN_HASH"); v != "" {
		c.Auth.AdminTokenHash = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "metercore.db"
	}

	if c.Auth.KeyHeader == "" {
		c.Auth.KeyHeader = "X-API-Key"
	}
	if c.Auth.KeyQueryParam == "" {
		c.Auth.KeyQueryParam = "api_key"
	}
	if c.Auth.CustomerHeader == "" {
		c.Auth.CustomerHeader = "X-Customer-ID"
	}
	if c.Auth.TeamHeader == "" {
		c.Auth.TeamHeader = "X-Team-ID"
	}
	if c.Auth.OrgHeader == "" {
		c.Auth.OrgHeader = "X-Organization"
	}

	if c.RateLimit.Default == (PolicyConfig{}) {
		c.RateLimit.Default = PolicyConfig{PerMinute: 60, PerHour: 1000, PerDay: 10000}
	}
	if c.RateLimit.Shards == 0 {
		c.RateLimit.Shards = 32
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = 5 * time.Minute
	}
	if c.RateLimit.IdleTTL == 0 {
		c.RateLimit.IdleTTL = 48 * time.Hour
	}

	if c.Usage.BatchSize == 0 {
		c.Usage.BatchSize = 100
	}
	if c.Usage.FlushInterval == 0 {
		c.Usage.FlushInterval = 10 * time.Second
	}
	if c.Usage.WriteTimeout == 0 {
		c.Usage.WriteTimeout = 30 * time.Second
	}

	if c.Pricing.Default.isZero() {
		// Conservative default rule for unrecognized kinds.
		c.Pricing.Default = RuleConfig{BasePrice: 0.01, PricePerMB: 0.002, PricePerMinute: 0.02}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver %q not supported (sqlite, memory)", c.Database.Driver)
	}
	for i, o := range c.RateLimit.Overrides {
		if o.Key == "" && o.Digest == "" {
			return fmt.Errorf("rate_limit.overrides[%d]: key or digest required", i)
		}
		if o.Key != "" && o.Digest != "" {
			return fmt.Errorf("rate_limit.overrides[%d]: key and digest are mutually exclusive", i)
		}
	}
	for kind, r := range c.Pricing.Kinds {
		if r.BasePrice < 0 || r.PricePerMB < 0 || r.PricePerMinute < 0 {
			return fmt.Errorf("pricing.kinds.%s: negative price", kind)
		}
		prev := int64(-1)
		for _, d := range r.Discounts {
			if d.Percent < 0 || d.Percent > 100 {
				return fmt.Errorf("pricing.kinds.%s: discount percent %v out of range", kind, d.Percent)
			}
			if d.Threshold <= prev {
				return fmt.Errorf("pricing.kinds.%s: discount thresholds must ascend", kind)
			}
			prev = d.Threshold
		}
	}
	return nil
}

// RateLimitTable builds the domain policy table. Raw keys in overrides are
// digested here so plaintext never leaves the config layer.
func (c *Config) RateLimitTable() ratelimit.Table {
	table := ratelimit.Table{
		Default:   ratelimit.Policy{PerMinute: c.RateLimit.Default.PerMinute, PerHour: c.RateLimit.Default.PerHour, PerDay: c.RateLimit.Default.PerDay},
		Overrides: make(map[string]ratelimit.Policy, len(c.RateLimit.Overrides)),
	}
	for _, o := range c.RateLimit.Overrides {
		digest := o.Digest
		if digest == "" {
			digest = credential.Digest(o.Key)
		}
		table.Overrides[digest] = ratelimit.Policy{PerMinute: o.PerMinute, PerHour: o.PerHour, PerDay: o.PerDay}
	}
	return table
}

// PricingTable builds the domain pricing table.
func (c *Config) PricingTable() pricing.Table {
	table := pricing.Table{
		Rules:   make(map[string]pricing.Rule, len(c.Pricing.Kinds)),
		Default: toRule(c.Pricing.Default),
	}
	for kind, r := range c.Pricing.Kinds {
		table.Rules[kind] = toRule(r)
	}
	return table
}

func toRule(r RuleConfig) pricing.Rule {
	rule := pricing.Rule{
		BasePrice:      r.BasePrice,
		PricePerMB:     r.PricePerMB,
		PricePerMinute: r.PricePerMinute,
	}
	for _, d := range r.Discounts {
		rule.Discounts = append(rule.Discounts, pricing.Discount{Threshold: d.Threshold, Percent: d.Percent})
	}
	return rule
}
