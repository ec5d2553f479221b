package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/metercore/metercore/config"
	"github.com/metercore/metercore/domain/credential"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metercore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "database:\n  driver: memory\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.RateLimit.Default.PerMinute != 60 {
		t.Errorf("Default.PerMinute = %d, want 60", cfg.RateLimit.Default.PerMinute)
	}
	if cfg.Usage.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.Usage.BatchSize)
	}
	if cfg.Auth.KeyHeader != "X-API-Key" {
		t.Errorf("KeyHeader = %q, want X-API-Key", cfg.Auth.KeyHeader)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  dsn: /tmp/usage.db
rate_limit:
  default:
    per_minute: 10
    per_hour: 100
    per_day: 1000
  overrides:
    - key: vip-key
      per_minute: 100
      per_hour: 1000
      per_day: 10000
usage:
  batch_size: 50
  flush_interval: 5s
  retention: 720h
pricing:
  kinds:
    audio_conversion:
      base_price: 0.005
      price_per_mb: 0.001
      price_per_minute: 0.01
      discounts:
        - threshold: 100
          percent: 10
        - threshold: 1000
          percent: 25
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Usage.Retention != 720*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Usage.Retention)
	}

	table := cfg.RateLimitTable()
	if table.Default.PerMinute != 10 {
		t.Errorf("Default.PerMinute = %d, want 10", table.Default.PerMinute)
	}
	// The raw override key is digested at load time.
	policy, ok := table.Overrides[credential.Digest("vip-key")]
	if !ok {
		t.Fatal("override not keyed by credential digest")
	}
	if policy.PerMinute != 100 {
		t.Errorf("override PerMinute = %d, want 100", policy.PerMinute)
	}

	pt := cfg.PricingTable()
	rule := pt.RuleFor("audio_conversion")
	if rule.BasePrice != 0.005 {
		t.Errorf("BasePrice = %v, want 0.005", rule.BasePrice)
	}
	if len(rule.Discounts) != 2 || rule.Discounts[1].Percent != 25 {
		t.Errorf("Discounts = %+v, want two tiers", rule.Discounts)
	}
}

func TestLoad_DefaultPricingRule(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "database:\n  driver: memory\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// With pricing absent the fallback rule kicks in.
	d := cfg.Pricing.Default
	if d.BasePrice != 0.01 || d.PricePerMB != 0.002 || d.PricePerMinute != 0.02 {
		t.Errorf("Default = %+v, want fallback rule", d)
	}

	// An explicit default rule is kept, even one that only sets discounts.
	cfg, err = config.Load(writeConfig(t, `
pricing:
  default:
    base_price: 0.5
    discounts:
      - threshold: 10
        percent: 5
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pricing.Default.BasePrice != 0.5 {
		t.Errorf("BasePrice = %v, want 0.5", cfg.Pricing.Default.BasePrice)
	}
	if len(cfg.Pricing.Default.Discounts) != 1 {
		t.Errorf("Discounts = %+v, want the configured tier", cfg.Pricing.Default.Discounts)
	}
}

func TestLoad_RejectsBadDriver(t *testing.T) {
	_, err := config.Load(writeConfig(t, "database:\n  driver: postgres\n"))
	if err == nil || !strings.Contains(err.Error(), "driver") {
		t.Errorf("Load() error = %v, want driver rejection", err)
	}
}

func TestLoad_RejectsOverrideWithKeyAndDigest(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
rate_limit:
  overrides:
    - key: raw
      digest: mk_0123456789abcdef
      per_minute: 1
`))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("Load() error = %v, want mutual exclusion failure", err)
	}
}

func TestLoad_RejectsDescendingDiscounts(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
pricing:
  kinds:
    k:
      base_price: 0.01
      discounts:
        - threshold: 1000
          percent: 10
        - threshold: 100
          percent: 25
`))
	if err == nil || !strings.Contains(err.Error(), "ascend") {
		t.Errorf("Load() error = %v, want threshold ordering failure", err)
	}
}

func TestLoad_RejectsNegativePrice(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
pricing:
  kinds:
    k:
      base_price: -0.01
`))
	if err == nil || !strings.Contains(err.Error(), "negative") {
		t.Errorf("Load() error = %v, want negative price rejection", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("METERCORE_SERVER_PORT", "9999")
	t.Setenv("METERCORE_LOG_LEVEL", "debug")

	cfg, err := config.Load(writeConfig(t, "server:\n  port: 8080\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("METERCORE_DATABASE_DSN", "/data/usage.db")
	t.Setenv("METERCORE_DATABASE_DRIVER", "sqlite")

	if !config.HasEnvConfig() {
		t.Fatal("HasEnvConfig() = false, want true")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Database.DSN != "/data/usage.db" {
		t.Errorf("DSN = %q, want /data/usage.db", cfg.Database.DSN)
	}
}
