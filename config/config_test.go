package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig writes content to a config file in a per-test directory and
// returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const minimalConfig = `triflow:
  name: "TestApp"
  version: "1.0"
exchange:
  api_key: "key"
  api_secret: "secret"
strategy:
  anchors: ["usdt", "BTC", "USDT"]
scanner:
  interval: 2s
debounce:
  hold: 3s
  ttl: 30s
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")

	cfg, err := LoadConfig(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Triflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Triflow.Name)
	}
	if cfg.Scanner.Interval != 2*time.Second {
		t.Errorf("unexpected interval: %s", cfg.Scanner.Interval)
	}
	if cfg.Debounce.Hold != 3*time.Second {
		t.Errorf("unexpected hold: %s", cfg.Debounce.Hold)
	}
	if got := strings.Join(cfg.Strategy.Anchors, ","); got != "USDT,BTC" {
		t.Errorf("anchors not normalized: %s", got)
	}
	if cfg.Strategy.CommissionRate != 0.001 || cfg.Strategy.TargetNotional != 100 {
		t.Errorf("defaults not applied: %+v", cfg.Strategy)
	}
	if cfg.Strategy.MinProfitPercent != 0.1 || cfg.Strategy.MaxProfitPercent != 3.0 {
		t.Errorf("unexpected band: %+v", cfg.Strategy)
	}
}

func TestLoadConfigEnvCredentials(t *testing.T) {
	content := strings.Replace(minimalConfig, "  api_key: \"key\"\n  api_secret: \"secret\"\n", "", 1)
	t.Setenv("BYBIT_API_KEY", " env-key ")
	t.Setenv("BYBIT_API_SECRET", "env-secret")

	cfg, err := LoadConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Exchange.APIKey != "env-key" || cfg.Exchange.APISecret != "env-secret" {
		t.Fatalf("env credentials not applied: %+v", cfg.Exchange)
	}
}

func TestLoadConfigMissingCredentialsIsFatal(t *testing.T) {
	content := strings.Replace(minimalConfig, "  api_key: \"key\"\n  api_secret: \"secret\"\n", "", 1)
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")

	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"inverted band", func(c *Config) { c.Strategy.MinProfitPercent = 5 }, false},
		{"commission too high", func(c *Config) { c.Strategy.CommissionRate = 1 }, false},
		{"zero target", func(c *Config) { c.Strategy.TargetNotional = 0 }, false},
		{"no anchors", func(c *Config) { c.Strategy.Anchors = nil }, false},
		{"ttl not above interval", func(c *Config) { c.Debounce.TTL = c.Scanner.Interval }, false},
		{"redis without addr", func(c *Config) { c.Debounce.Backend = "redis" }, false},
		{"unknown backend", func(c *Config) { c.Debounce.Backend = "memcached" }, false},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true }, false},
		{"kafka without brokers", func(c *Config) { c.Publisher.Kafka.Enabled = true }, false},
		{"s3 bad bucket", func(c *Config) {
			c.Audit.S3 = S3Config{Enabled: true, Bucket: "Bad_Bucket", Region: "eu-west-1"}
		}, false},
	}
	for _, c := range cases {
		cfg := Default()
		cfg.Exchange.APIKey = "k"
		cfg.Exchange.APISecret = "s"
		c.mutate(&cfg)
		err := validateConfig(&cfg)
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}

func TestLoadConfigEnvironmentFile(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")
	t.Setenv("APP_ENV", "stag")

	path := writeTempConfig(t, minimalConfig)
	staging := strings.Replace(minimalConfig, `name: "TestApp"`, `name: "StagingApp"`, 1)
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "config.staging.yml"), []byte(staging), 0o600); err != nil {
		t.Fatalf("write staging file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Triflow.Name != "StagingApp" || cfg.Triflow.Environment != EnvironmentStaging {
		t.Fatalf("environment file not used: %+v", cfg.Triflow)
	}
}

func TestDebugRefusedInProduction(t *testing.T) {
	cfg := Default()
	cfg.Exchange.APIKey = "k"
	cfg.Exchange.APISecret = "s"
	cfg.Debug = true
	cfg.Triflow.Environment = EnvironmentProduction
	if err := validateConfig(&cfg); err == nil {
		t.Fatalf("expected debug to be refused in production")
	}
	cfg.Triflow.Environment = EnvironmentDevelopment
	if err := validateConfig(&cfg); err != nil {
		t.Fatalf("debug should be allowed in development: %v", err)
	}
}
