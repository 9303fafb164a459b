package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Triflow   TriflowConfig   `yaml:"triflow"`
	Debug     bool            `yaml:"debug"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Debounce  DebounceConfig  `yaml:"debounce"`
	Execution ExecutionConfig `yaml:"execution"`
	Notify    NotifyConfig    `yaml:"notify"`
	Audit     AuditConfig     `yaml:"audit"`
	Publisher PublisherConfig `yaml:"publisher"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TriflowConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"-"`
}

type ExchangeConfig struct {
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	APISecret      string               `yaml:"api_secret"`
	Category       string               `yaml:"category"`
	OrderbookDepth int                  `yaml:"orderbook_depth"`
	Timeout        time.Duration        `yaml:"timeout"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// StrategyConfig holds the profit band and sizing. Percentages are in percent
// units (0.1 means 0.1%); CommissionRate is a fraction (0.001 means 0.1%).
type StrategyConfig struct {
	CommissionRate   float64  `yaml:"commission_rate"`
	MinProfitPercent float64  `yaml:"min_profit_percent"`
	MaxProfitPercent float64  `yaml:"max_profit_percent"`
	TargetNotional   float64  `yaml:"target_notional"`
	Anchors          []string `yaml:"anchors"`
}

type ScannerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

type DebounceConfig struct {
	Hold    time.Duration `yaml:"hold"`
	TTL     time.Duration `yaml:"ttl"`
	Backend string        `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type ExecutionConfig struct {
	SimulateDelay time.Duration `yaml:"simulate_delay"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	ChatID    string        `yaml:"chat_id"`
	ParseMode string        `yaml:"parse_mode"`
	Timeout   time.Duration `yaml:"timeout"`
}

type AuditConfig struct {
	Path       string       `yaml:"path"`
	MaxSizeMB  int          `yaml:"max_size_mb"`
	MaxBackups int          `yaml:"max_backups"`
	SQLite     SQLiteConfig `yaml:"sqlite"`
	S3         S3Config     `yaml:"s3"`
}

type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type PublisherConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Buffer  int      `yaml:"buffer"`
}

type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration the bot runs with when a key is absent
// from the YAML file.
func Default() Config {
	return Config{
		Triflow: TriflowConfig{Name: "triflow", Version: "dev"},
		Exchange: ExchangeConfig{
			BaseURL:        "https://api.bybit.com",
			Category:       "spot",
			OrderbookDepth: 50,
			Timeout:        10 * time.Second,
			RateLimit:      RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5},
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    32,
				MaxConnsPerHost: 16,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Strategy: StrategyConfig{
			CommissionRate:   0.001,
			MinProfitPercent: 0.1,
			MaxProfitPercent: 3.0,
			TargetNotional:   100,
			Anchors:          []string{"USDT", "BTC", "ETH"},
		},
		Scanner: ScannerConfig{Interval: 10 * time.Second, MaxConcurrency: 16},
		Debounce: DebounceConfig{
			Hold:    5 * time.Second,
			TTL:     60 * time.Second,
			Backend: "memory",
			Redis:   RedisConfig{Prefix: "triflow:route"},
		},
		Execution: ExecutionConfig{SimulateDelay: time.Second},
		Notify: NotifyConfig{Telegram: TelegramConfig{
			BaseURL:   "https://api.telegram.org",
			ParseMode: "HTML",
			Timeout:   10 * time.Second,
		}},
		Audit: AuditConfig{
			Path:      "triangle_log.csv",
			MaxSizeMB: 100,
			SQLite:    SQLiteConfig{Path: "data/triflow.db"},
		},
		Publisher: PublisherConfig{Kafka: KafkaConfig{Topic: "triflow.opportunities", Buffer: 256}},
		Metrics:   MetricsConfig{Prometheus: PrometheusConfig{Listen: "0.0.0.0:2112"}},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// LoadConfig reads path, or its config.<APP_ENV>.yml sibling when present,
// over Default and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	env := AppEnvironment()
	path = ResolvePath(path, env)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Triflow.Environment = env
	applyEnv(&config)
	normalize(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv lets secrets live in the environment (or a .env file) rather than the YAML.
func applyEnv(config *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	override(&config.Exchange.APIKey, "BYBIT_API_KEY")
	override(&config.Exchange.APISecret, "BYBIT_API_SECRET")
	override(&config.Notify.Telegram.Token, "TELEGRAM_TOKEN")
	override(&config.Notify.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	override(&config.Debounce.Redis.Addr, "REDIS_ADDR")
	if config.Audit.S3.Enabled {
		override(&config.Audit.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
		override(&config.Audit.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
		override(&config.Audit.S3.Region, "AWS_REGION")
	}
}

func normalize(config *Config) {
	anchors := make([]string, 0, len(config.Strategy.Anchors))
	seen := make(map[string]struct{}, len(config.Strategy.Anchors))
	for _, a := range config.Strategy.Anchors {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		anchors = append(anchors, a)
	}
	config.Strategy.Anchors = anchors
	config.Debounce.Backend = strings.ToLower(strings.TrimSpace(config.Debounce.Backend))
	config.Audit.S3.Bucket = strings.TrimSpace(config.Audit.S3.Bucket)
}

func validateConfig(cfg *Config) error {
	if cfg.Triflow.Name == "" {
		return fmt.Errorf("triflow.name is required")
	}
	if cfg.Debug && IsProductionLike(cfg.Triflow.Environment) {
		return fmt.Errorf("debug mode is not allowed in %s", cfg.Triflow.Environment)
	}

	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required (or BYBIT_API_KEY/BYBIT_API_SECRET)")
	}
	if cfg.Exchange.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("exchange.rate_limit.requests_per_second must be greater than 0")
	}

	s := cfg.Strategy
	if s.CommissionRate < 0 || s.CommissionRate >= 1 {
		return fmt.Errorf("strategy.commission_rate must be in [0, 1)")
	}
	if s.MinProfitPercent > s.MaxProfitPercent {
		return fmt.Errorf("strategy.min_profit_percent must not exceed strategy.max_profit_percent")
	}
	if s.TargetNotional <= 0 {
		return fmt.Errorf("strategy.target_notional must be greater than 0")
	}
	if len(s.Anchors) == 0 {
		return fmt.Errorf("strategy.anchors must list at least one currency")
	}

	if cfg.Scanner.Interval <= 0 {
		return fmt.Errorf("scanner.interval must be greater than 0")
	}
	if cfg.Scanner.MaxConcurrency <= 0 {
		return fmt.Errorf("scanner.max_concurrency must be greater than 0")
	}

	if cfg.Debounce.Hold <= 0 {
		return fmt.Errorf("debounce.hold must be greater than 0")
	}
	if cfg.Debounce.TTL <= cfg.Scanner.Interval {
		return fmt.Errorf("debounce.ttl must be greater than scanner.interval")
	}
	switch cfg.Debounce.Backend {
	case "memory":
	case "redis":
		if cfg.Debounce.Redis.Addr == "" {
			return fmt.Errorf("debounce.redis.addr is required when the redis backend is selected")
		}
	default:
		return fmt.Errorf("debounce.backend '%s' is invalid", cfg.Debounce.Backend)
	}

	if t := cfg.Notify.Telegram; t.Enabled && (t.Token == "" || t.ChatID == "") {
		return fmt.Errorf("notify.telegram.token and notify.telegram.chat_id are required when telegram is enabled")
	}

	if cfg.Audit.Path == "" {
		return fmt.Errorf("audit.path is required")
	}
	if cfg.Audit.SQLite.Enabled && cfg.Audit.SQLite.Path == "" {
		return fmt.Errorf("audit.sqlite.path is required when sqlite is enabled")
	}
	if cfg.Audit.S3.Enabled {
		if cfg.Audit.S3.Bucket == "" {
			return fmt.Errorf("audit.s3.bucket is required when S3 is enabled")
		}
		if cfg.Audit.S3.Region == "" {
			return fmt.Errorf("audit.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Audit.S3.Bucket) {
			return fmt.Errorf("audit.s3.bucket '%s' is invalid", cfg.Audit.S3.Bucket)
		}
	}

	if k := cfg.Publisher.Kafka; k.Enabled && (len(k.Brokers) == 0 || k.Topic == "") {
		return fmt.Errorf("publisher.kafka.brokers and publisher.kafka.topic are required when kafka is enabled")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
