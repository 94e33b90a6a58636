// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Frontier FrontierConfig `mapstructure:"frontier"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the worker pool and termination policy.
type CrawlerConfig struct {
	Workers            int      `mapstructure:"workers"`
	RootURL            string   `mapstructure:"root_url"`
	SeedURLs           []string `mapstructure:"seed_urls"`
	SeedResource       string   `mapstructure:"seed_resource"`
	SeedCount          int      `mapstructure:"seed_count"`
	UserAgent          string   `mapstructure:"user_agent"`
	IdleTimeoutSeconds int      `mapstructure:"idle_timeout_seconds"`
	PollIntervalMs     int      `mapstructure:"poll_interval_ms"`
	ShutdownSeconds    int      `mapstructure:"shutdown_seconds"`
}

// HTTPConfig configures fetch timeout, politeness, and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	DelayMs        int     `mapstructure:"delay_ms"`
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffBase    float64 `mapstructure:"backoff_base"`
}

// FrontierConfig selects and configures the frontier backing store.
type FrontierConfig struct {
	// Backend is "redis" or "memory".
	Backend   string `mapstructure:"backend"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PostgresConfig controls the export sink.
type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	BatchSize int    `mapstructure:"batch_size"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HOLOCRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.workers", 8)
	v.SetDefault("crawler.root_url", "https://swapi.dev/api/")
	v.SetDefault("crawler.seed_resource", "people")
	v.SetDefault("crawler.seed_count", 100)
	v.SetDefault("crawler.user_agent", "holocron/1.0 (educational)")
	v.SetDefault("crawler.idle_timeout_seconds", 30)
	v.SetDefault("crawler.poll_interval_ms", 1000)
	v.SetDefault("crawler.shutdown_seconds", 30)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.delay_ms", 500)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base", 2.0)
	v.SetDefault("frontier.backend", "redis")
	v.SetDefault("frontier.redis_addr", "localhost:6379")
	v.SetDefault("frontier.redis_db", 0)
	v.SetDefault("frontier.key_prefix", "holocron")
	v.SetDefault("postgres.table", "holocron_records")
	v.SetDefault("postgres.batch_size", 100)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.RootURL == "" {
		return fmt.Errorf("crawler.root_url is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.HTTP.BackoffBase < 1 {
		return fmt.Errorf("http.backoff_base must be >= 1")
	}
	switch c.Frontier.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("frontier.backend must be redis or memory, got %q", c.Frontier.Backend)
	}
	if c.Frontier.Backend == "redis" && c.Frontier.RedisAddr == "" {
		return fmt.Errorf("frontier.redis_addr is required for the redis backend")
	}
	return nil
}

// Seeds returns the configured seed URLs, generating the default range of
// resource URLs when none are given.
func (c Config) Seeds() []string {
	if len(c.Crawler.SeedURLs) > 0 {
		return c.Crawler.SeedURLs
	}
	root := strings.TrimSuffix(c.Crawler.RootURL, "/")
	seeds := make([]string, 0, c.Crawler.SeedCount)
	for id := 1; id <= c.Crawler.SeedCount; id++ {
		seeds = append(seeds, fmt.Sprintf("%s/%s/%d/", root, c.Crawler.SeedResource, id))
	}
	return seeds
}

// IdleTimeout returns the idle-timeout duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.Crawler.IdleTimeoutSeconds) * time.Second
}

// PollInterval returns the empty-frontier poll sleep.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Crawler.PollIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the bounded worker-exit wait.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Crawler.ShutdownSeconds) * time.Second
}

// HTTPTimeout returns the per-request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PolitenessDelay returns the fixed inter-request delay.
func (c Config) PolitenessDelay() time.Duration {
	return time.Duration(c.HTTP.DelayMs) * time.Millisecond
}
