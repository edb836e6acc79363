// Package config defines the arbscan configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Mode       string         `toml:"mode"`
	LogLevel   string         `toml:"log_level"`
	Polymarket PlatformConfig `toml:"polymarket"`
	Kalshi     PlatformConfig `toml:"kalshi"`
	Upstream   UpstreamConfig `toml:"upstream"`
	Scan       ScanConfig     `toml:"scan"`
	Matching   MatchingConfig `toml:"matching"`
	Postgres   PostgresConfig `toml:"postgres"`
	Redis      RedisConfig    `toml:"redis"`
	S3         S3Config       `toml:"s3"`
	Server     ServerConfig   `toml:"server"`
	Notify     NotifyConfig   `toml:"notify"`
}

// PlatformConfig addresses one venue on the market-data API.
type PlatformConfig struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	PageSize int    `toml:"page_size"`
}

// UpstreamConfig bounds outbound market-data traffic. RateLimit requests are
// allowed per RateWindow for each platform; zero disables throttling.
type UpstreamConfig struct {
	Timeout       duration `toml:"timeout"`
	RateLimit     int      `toml:"rate_limit"`
	RateWindow    duration `toml:"rate_window"`
	ResetInterval duration `toml:"reset_interval"`
}

// ScanConfig tunes the scan pipeline and holds the request defaults.
type ScanConfig struct {
	Status      string   `toml:"status"`
	BatchSize   int      `toml:"batch_size"`
	PairTimeout duration `toml:"pair_timeout"`
	PersistTopN int      `toml:"persist_top_n"`
	Interval    duration `toml:"interval"`
	FeePercent  float64  `toml:"fee_percent"`
	Staleness   duration `toml:"staleness"`
	Lookback    duration `toml:"lookback"`

	Category              string  `toml:"category"`
	MinSpreadPercent      float64 `toml:"min_spread_percent"`
	MaxMarketsPerPlatform int     `toml:"max_markets_per_platform"`
	MinMatchScore         float64 `toml:"min_match_score"`
}

// MatchingConfig holds the scorer weights and dictionary location. An empty
// DictionaryPath selects the built-in dictionary.
type MatchingConfig struct {
	DictionaryPath   string  `toml:"dictionary_path"`
	TokenWeight      float64 `toml:"token_weight"`
	EntityWeight     float64 `toml:"entity_weight"`
	DateWeight       float64 `toml:"date_weight"`
	NeutralDateScore float64 `toml:"neutral_date_score"`
	CacheSize        int64   `toml:"cache_size"`
}

// PostgresConfig holds the opportunity store connection.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the shared rate limiter and event channel connection.
type RedisConfig struct {
	Enabled       bool   `toml:"enabled"`
	Addr          string `toml:"addr"`
	Password      string `toml:"password"`
	DB            int    `toml:"db"`
	PoolSize      int    `toml:"pool_size"`
	MaxRetries    int    `toml:"max_retries"`
	TLSEnabled    bool   `toml:"tls_enabled"`
	KeyPrefix     string `toml:"key_prefix"`
	EventsChannel string `toml:"events_channel"`
}

// S3Config holds the scan archive bucket.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. An empty APIKey leaves the API
// open.
type ServerConfig struct {
	Port            int      `toml:"port"`
	APIKey          string   `toml:"api_key"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// NotifyConfig holds the watch-mode alert channels. Alerts are sent for
// opportunities at or above MinSpreadPercent; a match key is not alerted
// again within Cooldown unless its spread widens.
type NotifyConfig struct {
	TelegramToken    string   `toml:"telegram_token"`
	TelegramChatID   string   `toml:"telegram_chat_id"`
	DiscordWebhook   string   `toml:"discord_webhook"`
	MinSpreadPercent float64  `toml:"min_spread_percent"`
	Cooldown         duration `toml:"cooldown"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const defaultBaseURL = "https://api.domeapi.io/v1"

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Mode:     ModeServe,
		LogLevel: "info",
		Polymarket: PlatformConfig{
			BaseURL:  defaultBaseURL,
			PageSize: 100,
		},
		Kalshi: PlatformConfig{
			BaseURL:  defaultBaseURL,
			PageSize: 100,
		},
		Upstream: UpstreamConfig{
			Timeout:       duration{15 * time.Second},
			RateLimit:     10,
			RateWindow:    duration{time.Second},
			ResetInterval: duration{time.Hour},
		},
		Scan: ScanConfig{
			Status:                "open",
			BatchSize:             5,
			PairTimeout:           duration{10 * time.Second},
			PersistTopN:           20,
			Interval:              duration{5 * time.Minute},
			FeePercent:            2.0,
			Staleness:             duration{2 * time.Hour},
			Lookback:              duration{24 * time.Hour},
			Category:              "all",
			MinSpreadPercent:      1.0,
			MaxMarketsPerPlatform: 200,
			MinMatchScore:         60,
		},
		Matching: MatchingConfig{
			TokenWeight:      0.5,
			EntityWeight:     0.3,
			DateWeight:       0.2,
			NeutralDateScore: 50,
			CacheSize:        10_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
			User:          "arbscan",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			KeyPrefix:     "arbscan",
			EventsChannel: "arbscan:scans",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "arbscan",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       30,
			RateWindow:      duration{time.Minute},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Notify: NotifyConfig{
			MinSpreadPercent: 5,
			Cooldown:         duration{30 * time.Minute},
		},
	}
}

// Operating modes.
const (
	ModeServe = "serve"
	ModeScan  = "scan"
	ModeWatch = "watch"
)

var validModes = map[string]bool{
	ModeServe: true,
	ModeScan:  true,
	ModeWatch: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns one error
// listing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: serve, scan, watch)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	platforms := []struct {
		name string
		cfg  PlatformConfig
	}{{"polymarket", c.Polymarket}, {"kalshi", c.Kalshi}}
	for _, pl := range platforms {
		name, p := pl.name, pl.cfg
		if p.BaseURL == "" {
			add("%s: base_url must not be empty", name)
		}
		if p.APIKey == "" {
			add("%s: api_key must not be empty", name)
		}
		if p.PageSize < 1 || p.PageSize > 500 {
			add("%s: page_size must be 1-500, got %d", name, p.PageSize)
		}
	}

	if c.Upstream.Timeout.Duration <= 0 {
		add("upstream: timeout must be > 0")
	}
	if c.Upstream.RateLimit < 0 {
		add("upstream: rate_limit must be >= 0")
	}
	if c.Upstream.RateLimit > 0 && c.Upstream.RateWindow.Duration <= 0 {
		add("upstream: rate_window must be > 0 when rate_limit is set")
	}

	if c.Scan.BatchSize < 1 {
		add("scan: batch_size must be >= 1")
	}
	if c.Scan.PairTimeout.Duration <= 0 {
		add("scan: pair_timeout must be > 0")
	}
	if c.Scan.PersistTopN < 0 {
		add("scan: persist_top_n must be >= 0")
	}
	if strings.EqualFold(c.Mode, ModeWatch) && c.Scan.Interval.Duration <= 0 {
		add("scan: interval must be > 0 in watch mode")
	}
	if c.Scan.FeePercent < 0 {
		add("scan: fee_percent must be >= 0")
	}
	if c.Scan.Staleness.Duration <= 0 {
		add("scan: staleness must be > 0")
	}
	if c.Scan.Lookback.Duration < c.Scan.Staleness.Duration {
		add("scan: lookback must be >= staleness")
	}
	if c.Scan.MaxMarketsPerPlatform < 1 || c.Scan.MaxMarketsPerPlatform > 500 {
		add("scan: max_markets_per_platform must be 1-500, got %d", c.Scan.MaxMarketsPerPlatform)
	}
	if c.Scan.MinMatchScore < 0 || c.Scan.MinMatchScore > 100 {
		add("scan: min_match_score must be 0-100, got %v", c.Scan.MinMatchScore)
	}

	m := c.Matching
	if m.TokenWeight < 0 || m.EntityWeight < 0 || m.DateWeight < 0 {
		add("matching: weights must be >= 0")
	}
	if m.TokenWeight+m.EntityWeight+m.DateWeight <= 0 {
		add("matching: at least one weight must be > 0")
	}
	if m.NeutralDateScore < 0 || m.NeutralDateScore > 100 {
		add("matching: neutral_date_score must be 0-100")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server: rate_limit must be >= 0")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.MinSpreadPercent < 0 {
		add("notify: min_spread_percent must be >= 0")
	}
	if c.Notify.Cooldown.Duration < 0 {
		add("notify: cooldown must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
