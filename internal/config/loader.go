package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, then applies ARBSCAN_*
// environment overrides (after loading .env when present). An empty path
// skips the file. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides copies set ARBSCAN_* variables over cfg so secrets can
// be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ARBSCAN_MODE")
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")

	// A shared key for both venues, then per-venue overrides.
	setStr(&cfg.Polymarket.APIKey, "ARBSCAN_API_KEY")
	setStr(&cfg.Kalshi.APIKey, "ARBSCAN_API_KEY")
	setStr(&cfg.Polymarket.BaseURL, "ARBSCAN_POLYMARKET_BASE_URL")
	setStr(&cfg.Polymarket.APIKey, "ARBSCAN_POLYMARKET_API_KEY")
	setInt(&cfg.Polymarket.PageSize, "ARBSCAN_POLYMARKET_PAGE_SIZE")
	setStr(&cfg.Kalshi.BaseURL, "ARBSCAN_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.APIKey, "ARBSCAN_KALSHI_API_KEY")
	setInt(&cfg.Kalshi.PageSize, "ARBSCAN_KALSHI_PAGE_SIZE")

	setDuration(&cfg.Upstream.Timeout, "ARBSCAN_UPSTREAM_TIMEOUT")
	setInt(&cfg.Upstream.RateLimit, "ARBSCAN_UPSTREAM_RATE_LIMIT")
	setDuration(&cfg.Upstream.RateWindow, "ARBSCAN_UPSTREAM_RATE_WINDOW")
	setDuration(&cfg.Upstream.ResetInterval, "ARBSCAN_UPSTREAM_RESET_INTERVAL")

	setStr(&cfg.Scan.Status, "ARBSCAN_SCAN_STATUS")
	setInt(&cfg.Scan.BatchSize, "ARBSCAN_SCAN_BATCH_SIZE")
	setDuration(&cfg.Scan.PairTimeout, "ARBSCAN_SCAN_PAIR_TIMEOUT")
	setInt(&cfg.Scan.PersistTopN, "ARBSCAN_SCAN_PERSIST_TOP_N")
	setDuration(&cfg.Scan.Interval, "ARBSCAN_SCAN_INTERVAL")
	setFloat64(&cfg.Scan.FeePercent, "ARBSCAN_SCAN_FEE_PERCENT")
	setDuration(&cfg.Scan.Staleness, "ARBSCAN_SCAN_STALENESS")
	setDuration(&cfg.Scan.Lookback, "ARBSCAN_SCAN_LOOKBACK")
	setStr(&cfg.Scan.Category, "ARBSCAN_SCAN_CATEGORY")
	setFloat64(&cfg.Scan.MinSpreadPercent, "ARBSCAN_SCAN_MIN_SPREAD_PERCENT")
	setInt(&cfg.Scan.MaxMarketsPerPlatform, "ARBSCAN_SCAN_MAX_MARKETS_PER_PLATFORM")
	setFloat64(&cfg.Scan.MinMatchScore, "ARBSCAN_SCAN_MIN_MATCH_SCORE")

	setStr(&cfg.Matching.DictionaryPath, "ARBSCAN_MATCHING_DICTIONARY_PATH")
	setFloat64(&cfg.Matching.TokenWeight, "ARBSCAN_MATCHING_TOKEN_WEIGHT")
	setFloat64(&cfg.Matching.EntityWeight, "ARBSCAN_MATCHING_ENTITY_WEIGHT")
	setFloat64(&cfg.Matching.DateWeight, "ARBSCAN_MATCHING_DATE_WEIGHT")
	setFloat64(&cfg.Matching.NeutralDateScore, "ARBSCAN_MATCHING_NEUTRAL_DATE_SCORE")

	setBool(&cfg.Postgres.Enabled, "ARBSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "ARBSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSCAN_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "ARBSCAN_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "ARBSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.EventsChannel, "ARBSCAN_REDIS_EVENTS_CHANNEL")

	setBool(&cfg.S3.Enabled, "ARBSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")

	setInt(&cfg.Server.Port, "ARBSCAN_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT")
	setStr(&cfg.Server.APIKey, "ARBSCAN_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSCAN_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "ARBSCAN_SERVER_RATE_LIMIT")

	setStr(&cfg.Notify.TelegramToken, "ARBSCAN_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCAN_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "ARBSCAN_DISCORD_WEBHOOK")
	setFloat64(&cfg.Notify.MinSpreadPercent, "ARBSCAN_NOTIFY_MIN_SPREAD_PERCENT")
	setDuration(&cfg.Notify.Cooldown, "ARBSCAN_NOTIFY_COOLDOWN")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
