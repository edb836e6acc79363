package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	s3blob "github.com/alanyoungcy/arbscan/internal/blob/s3"
	"github.com/alanyoungcy/arbscan/internal/cache/redis"
	"github.com/alanyoungcy/arbscan/internal/catalog"
	"github.com/alanyoungcy/arbscan/internal/config"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/matching"
	"github.com/alanyoungcy/arbscan/internal/notify"
	"github.com/alanyoungcy/arbscan/internal/orderbook"
	"github.com/alanyoungcy/arbscan/internal/platform/kalshi"
	"github.com/alanyoungcy/arbscan/internal/platform/polymarket"
	"github.com/alanyoungcy/arbscan/internal/platform/upstream"
	"github.com/alanyoungcy/arbscan/internal/ratelimit"
	"github.com/alanyoungcy/arbscan/internal/scan"
	"github.com/alanyoungcy/arbscan/internal/server/handler"
	"github.com/alanyoungcy/arbscan/internal/store/postgres"
)

// Dependencies bundles what the modes need. It is built by Wire and torn
// down by the returned cleanup function.
type Dependencies struct {
	Scanner *scan.Scanner

	// RateLimiter throttles upstream calls and API clients. It is shared
	// through Redis when enabled, otherwise process-local.
	RateLimiter domain.RateLimiter

	// LocalLimiter is set only when RateLimiter is process-local and needs
	// periodic resets.
	LocalLimiter *ratelimit.Limiter

	// Pingers are reported by the health endpoint.
	Pingers map[string]handler.Pinger

	// Alerter is nil when no notification channel is configured.
	Alerter *notify.Alerter
}

// Wire constructs every concrete dependency from cfg. Optional sinks are
// connected only when enabled; a sink that is enabled but unreachable fails
// the wiring.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Pingers: make(map[string]handler.Pinger)}
	var scanDeps scan.Deps

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		redisClient = c
		closers = append(closers, func() { _ = c.Close() })
		deps.Pingers["redis"] = c
		deps.RateLimiter = redis.NewRateLimiter(c, cfg.Redis.KeyPrefix)
		scanDeps.Events = redis.NewPublisher(c)
	} else {
		local := ratelimit.New(logger)
		deps.RateLimiter = local
		deps.LocalLimiter = local
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Pingers["postgres"] = pg
		scanDeps.Store = postgres.NewOpportunityStore(pg)
	}

	// --- S3 scan archive ---
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Pingers["s3"] = handler.PingFunc(s3c.Health)
		scanDeps.Archive = s3blob.NewWriter(s3c)
	}

	// --- Matching ---
	matcher, analyzer, err := buildMatcher(cfg.Matching, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, analyzer.Close)

	// --- Platforms ---
	poly := polymarket.NewClient(upstreamConfig(cfg.Polymarket, cfg.Upstream, deps.RateLimiter, domain.PlatformPolymarket))
	kal := kalshi.NewClient(upstreamConfig(cfg.Kalshi, cfg.Upstream, deps.RateLimiter, domain.PlatformKalshi))

	scanDeps.Catalog = catalog.NewFetcher(pageSize(cfg), logger)
	scanDeps.SourceA = poly
	scanDeps.SourceB = kal
	scanDeps.Matcher = matcher
	scanDeps.Books = orderbook.NewFetcher(orderbook.Config{
		Staleness: cfg.Scan.Staleness.Duration,
		Lookback:  cfg.Scan.Lookback.Duration,
	}, logger, poly, kal)
	scanDeps.Pricer = arbitrage.NewCalculator(cfg.Scan.FeePercent)

	deps.Alerter = buildAlerter(cfg.Notify, logger)

	deps.Scanner = scan.New(scan.Config{
		BatchSize:     cfg.Scan.BatchSize,
		PairTimeout:   cfg.Scan.PairTimeout.Duration,
		PersistTopN:   cfg.Scan.PersistTopN,
		Status:        cfg.Scan.Status,
		EventsChannel: cfg.Redis.EventsChannel,
	}, scanDeps, logger)

	logger.Info("wire: dependencies ready",
		slog.Bool("redis", redisClient != nil),
		slog.Bool("postgres", scanDeps.Store != nil),
		slog.Bool("s3", scanDeps.Archive != nil),
		slog.Bool("alerts", deps.Alerter != nil),
	)
	return deps, cleanup, nil
}

// buildMatcher loads the dictionary and assembles the scoring chain. The
// returned Analyzer must be closed.
func buildMatcher(cfg config.MatchingConfig, logger *slog.Logger) (*matching.Matcher, *matching.Analyzer, error) {
	dict := matching.DefaultDictionary()
	if cfg.DictionaryPath != "" {
		d, err := matching.LoadDictionary(cfg.DictionaryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: dictionary: %w", err)
		}
		dict = d
	}
	analyzer, err := matching.NewAnalyzer(dict, cfg.CacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: analyzer: %w", err)
	}
	scorer := matching.NewScorer(analyzer, matching.Weights{
		Token:       cfg.TokenWeight,
		Entity:      cfg.EntityWeight,
		Date:        cfg.DateWeight,
		NeutralDate: cfg.NeutralDateScore,
	})
	return matching.NewMatcher(scorer, logger), analyzer, nil
}

func buildAlerter(cfg config.NotifyConfig, logger *slog.Logger) *notify.Alerter {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhook))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewAlerter(senders, cfg.MinSpreadPercent, cfg.Cooldown.Duration, logger)
}

func upstreamConfig(p config.PlatformConfig, u config.UpstreamConfig, limiter domain.RateLimiter, platform domain.Platform) upstream.Config {
	return upstream.Config{
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Timeout: u.Timeout.Duration,
		Throttle: upstream.Throttle{
			Limiter: limiter,
			Key:     "upstream:" + string(platform),
			Limit:   u.RateLimit,
			Window:  u.RateWindow.Duration,
		},
	}
}

// pageSize uses the smaller of the two platform page sizes so neither venue
// is asked for more than it was configured for.
func pageSize(cfg *config.Config) int {
	a, b := cfg.Polymarket.PageSize, cfg.Kalshi.PageSize
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}

// RequestDefaults returns the scan request built from the [scan] section.
func RequestDefaults(cfg *config.Config) scan.Request {
	return scan.Request{
		Category:              cfg.Scan.Category,
		MinSpreadPercent:      cfg.Scan.MinSpreadPercent,
		MaxMarketsPerPlatform: cfg.Scan.MaxMarketsPerPlatform,
		MinMatchScore:         cfg.Scan.MinMatchScore,
	}
}
