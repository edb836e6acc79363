// Package orderbook loads fresh books for both sides of a matched pair.
package orderbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

const (
	// DefaultStaleness is the oldest snapshot age still used.
	DefaultStaleness = 2 * time.Hour
	// DefaultLookback is how far back snapshot history is requested.
	DefaultLookback = 24 * time.Hour
)

// BookSource serves orderbook snapshots for outcome tokens on one platform.
type BookSource interface {
	Platform() domain.Platform
	GetOrderbook(ctx context.Context, token domain.OutcomeToken, start, end time.Time) (domain.OrderbookSnapshot, error)
}

// Books holds the usable "yes" books of a pair. A nil side had no fresh
// snapshot.
type Books struct {
	A *domain.OrderbookSnapshot
	B *domain.OrderbookSnapshot
}

// Config tunes freshness checks.
type Config struct {
	Staleness time.Duration
	Lookback  time.Duration
}

// Fetcher loads yes-side books for matched pairs.
type Fetcher struct {
	sources   map[domain.Platform]BookSource
	staleness time.Duration
	lookback  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher over one BookSource per platform.
func NewFetcher(cfg Config, logger *slog.Logger, sources ...BookSource) *Fetcher {
	if cfg.Staleness <= 0 {
		cfg.Staleness = DefaultStaleness
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	f := &Fetcher{
		sources:   make(map[domain.Platform]BookSource, len(sources)),
		staleness: cfg.Staleness,
		lookback:  cfg.Lookback,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "orderbook")),
	}
	for _, s := range sources {
		f.sources[s.Platform()] = s
	}
	return f
}

// Fetch loads both sides of pair concurrently. It never fails: a side that
// cannot be served fresh is nil.
func (f *Fetcher) Fetch(ctx context.Context, pair domain.MatchedPair) Books {
	var books Books
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		books.A = f.safeSide(gctx, pair.A)
		return nil
	})
	g.Go(func() error {
		books.B = f.safeSide(gctx, pair.B)
		return nil
	})
	_ = g.Wait()
	return books
}

// safeSide is side with a panic in the source or its decoder turned into a
// missing book.
func (f *Fetcher) safeSide(ctx context.Context, l domain.Listing) (snap *domain.OrderbookSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			bookOutcomes.WithLabelValues(string(l.Platform), "panic").Inc()
			f.logger.Error("orderbook: panic recovered",
				slog.String("platform", string(l.Platform)),
				slog.String("listing", l.ExternalID),
				slog.Any("panic", r),
			)
			snap = nil
		}
	}()
	return f.side(ctx, l)
}

// side returns the yes book of l, falling back to the inverted no book.
func (f *Fetcher) side(ctx context.Context, l domain.Listing) *domain.OrderbookSnapshot {
	log := f.logger.With(
		slog.String("platform", string(l.Platform)),
		slog.String("listing", l.ExternalID),
	)

	src, ok := f.sources[l.Platform]
	if !ok {
		log.Warn("orderbook: no source for platform")
		return nil
	}

	snap, err := f.load(ctx, src, l.Token(domain.OutcomeYes))
	if err == nil {
		return snap
	}
	log.Debug("orderbook: yes book unavailable, trying no book", slog.String("error", err.Error()))
	if ctx.Err() != nil {
		bookOutcomes.WithLabelValues(string(l.Platform), "timeout").Inc()
		return nil
	}
	// Both outcomes share one snapshot under a single ticker.
	if errors.Is(err, domain.ErrStaleData) && l.Tokens.Yes == l.Tokens.No {
		bookOutcomes.WithLabelValues(string(l.Platform), "stale").Inc()
		return nil
	}

	snap, err = f.load(ctx, src, l.Token(domain.OutcomeNo))
	if err != nil {
		reason := "unavailable"
		switch {
		case errors.Is(err, domain.ErrStaleData):
			reason = "stale"
		case ctx.Err() != nil:
			reason = "timeout"
		}
		bookOutcomes.WithLabelValues(string(l.Platform), reason).Inc()
		log.Debug("orderbook: side unavailable", slog.String("error", err.Error()))
		return nil
	}
	inverted := snap.Invert()
	bookOutcomes.WithLabelValues(string(l.Platform), "inverted").Inc()
	return &inverted
}

// load fetches one token's book and rejects empty or stale snapshots.
func (f *Fetcher) load(ctx context.Context, src BookSource, token domain.OutcomeToken) (*domain.OrderbookSnapshot, error) {
	now := f.now()
	snap, err := src.GetOrderbook(ctx, token, now.Add(-f.lookback), now)
	if err != nil {
		return nil, err
	}
	if snap.Empty() {
		return nil, fmt.Errorf("orderbook: %s %s: empty book: %w", token.ID, token.Outcome, domain.ErrNotFound)
	}

	// A snapshot without a timestamp is a live book.
	if !snap.Timestamp.IsZero() {
		age := now.Sub(snap.Timestamp)
		if age < 0 {
			age = 0
		}
		snap.AgeSeconds = age.Seconds()
		if age > f.staleness {
			return nil, fmt.Errorf("orderbook: %s %s: age %s: %w", token.ID, token.Outcome, age.Round(time.Second), domain.ErrStaleData)
		}
	}
	if token.Outcome == domain.OutcomeYes {
		bookOutcomes.WithLabelValues(string(src.Platform()), "fresh").Inc()
	}
	return &snap, nil
}
