// Package catalog pages open listings out of a platform's listings endpoint.
package catalog

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 100

// Source is a platform listings endpoint addressed by offset and limit. The
// returned slice holds one parse result per upstream record, so its length
// is the raw page size even when some records are malformed.
type Source interface {
	Platform() domain.Platform
	ListMarkets(ctx context.Context, status string, limit, offset int) ([]domain.ListingResult, error)
}

// Result is what a catalog fetch produced. Err is set when an upstream
// failure ended pagination early; Listings still holds every page received
// before it.
type Result struct {
	Platform  domain.Platform
	Listings  []domain.Listing
	Pages     int
	Malformed int
	Err       error
}

// Fetcher pages a Source.
type Fetcher struct {
	pageSize int
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher requesting pageSize records per page.
func NewFetcher(pageSize int, logger *slog.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Fetcher{
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "catalog")),
	}
}

// Fetch pages src until maxItems listings are collected, a page comes back
// shorter than requested, or a request fails. Failures degrade the result
// instead of discarding it.
func (f *Fetcher) Fetch(ctx context.Context, src Source, status string, maxItems int) Result {
	platform := src.Platform()
	res := Result{Platform: platform}
	log := f.logger.With(slog.String("platform", string(platform)))

	offset := 0
	for len(res.Listings) < maxItems {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		limit := min(f.pageSize, maxItems-len(res.Listings))
		page, err := src.ListMarkets(ctx, status, limit, offset)
		if err != nil {
			res.Err = err
			pageErrors.WithLabelValues(string(platform)).Inc()
			log.Warn("catalog: page failed, keeping earlier pages",
				slog.Int("offset", offset),
				slog.Int("collected", len(res.Listings)),
				slog.String("error", err.Error()),
			)
			break
		}
		res.Pages++

		for _, r := range page {
			if !r.OK() {
				res.Malformed++
				log.Debug("catalog: skipping malformed record", slog.String("error", r.Err.Error()))
				continue
			}
			if len(res.Listings) < maxItems {
				res.Listings = append(res.Listings, r.Listing)
			}
		}

		if len(page) < limit {
			break
		}
		offset += len(page)
	}

	listingsFetched.WithLabelValues(string(platform)).Add(float64(len(res.Listings)))
	malformedRecords.WithLabelValues(string(platform)).Add(float64(res.Malformed))

	log.Info("catalog: fetch complete",
		slog.Int("listings", len(res.Listings)),
		slog.Int("pages", res.Pages),
		slog.Int("malformed", res.Malformed),
	)
	return res
}
