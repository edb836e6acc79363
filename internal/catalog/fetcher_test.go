package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type call struct{ limit, offset int }

// fakeSource serves total records, failing at failAt (page index) if set and
// turning every record whose index is in malformed into a parse error.
type fakeSource struct {
	total     int
	failAt    int
	malformed map[int]bool
	calls     []call
}

func (s *fakeSource) Platform() domain.Platform { return domain.PlatformKalshi }

func (s *fakeSource) ListMarkets(_ context.Context, status string, limit, offset int) ([]domain.ListingResult, error) {
	if status != "open" {
		return nil, fmt.Errorf("unexpected status %q", status)
	}
	s.calls = append(s.calls, call{limit, offset})
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return nil, fmt.Errorf("kalshi: list markets: %w", domain.ErrUpstreamUnavailable)
	}
	var out []domain.ListingResult
	for i := offset; i < offset+limit && i < s.total; i++ {
		if s.malformed[i] {
			out = append(out, domain.ListingResult{Err: &domain.ParseError{Platform: domain.PlatformKalshi, Index: i, Reason: "missing title"}})
			continue
		}
		out = append(out, domain.ListingResult{Listing: domain.Listing{
			Platform:   domain.PlatformKalshi,
			ExternalID: fmt.Sprintf("T-%d", i),
			Title:      fmt.Sprintf("Market %d", i),
		}})
	}
	return out, nil
}

func newTestFetcher(pageSize int) *Fetcher {
	return NewFetcher(pageSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchStopsAtMaxItems(t *testing.T) {
	src := &fakeSource{total: 1000}
	res := newTestFetcher(100).Fetch(context.Background(), src, "open", 250)

	require.NoError(t, res.Err)
	assert.Len(t, res.Listings, 250)
	assert.Equal(t, []call{{100, 0}, {100, 100}, {50, 200}}, src.calls)
	assert.Equal(t, 3, res.Pages)
}

func TestFetchStopsOnShortPage(t *testing.T) {
	src := &fakeSource{total: 130}
	res := newTestFetcher(50).Fetch(context.Background(), src, "open", 500)

	require.NoError(t, res.Err)
	assert.Len(t, res.Listings, 130)
	assert.Equal(t, []call{{50, 0}, {50, 50}, {50, 100}}, src.calls)
}

func TestFetchKeepsPagesBeforeFailure(t *testing.T) {
	src := &fakeSource{total: 1000, failAt: 2}
	res := newTestFetcher(100).Fetch(context.Background(), src, "open", 500)

	assert.True(t, errors.Is(res.Err, domain.ErrUpstreamUnavailable))
	assert.Len(t, res.Listings, 100)
	assert.Len(t, src.calls, 2)
}

func TestFetchFirstPageFailure(t *testing.T) {
	src := &fakeSource{total: 1000, failAt: 1}
	res := newTestFetcher(100).Fetch(context.Background(), src, "open", 500)

	assert.Error(t, res.Err)
	assert.Empty(t, res.Listings)
}

func TestFetchSkipsMalformedRecords(t *testing.T) {
	src := &fakeSource{total: 10, malformed: map[int]bool{2: true, 7: true}}
	res := newTestFetcher(100).Fetch(context.Background(), src, "open", 100)

	require.NoError(t, res.Err)
	assert.Len(t, res.Listings, 8)
	assert.Equal(t, 2, res.Malformed)
	for _, l := range res.Listings {
		assert.NotEqual(t, "T-2", l.ExternalID)
		assert.NotEqual(t, "T-7", l.ExternalID)
	}
}

func TestFetchMalformedRecordsDoNotEndPagination(t *testing.T) {
	// A full raw page containing bad records is still a full page.
	src := &fakeSource{total: 15, malformed: map[int]bool{0: true}}
	res := newTestFetcher(10).Fetch(context.Background(), src, "open", 100)

	assert.Len(t, src.calls, 2)
	assert.Len(t, res.Listings, 14)
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{total: 100}
	res := newTestFetcher(10).Fetch(ctx, src, "open", 100)

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, src.calls)
}
