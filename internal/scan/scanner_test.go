package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	"github.com/alanyoungcy/arbscan/internal/catalog"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/matching"
	"github.com/alanyoungcy/arbscan/internal/orderbook"
)

var (
	scanTime = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	expiry   = time.Date(2028, 11, 7, 0, 0, 0, 0, time.UTC)
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// listingSource serves a fixed catalog.
type listingSource struct {
	platform domain.Platform
	listings []domain.Listing
	err      error
}

func (s *listingSource) Platform() domain.Platform { return s.platform }

func (s *listingSource) ListMarkets(_ context.Context, _ string, limit, offset int) ([]domain.ListingResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.ListingResult
	for i := offset; i < offset+limit && i < len(s.listings); i++ {
		out = append(out, domain.ListingResult{Listing: s.listings[i]})
	}
	return out, nil
}

// fakeBooks serves books keyed by the A-side external ID.
type fakeBooks struct {
	books  map[string]orderbook.Books
	hang   map[string]bool
	panics map[string]bool
}

func (f *fakeBooks) Fetch(ctx context.Context, pair domain.MatchedPair) orderbook.Books {
	id := pair.A.ExternalID
	if f.panics[id] {
		panic("book decoder exploded")
	}
	b := f.books[id]
	if f.hang[id] {
		<-ctx.Done()
		return orderbook.Books{B: b.B}
	}
	return b
}

// tokenBooks is an orderbook.BookSource serving live books by token ID.
type tokenBooks struct {
	platform domain.Platform
	books    map[string]*domain.OrderbookSnapshot
	panicOn  string
}

func (b *tokenBooks) Platform() domain.Platform { return b.platform }

func (b *tokenBooks) GetOrderbook(_ context.Context, token domain.OutcomeToken, _, _ time.Time) (domain.OrderbookSnapshot, error) {
	if token.ID == b.panicOn {
		panic("decode book " + token.ID)
	}
	snap, ok := b.books[token.ID]
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return *snap, nil
}

// panickySource fails the whole catalog with a panic.
type panickySource struct{ platform domain.Platform }

func (p panickySource) Platform() domain.Platform { return p.platform }

func (p panickySource) ListMarkets(context.Context, string, int, int) ([]domain.ListingResult, error) {
	panic("catalog decoder exploded")
}

type memStore struct {
	mu    sync.Mutex
	rows  map[string]domain.Opportunity
	calls int
	fail  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.Opportunity{}, fail: map[string]bool{}}
}

func (m *memStore) UpsertOpportunity(_ context.Context, o domain.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail[o.MatchKey] {
		return fmt.Errorf("postgres: upsert opportunity: %w", domain.ErrPersistence)
	}
	m.rows[o.MatchKey] = o
	return nil
}

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct{ got []published }

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.got = append(p.got, published{channel, payload})
	return nil
}

type fakeBlob struct {
	path, contentType string
	body              []byte
	err               error
}

func (b *fakeBlob) Put(_ context.Context, path string, r io.Reader, contentType string) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.path, b.body, b.contentType = path, body, contentType
	return b.err
}

func listing(p domain.Platform, id, title, category string) domain.Listing {
	exp := expiry
	return domain.Listing{
		Platform:   p,
		ExternalID: id,
		Title:      title,
		Category:   category,
		ExpiresAt:  &exp,
		Tokens:     domain.OutcomeTokens{Yes: id + "-yes", No: id + "-no"},
	}
}

func snap(bid, ask float64) *domain.OrderbookSnapshot {
	return &domain.OrderbookSnapshot{
		Bids: []domain.PriceLevel{{Price: bid, Size: 100}},
		Asks: []domain.PriceLevel{{Price: ask, Size: 80}},
	}
}

type fixture struct {
	a, b  []domain.Listing
	books *fakeBooks
}

// newFixture builds three cross-listed events whose best directions yield
// spreads of 11.90, 9.09 and 3.23 percent.
func newFixture() fixture {
	pm, ks := domain.PlatformPolymarket, domain.PlatformKalshi
	return fixture{
		a: []domain.Listing{
			listing(pm, "pm-fed", "Fed cuts rates in March", "economics"),
			listing(pm, "pm-trump", "Trump wins the 2028 presidential election", "politics"),
			listing(pm, "pm-btc", "Bitcoin above 150000 by December", "crypto"),
		},
		b: []domain.Listing{
			listing(ks, "KX-BTC", "Bitcoin above 150000 by December", "Crypto"),
			listing(ks, "KX-FED", "Fed cuts rates in March", "Economics"),
			listing(ks, "KX-TRUMP", "Trump wins the 2028 presidential election", "Politics"),
		},
		books: &fakeBooks{
			books: map[string]orderbook.Books{
				"pm-trump": {A: snap(0.40, 0.42), B: snap(0.47, 0.50)},
				"pm-btc":   {A: snap(0.60, 0.62), B: snap(0.50, 0.55)},
				"pm-fed":   {A: snap(0.30, 0.31), B: snap(0.32, 0.35)},
			},
			hang:   map[string]bool{},
			panics: map[string]bool{},
		},
	}
}

func newTestScanner(t *testing.T, fx fixture, cfg Config, sinks Deps) *Scanner {
	t.Helper()
	analyzer, err := matching.NewAnalyzer(matching.DefaultDictionary(), 0)
	require.NoError(t, err)
	t.Cleanup(analyzer.Close)

	deps := Deps{
		Catalog: catalog.NewFetcher(2, discard()),
		SourceA: &listingSource{platform: domain.PlatformPolymarket, listings: fx.a},
		SourceB: &listingSource{platform: domain.PlatformKalshi, listings: fx.b},
		Matcher: matching.NewMatcher(matching.NewScorer(analyzer, matching.DefaultWeights()), discard()),
		Books:   fx.books,
		Pricer:  arbitrage.NewCalculator(arbitrage.DefaultFeePercent),
		Store:   sinks.Store,
		Events:  sinks.Events,
		Archive: sinks.Archive,
	}
	s := New(cfg, deps, discard())
	s.now = func() time.Time { return scanTime }
	s.newID = func() string { return "scan-1" }
	return s
}

func keys(opps []domain.Opportunity) []string {
	out := make([]string, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.MatchKey)
	}
	return out
}

func TestRunRanksOpportunities(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	res := s.Run(context.Background(), DefaultRequest())

	require.Empty(t, res.Error)
	assert.Empty(t, res.Message)
	assert.Equal(t, "scan-1", res.ScanID)
	assert.Equal(t, []string{"polymarket:pm-trump", "polymarket:pm-btc", "polymarket:pm-fed"}, keys(res.Opportunities))
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, Stats{PlatformACount: 3, PlatformBCount: 3, MatchedPairs: 3, OpportunitiesFound: 3}, res.Stats)
	assert.Equal(t, CategoryAll, res.Category)
	assert.Equal(t, scanTime, res.Timestamp)
	assert.Nil(t, res.Debug)

	top := res.Opportunities[0]
	assert.Equal(t, int64(42), top.BuyPrice)
	assert.Equal(t, int64(47), top.SellPrice)
	assert.InDelta(t, 11.90, top.SpreadPercent, 1e-9)
	assert.InDelta(t, 9.90, top.EstimatedProfitPercent, 1e-9)
	assert.Equal(t, "politics", top.Category)

	btc := res.Opportunities[1]
	assert.Equal(t, domain.PlatformKalshi, btc.BuyPlatform)
	assert.Equal(t, "KX-BTC", btc.BuyMarketID)
	assert.InDelta(t, 9.09, btc.SpreadPercent, 1e-9)
}

func TestRunMinSpreadFilter(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	req := DefaultRequest()
	req.MinSpreadPercent = 9.09
	res := s.Run(context.Background(), req)

	assert.Equal(t, []string{"polymarket:pm-trump", "polymarket:pm-btc"}, keys(res.Opportunities))
	assert.Equal(t, 2, res.Stats.OpportunitiesFound)
	assert.Equal(t, 3, res.Stats.MatchedPairs)

	req.MinSpreadPercent = 50
	res = s.Run(context.Background(), req)
	assert.NotNil(t, res.Opportunities)
	assert.Empty(t, res.Opportunities)
	assert.Equal(t, "no opportunities above minimum spread", res.Message)
}

func TestRunCategoryFilter(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	req := DefaultRequest()
	req.Category = "Crypto"
	res := s.Run(context.Background(), req)

	assert.Equal(t, "crypto", res.Category)
	assert.Equal(t, 1, res.Stats.MatchedPairs)
	assert.Equal(t, []string{"polymarket:pm-btc"}, keys(res.Opportunities))

	req.Category = "weather"
	res = s.Run(context.Background(), req)
	assert.Equal(t, domain.ErrNoMatch.Error(), res.Message)
	assert.Empty(t, res.Opportunities)
}

func TestRunEmptyCatalog(t *testing.T) {
	fx := newFixture()
	fx.a = nil
	s := newTestScanner(t, fx, Config{}, Deps{})
	res := s.Run(context.Background(), DefaultRequest())

	assert.Equal(t, "no open listings returned by polymarket", res.Message)
	assert.Empty(t, res.Error)
	assert.NotNil(t, res.Opportunities)
	assert.Empty(t, res.Opportunities)
	assert.Equal(t, Stats{}, res.Stats)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"opportunities":[]`)
}

func TestRunBothCatalogsFailed(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	down := fmt.Errorf("upstream: get: %w", domain.ErrUpstreamUnavailable)
	s.deps.SourceA = &listingSource{platform: domain.PlatformPolymarket, err: down}
	s.deps.SourceB = &listingSource{platform: domain.PlatformKalshi, err: down}

	res := s.Run(context.Background(), DefaultRequest())
	assert.Equal(t, "no open listings returned by polymarket and kalshi", res.Message)
	assert.Contains(t, res.Error, "catalog fetch failed")
	assert.Empty(t, res.Opportunities)
}

func TestRunSkipsTimedOutPair(t *testing.T) {
	fx := newFixture()
	fx.books.hang["pm-btc"] = true
	s := newTestScanner(t, fx, Config{PairTimeout: 50 * time.Millisecond}, Deps{})

	req := DefaultRequest()
	req.Debug = true
	res := s.Run(context.Background(), req)

	assert.Equal(t, []string{"polymarket:pm-trump", "polymarket:pm-fed"}, keys(res.Opportunities))
	require.NotNil(t, res.Debug)
	assert.Equal(t, 1, res.Debug.PairsFailed)
}

func TestRunSkipsPanickingPair(t *testing.T) {
	fx := newFixture()
	fx.books.panics["pm-trump"] = true
	s := newTestScanner(t, fx, Config{BatchSize: 2}, Deps{})

	res := s.Run(context.Background(), DefaultRequest())
	assert.Empty(t, res.Error)
	assert.Equal(t, []string{"polymarket:pm-btc", "polymarket:pm-fed"}, keys(res.Opportunities))
}

func TestRunSkipsPairWhenBookSourcePanics(t *testing.T) {
	fx := newFixture()
	pm := &tokenBooks{
		platform: domain.PlatformPolymarket,
		panicOn:  "pm-trump-yes",
		books: map[string]*domain.OrderbookSnapshot{
			"pm-btc-yes": snap(0.60, 0.62),
			"pm-fed-yes": snap(0.30, 0.31),
		},
	}
	ks := &tokenBooks{
		platform: domain.PlatformKalshi,
		books: map[string]*domain.OrderbookSnapshot{
			"KX-BTC-yes":   snap(0.50, 0.55),
			"KX-FED-yes":   snap(0.32, 0.35),
			"KX-TRUMP-yes": snap(0.47, 0.50),
		},
	}

	s := newTestScanner(t, fx, Config{BatchSize: 3}, Deps{})
	s.deps.Books = orderbook.NewFetcher(orderbook.Config{}, discard(), pm, ks)

	res := s.Run(context.Background(), DefaultRequest())
	assert.Empty(t, res.Error)
	assert.Equal(t, []string{"polymarket:pm-btc", "polymarket:pm-fed"}, keys(res.Opportunities))
}

func TestRunRecoversFromCatalogPanic(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	s.deps.SourceA = panickySource{platform: domain.PlatformPolymarket}

	res := s.Run(context.Background(), DefaultRequest())
	assert.Equal(t, "no open listings returned by polymarket", res.Message)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Opportunities)

	s.deps.SourceB = panickySource{platform: domain.PlatformKalshi}
	res = s.Run(context.Background(), DefaultRequest())
	assert.Contains(t, res.Error, "catalog fetch failed")
	assert.Contains(t, res.Error, "panic: catalog decoder exploded")
}

func TestRunRecoversFromInternalPanic(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	s.deps.Matcher = nil

	res := s.Run(context.Background(), DefaultRequest())
	assert.Contains(t, res.Error, "internal error")
	assert.NotNil(t, res.Opportunities)
	assert.Zero(t, res.Count)
}

func TestRunPersistsTopN(t *testing.T) {
	store := newMemStore()
	s := newTestScanner(t, newFixture(), Config{PersistTopN: 2}, Deps{Store: store})

	s.Run(context.Background(), DefaultRequest())
	assert.Len(t, store.rows, 2)
	assert.Contains(t, store.rows, "polymarket:pm-trump")
	assert.Contains(t, store.rows, "polymarket:pm-btc")
}

func TestRunToleratesPersistenceFailures(t *testing.T) {
	store := newMemStore()
	store.fail["polymarket:pm-trump"] = true
	s := newTestScanner(t, newFixture(), Config{PersistTopN: 10}, Deps{Store: store})

	req := DefaultRequest()
	req.Debug = true
	res := s.Run(context.Background(), req)

	assert.Empty(t, res.Error)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 3, store.calls)
	assert.Len(t, store.rows, 2)
	assert.Equal(t, 1, res.Debug.PersistFailures)
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	s := newTestScanner(t, newFixture(), Config{PersistTopN: 10}, Deps{Store: store})

	first := s.Run(context.Background(), DefaultRequest())
	second := s.Run(context.Background(), DefaultRequest())

	strip := func(opps []domain.Opportunity) []domain.Opportunity {
		out := append([]domain.Opportunity(nil), opps...)
		for i := range out {
			out[i].ComputedAtEpochMs = 0
		}
		return out
	}
	assert.Equal(t, strip(first.Opportunities), strip(second.Opportunities))
	assert.Len(t, store.rows, 3)
	assert.Equal(t, 6, store.calls)
}

func TestRunPublishesAndArchives(t *testing.T) {
	pub := &fakePublisher{}
	blob := &fakeBlob{}
	s := newTestScanner(t, newFixture(), Config{EventsChannel: "arbscan:scans"}, Deps{Events: pub, Archive: blob})

	res := s.Run(context.Background(), DefaultRequest())

	require.Len(t, pub.got, 1)
	assert.Equal(t, "arbscan:scans", pub.got[0].channel)
	var ev Event
	require.NoError(t, json.Unmarshal(pub.got[0].payload, &ev))
	assert.Equal(t, "scan-1", ev.ScanID)
	assert.Equal(t, "polymarket:pm-trump", ev.TopMatchKey)
	assert.Equal(t, keys(res.Opportunities), ev.OpportunityKeys)

	assert.Equal(t, "scans/2026/10/15/scan-1.json", blob.path)
	assert.Equal(t, "application/json", blob.contentType)
	var archived Result
	require.NoError(t, json.Unmarshal(blob.body, &archived))
	assert.Equal(t, res.Count, archived.Count)
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	blob := &fakeBlob{err: errors.New("s3: put object: access denied")}
	s := newTestScanner(t, newFixture(), Config{}, Deps{Archive: blob})

	res := s.Run(context.Background(), DefaultRequest())
	assert.Empty(t, res.Error)
	assert.Equal(t, 3, res.Count)
}

func TestRunDebugSamples(t *testing.T) {
	s := newTestScanner(t, newFixture(), Config{}, Deps{})
	req := DefaultRequest()
	req.Debug = true
	res := s.Run(context.Background(), req)

	require.NotNil(t, res.Debug)
	assert.Len(t, res.Debug.ListingSamples[domain.PlatformPolymarket], 3)
	assert.Len(t, res.Debug.ListingSamples[domain.PlatformKalshi], 3)
	require.Len(t, res.Debug.PairSamples, 3)
	assert.InDelta(t, 100, res.Debug.PairSamples[0].Score, 1e-9)
}

func TestSortOpportunitiesTieBreak(t *testing.T) {
	opps := []domain.Opportunity{
		{MatchKey: "polymarket:c", SpreadPercent: 5},
		{MatchKey: "polymarket:b", SpreadPercent: 7},
		{MatchKey: "polymarket:a", SpreadPercent: 5},
	}
	sortOpportunities(opps)
	assert.Equal(t, []string{"polymarket:b", "polymarket:a", "polymarket:c"}, keys(opps))
}

func TestRequestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Request
		want Request
	}{
		{"defaults kept", DefaultRequest(), DefaultRequest()},
		{
			"clamped high",
			Request{Category: " Politics ", MinSpreadPercent: 3, MaxMarketsPerPlatform: 9000, MinMatchScore: 140},
			Request{Category: "politics", MinSpreadPercent: 3, MaxMarketsPerPlatform: 500, MinMatchScore: 100},
		},
		{
			"clamped low",
			Request{MinSpreadPercent: -1, MaxMarketsPerPlatform: 0, MinMatchScore: -5},
			Request{Category: CategoryAll, MinSpreadPercent: 0, MaxMarketsPerPlatform: 1, MinMatchScore: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2026, 1, 2, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "scans/2026/01/03/abc.json", ArchivePath("abc", at))
}
