// Package scan runs the end-to-end arbitrage scan: catalogs, matching,
// batched orderbook pricing, ranking and write-through.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/catalog"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/matching"
	"github.com/alanyoungcy/arbscan/internal/orderbook"
)

// Defaults for Config.
const (
	DefaultBatchSize   = 5
	DefaultPairTimeout = 10 * time.Second
	DefaultPersistTopN = 20
	DefaultStatus      = "open"

	listingSampleSize = 5
	pairSampleSize    = 10
)

// BookFetcher loads the yes books of both sides of a pair.
type BookFetcher interface {
	Fetch(ctx context.Context, pair domain.MatchedPair) orderbook.Books
}

// Pricer turns a pair and its books into an opportunity, or nil.
type Pricer interface {
	Compute(pair domain.MatchedPair, a, b *domain.OrderbookSnapshot) *domain.Opportunity
}

// Config tunes the scan pipeline.
type Config struct {
	BatchSize     int
	PairTimeout   time.Duration
	PersistTopN   int
	Status        string
	EventsChannel string
}

// Deps are the collaborators of a Scanner. Store, Events and Archive are
// optional sinks.
type Deps struct {
	Catalog *catalog.Fetcher
	SourceA catalog.Source
	SourceB catalog.Source
	Matcher *matching.Matcher
	Books   BookFetcher
	Pricer  Pricer

	Store   domain.OpportunityStore
	Events  domain.EventPublisher
	Archive domain.BlobWriter
}

// Scanner orchestrates a single scan per Run call. It holds no state between
// runs and is safe for concurrent use.
type Scanner struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// New creates a Scanner.
func New(cfg Config, deps Deps, logger *slog.Logger) *Scanner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PairTimeout <= 0 {
		cfg.PairTimeout = DefaultPairTimeout
	}
	if cfg.PersistTopN < 0 {
		cfg.PersistTopN = 0
	}
	if cfg.Status == "" {
		cfg.Status = DefaultStatus
	}
	return &Scanner{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With(slog.String("component", "scan")),
	}
}

// Run executes one scan. It never returns an error: every failure is folded
// into the Result.
func (s *Scanner) Run(ctx context.Context, req Request) (res Result) {
	req = req.Normalize()
	start := s.now()
	res = Result{
		ScanID:           s.newID(),
		Opportunities:    []domain.Opportunity{},
		Category:         req.Category,
		MinSpreadPercent: req.MinSpreadPercent,
		Timestamp:        start.UTC(),
	}
	log := s.logger.With(slog.String("scan_id", res.ScanID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("scan: panic recovered", slog.Any("panic", r))
			res.Opportunities = []domain.Opportunity{}
			res.Count = 0
			res.Error = fmt.Sprintf("internal error: %v", r)
		}
		elapsed := s.now().Sub(start)
		res.Stats.ElapsedMs = elapsed.Milliseconds()
		scanDuration.Observe(elapsed.Seconds())
		scansTotal.WithLabelValues(outcome(res)).Inc()
	}()

	var dbg *Debug
	if req.Debug {
		dbg = &Debug{ListingSamples: map[domain.Platform][]string{}}
		res.Debug = dbg
	}

	catA, catB := s.fetchCatalogs(ctx, req.MaxMarketsPerPlatform)
	if dbg != nil {
		dbg.MalformedA, dbg.MalformedB = catA.Malformed, catB.Malformed
		dbg.ListingSamples[catA.Platform] = sampleTitles(catA.Listings)
		dbg.ListingSamples[catB.Platform] = sampleTitles(catB.Listings)
	}
	if len(catA.Listings) == 0 || len(catB.Listings) == 0 {
		res.Message = emptyCatalogMessage(catA, catB)
		if len(catA.Listings) == 0 && len(catB.Listings) == 0 && catA.Err != nil && catB.Err != nil {
			res.Error = fmt.Sprintf("catalog fetch failed: %v; %v", catA.Err, catB.Err)
		}
		log.Warn("scan: empty catalog", slog.String("message", res.Message))
		return res
	}

	res.Stats.PlatformACount = len(catA.Listings)
	res.Stats.PlatformBCount = len(catB.Listings)

	pairs := s.deps.Matcher.Match(catA.Listings, catB.Listings, req.MinMatchScore)
	pairs = filterCategory(pairs, req.Category)
	res.Stats.MatchedPairs = len(pairs)
	if dbg != nil {
		dbg.PairSamples = samplePairs(pairs)
	}
	if len(pairs) == 0 {
		res.Message = domain.ErrNoMatch.Error()
		log.Info("scan: no matched pairs",
			slog.Int("listings_a", res.Stats.PlatformACount),
			slog.Int("listings_b", res.Stats.PlatformBCount),
			slog.Float64("min_match_score", req.MinMatchScore),
		)
		return res
	}

	opps, failed := s.priceAll(ctx, pairs, log)
	if dbg != nil {
		dbg.PairsFailed = failed
	}

	kept := make([]domain.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.SpreadPercent >= req.MinSpreadPercent {
			kept = append(kept, o)
		}
	}
	sortOpportunities(kept)

	res.Opportunities = kept
	res.Count = len(kept)
	res.Stats.OpportunitiesFound = len(kept)
	opportunitiesFound.Add(float64(len(kept)))
	if len(kept) == 0 {
		res.Message = "no opportunities above minimum spread"
	}

	persistFailures := s.persist(ctx, kept, log)
	if dbg != nil {
		dbg.PersistFailures = persistFailures
	}

	log.Info("scan: complete",
		slog.Int("pairs", len(pairs)),
		slog.Int("opportunities", len(kept)),
		slog.Int("pairs_failed", failed),
		slog.Duration("elapsed", s.now().Sub(start)),
	)

	res.Stats.ElapsedMs = s.now().Sub(start).Milliseconds()
	s.publish(ctx, res, log)
	s.archive(ctx, res, log)
	return res
}

// fetchCatalogs pages both platforms concurrently.
func (s *Scanner) fetchCatalogs(ctx context.Context, maxItems int) (a, b catalog.Result) {
	pa, pb := s.deps.SourceA.Platform(), s.deps.SourceB.Platform()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a = s.fetchCatalog(gctx, s.deps.SourceA, pa, maxItems)
		return nil
	})
	g.Go(func() error {
		b = s.fetchCatalog(gctx, s.deps.SourceB, pb, maxItems)
		return nil
	})
	_ = g.Wait()
	return a, b
}

// fetchCatalog pages one platform. A panic becomes an empty result with Err
// set.
func (s *Scanner) fetchCatalog(ctx context.Context, src catalog.Source, platform domain.Platform, maxItems int) (res catalog.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan: catalog panic recovered",
				slog.String("platform", string(platform)),
				slog.Any("panic", r),
			)
			res = catalog.Result{Platform: platform, Err: fmt.Errorf("scan: fetch %s catalog: panic: %v", platform, r)}
		}
	}()
	return s.deps.Catalog.Fetch(ctx, src, s.cfg.Status, maxItems)
}

// priceAll prices pairs in sequential batches of concurrent pairs. Each
// goroutine writes only its own slot, and slots are appended after the
// batch joins.
func (s *Scanner) priceAll(ctx context.Context, pairs []domain.MatchedPair, log *slog.Logger) ([]domain.Opportunity, int) {
	var (
		out    []domain.Opportunity
		failed int
	)
	for start := 0; start < len(pairs); start += s.cfg.BatchSize {
		if ctx.Err() != nil {
			remaining := len(pairs) - start
			failed += remaining
			pairFailures.WithLabelValues("cancelled").Add(float64(remaining))
			log.Warn("scan: cancelled before all batches ran", slog.Int("skipped_pairs", remaining))
			break
		}
		batch := pairs[start:min(start+s.cfg.BatchSize, len(pairs))]
		slots := make([]*domain.Opportunity, len(batch))
		errs := make([]error, len(batch))

		var g errgroup.Group
		for i, pair := range batch {
			g.Go(func() error {
				slots[i], errs[i] = s.pricePair(ctx, pair)
				return nil
			})
		}
		_ = g.Wait()

		for i, opp := range slots {
			if errs[i] != nil {
				failed++
				log.Warn("scan: pair skipped",
					slog.String("listing_a", batch[i].A.ExternalID),
					slog.String("listing_b", batch[i].B.ExternalID),
					slog.String("error", errs[i].Error()),
				)
				continue
			}
			if opp != nil {
				out = append(out, *opp)
			}
		}
	}
	return out, failed
}

// pricePair fetches books for one pair under the per-pair timeout and
// prices it. Panics are converted to errors.
func (s *Scanner) pricePair(ctx context.Context, pair domain.MatchedPair) (opp *domain.Opportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			pairFailures.WithLabelValues("panic").Inc()
			opp, err = nil, fmt.Errorf("scan: price pair: panic: %v", r)
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PairTimeout)
	defer cancel()

	books := s.deps.Books.Fetch(pctx, pair)
	if err := pctx.Err(); err != nil {
		reason := "cancelled"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		pairFailures.WithLabelValues(reason).Inc()
		return nil, fmt.Errorf("scan: price pair: %w", err)
	}
	return s.deps.Pricer.Compute(pair, books.A, books.B), nil
}

// persist upserts the top opportunities, logging and counting failures.
func (s *Scanner) persist(ctx context.Context, opps []domain.Opportunity, log *slog.Logger) int {
	if s.deps.Store == nil || s.cfg.PersistTopN == 0 {
		return 0
	}
	failures := 0
	for _, o := range opps[:min(s.cfg.PersistTopN, len(opps))] {
		if err := s.deps.Store.UpsertOpportunity(ctx, o); err != nil {
			failures++
			sinkFailures.WithLabelValues("store").Inc()
			log.Warn("scan: upsert failed",
				slog.String("match_key", o.MatchKey),
				slog.String("error", err.Error()),
			)
		}
	}
	return failures
}

// Event is published on the events channel after each completed scan.
type Event struct {
	ScanID          string    `json:"scanId"`
	Timestamp       time.Time `json:"timestamp"`
	Category        string    `json:"category"`
	Stats           Stats     `json:"stats"`
	TopMatchKey     string    `json:"topMatchKey,omitempty"`
	TopSpreadPct    float64   `json:"topSpreadPercent,omitempty"`
	OpportunityKeys []string  `json:"opportunityKeys"`
}

func (s *Scanner) publish(ctx context.Context, res Result, log *slog.Logger) {
	if s.deps.Events == nil || s.cfg.EventsChannel == "" {
		return
	}
	ev := Event{
		ScanID:          res.ScanID,
		Timestamp:       res.Timestamp,
		Category:        res.Category,
		Stats:           res.Stats,
		OpportunityKeys: make([]string, 0, len(res.Opportunities)),
	}
	for _, o := range res.Opportunities {
		ev.OpportunityKeys = append(ev.OpportunityKeys, o.MatchKey)
	}
	if len(res.Opportunities) > 0 {
		ev.TopMatchKey = res.Opportunities[0].MatchKey
		ev.TopSpreadPct = res.Opportunities[0].SpreadPercent
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn("scan: marshal event", slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Events.Publish(ctx, s.cfg.EventsChannel, payload); err != nil {
		sinkFailures.WithLabelValues("events").Inc()
		log.Warn("scan: publish event failed", slog.String("error", err.Error()))
	}
}

// ArchivePath is the object key a scan result is archived under.
func ArchivePath(scanID string, at time.Time) string {
	return fmt.Sprintf("scans/%s/%s.json", at.UTC().Format("2006/01/02"), scanID)
}

func (s *Scanner) archive(ctx context.Context, res Result, log *slog.Logger) {
	if s.deps.Archive == nil {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		log.Warn("scan: marshal archive", slog.String("error", err.Error()))
		return
	}
	path := ArchivePath(res.ScanID, res.Timestamp)
	if err := s.deps.Archive.Put(ctx, path, bytes.NewReader(body), "application/json"); err != nil {
		sinkFailures.WithLabelValues("archive").Inc()
		log.Warn("scan: archive failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// sortOpportunities orders by spread descending, then match key ascending.
func sortOpportunities(opps []domain.Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].SpreadPercent != opps[j].SpreadPercent {
			return opps[i].SpreadPercent > opps[j].SpreadPercent
		}
		return opps[i].MatchKey < opps[j].MatchKey
	})
}

func filterCategory(pairs []domain.MatchedPair, category string) []domain.MatchedPair {
	if category == CategoryAll {
		return pairs
	}
	out := make([]domain.MatchedPair, 0, len(pairs))
	for _, p := range pairs {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

func emptyCatalogMessage(a, b catalog.Result) string {
	var empty []string
	for _, r := range []catalog.Result{a, b} {
		if len(r.Listings) == 0 {
			empty = append(empty, string(r.Platform))
		}
	}
	return "no open listings returned by " + strings.Join(empty, " and ")
}

func sampleTitles(ls []domain.Listing) []string {
	out := make([]string, 0, min(len(ls), listingSampleSize))
	for _, l := range ls[:min(len(ls), listingSampleSize)] {
		out = append(out, l.Title)
	}
	return out
}

func samplePairs(pairs []domain.MatchedPair) []PairSample {
	out := make([]PairSample, 0, min(len(pairs), pairSampleSize))
	for _, p := range pairs[:min(len(pairs), pairSampleSize)] {
		out = append(out, PairSample{
			TitleA:   p.A.Title,
			TitleB:   p.B.Title,
			Score:    p.Score,
			Reason:   p.Reason,
			Category: p.Category,
		})
	}
	return out
}

func outcome(res Result) string {
	switch {
	case res.Error != "":
		return "error"
	case res.Count > 0:
		return "opportunities"
	default:
		return "empty"
	}
}
