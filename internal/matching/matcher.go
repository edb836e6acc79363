package matching

import (
	"log/slog"
	"sort"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Matcher pairs listings across two platforms.
type Matcher struct {
	scorer *Scorer
	dict   *Dictionary
	logger *slog.Logger
}

// NewMatcher creates a Matcher that scores with scorer and categorizes pairs
// with the scorer's dictionary.
func NewMatcher(scorer *Scorer, logger *slog.Logger) *Matcher {
	return &Matcher{
		scorer: scorer,
		dict:   scorer.analyzer.Dictionary(),
		logger: logger.With(slog.String("component", "matcher")),
	}
}

// Match assigns each listing in as, in input order, to its best-scoring
// unclaimed listing in bs. Candidates scoring below minScore are ignored and
// ties keep the earlier candidate. Each listing in bs is used at most once.
//
// The assignment is greedy and order dependent, not a globally optimal
// bipartite matching. Listing counts per scan are in the hundreds, where the
// quadratic scan is cheap and an assignment solver buys little.
//
// The result is sorted by score, highest first.
func (m *Matcher) Match(as, bs []domain.Listing, minScore float64) []domain.MatchedPair {
	analysesB := make([]*analysis, len(bs))
	for j := range bs {
		analysesB[j] = m.scorer.analyzer.analyze(bs[j].Title)
	}

	claimed := make([]bool, len(bs))
	pairs := make([]domain.MatchedPair, 0)

	for _, a := range as {
		aa := m.scorer.analyzer.analyze(a.Title)

		bestIdx := -1
		var best Score
		for j := range bs {
			if claimed[j] {
				continue
			}
			sc := m.scorer.score(a, aa, bs[j], analysesB[j])
			if sc.Value < minScore {
				continue
			}
			if bestIdx < 0 || sc.Value > best.Value {
				bestIdx = j
				best = sc
			}
		}
		if bestIdx < 0 {
			continue
		}

		claimed[bestIdx] = true
		pairs = append(pairs, domain.MatchedPair{
			A:        a,
			B:        bs[bestIdx],
			Score:    best.Value,
			Reason:   best.Reason,
			Category: m.category(a, bs[bestIdx]),
		})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Score > pairs[j].Score
	})

	m.logger.Debug("matcher: assignment complete",
		slog.Int("platform_a", len(as)),
		slog.Int("platform_b", len(bs)),
		slog.Int("pairs", len(pairs)),
	)
	return pairs
}

// category prefers the first listing's inferred category and falls back to
// the second when the first is unknown.
func (m *Matcher) category(a, b domain.Listing) string {
	if c := m.dict.InferCategory(a); c != CategoryOther {
		return c
	}
	return m.dict.InferCategory(b)
}
