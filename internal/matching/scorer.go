package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

const (
	day     = 24 * time.Hour
	week    = 7 * day
	month   = 30 * day
	quarter = 90 * day

	highTokenSimilarity = 60.0
	highDateProximity   = 80.0
)

// Weights are the tuning constants of the match score. They are heuristics,
// exposed as configuration.
type Weights struct {
	Token       float64
	Entity      float64
	Date        float64
	NeutralDate float64 // date score used when either expiry is missing
}

// DefaultWeights returns 0.5/0.3/0.2 with a neutral date score of 50.
func DefaultWeights() Weights {
	return Weights{Token: 0.5, Entity: 0.3, Date: 0.2, NeutralDate: 50}
}

// Score is the result of comparing two listings.
type Score struct {
	Value  float64
	Reason string

	Token  float64
	Entity float64
	Date   float64
}

// Scorer rates how likely two listings describe the same event on a 0-100
// scale.
type Scorer struct {
	analyzer *Analyzer
	weights  Weights
}

// NewScorer creates a Scorer.
func NewScorer(analyzer *Analyzer, weights Weights) *Scorer {
	return &Scorer{analyzer: analyzer, weights: weights}
}

// Score compares listings a and b.
func (s *Scorer) Score(a, b domain.Listing) Score {
	return s.score(a, s.analyzer.analyze(a.Title), b, s.analyzer.analyze(b.Title))
}

func (s *Scorer) score(a domain.Listing, aa *analysis, b domain.Listing, ab *analysis) Score {
	token := tokenSimilarity(aa, ab)
	matched := matchedEntities(aa, ab)
	entity := entityScore(len(matched), len(aa.entities), len(ab.entities))
	date := s.dateProximity(a.ExpiresAt, b.ExpiresAt)

	value := s.weights.Token*token + s.weights.Entity*entity + s.weights.Date*date
	value = math.Max(0, math.Min(100, value))

	return Score{
		Value:  value,
		Reason: reason(matched, token, date),
		Token:  token,
		Entity: entity,
		Date:   date,
	}
}

// tokenSimilarity is a Jaccard-style overlap with partial credit: an exact
// shared token counts 1, a token contained in (or containing) a distinct
// token on the other side counts 0.5. A partially matched pair occupies one
// slot of the union.
func tokenSimilarity(a, b *analysis) float64 {
	var restA, restB []string
	exact := 0
	for _, t := range a.tokens {
		if _, ok := b.title.Tokens[t]; ok {
			exact++
		} else {
			restA = append(restA, t)
		}
	}
	for _, t := range b.tokens {
		if _, ok := a.title.Tokens[t]; !ok {
			restB = append(restB, t)
		}
	}

	partial := 0
	used := make([]bool, len(restB))
	for _, ta := range restA {
		for j, tb := range restB {
			if used[j] {
				continue
			}
			if strings.Contains(ta, tb) || strings.Contains(tb, ta) {
				used[j] = true
				partial++
				break
			}
		}
	}

	union := len(a.tokens) + len(b.tokens) - exact - partial
	if union == 0 {
		return 0
	}
	return (float64(exact) + 0.5*float64(partial)) / float64(union) * 100
}

func matchedEntities(a, b *analysis) []string {
	var out []string
	for _, e := range a.entities {
		if _, ok := b.title.Entities[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func entityScore(matched, na, nb int) float64 {
	denom := max(na, nb)
	if denom == 0 {
		return 0
	}
	return float64(matched) / float64(denom) * 100
}

func (s *Scorer) dateProximity(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return s.weights.NeutralDate
	}
	diff := a.Sub(*b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= day:
		return 100
	case diff <= week:
		return 80
	case diff <= month:
		return 50
	case diff <= quarter:
		return 20
	default:
		return 0
	}
}

func reason(matched []string, token, date float64) string {
	switch {
	case len(matched) > 0:
		return "matched entities: " + strings.Join(matched, ", ")
	case token >= highTokenSimilarity:
		return fmt.Sprintf("high token similarity (%.0f%%)", token)
	case date >= highDateProximity:
		return "close expiry dates"
	default:
		return "partial match"
	}
}
