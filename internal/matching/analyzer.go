package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// analysisTTL bounds how long a memoized title analysis lives. Titles are
// stable across scans, so this is only a memory hygiene limit.
const analysisTTL = 6 * time.Hour

// analysis is the cached, read-only view of one title.
type analysis struct {
	title    domain.NormalizedTitle
	tokens   []string // sorted
	entities []string // sorted
}

// Analyzer turns titles into token and entity sets, memoizing the result in
// an in-process ristretto cache.
type Analyzer struct {
	dict  *Dictionary
	cache *ristretto.Cache
}

// NewAnalyzer creates an Analyzer over dict. A cacheSize of zero or less
// disables memoization.
func NewAnalyzer(dict *Dictionary, cacheSize int64) (*Analyzer, error) {
	a := &Analyzer{dict: dict}
	if cacheSize <= 0 {
		return a, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("matching: create analysis cache: %w", err)
	}
	a.cache = cache
	return a, nil
}

// Dictionary returns the alias table the analyzer extracts entities with.
func (a *Analyzer) Dictionary() *Dictionary {
	return a.dict
}

// Analyze returns the normalized token and entity sets of title. The
// returned maps are shared with the cache and must not be modified.
func (a *Analyzer) Analyze(title string) domain.NormalizedTitle {
	return a.analyze(title).title
}

// Close releases the cache.
func (a *Analyzer) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

func (a *Analyzer) analyze(title string) *analysis {
	if a.cache != nil {
		if v, ok := a.cache.Get(title); ok {
			if an, ok := v.(*analysis); ok {
				return an
			}
		}
	}

	tokens := Normalize(title)
	entities := a.dict.Extract(title)

	an := &analysis{
		title: domain.NormalizedTitle{
			Tokens:   make(map[string]struct{}, len(tokens)),
			Entities: entities,
		},
		tokens:   append([]string(nil), tokens...),
		entities: make([]string, 0, len(entities)),
	}
	for _, t := range tokens {
		an.title.Tokens[t] = struct{}{}
	}
	for e := range entities {
		an.entities = append(an.entities, e)
	}
	sort.Strings(an.tokens)
	sort.Strings(an.entities)

	if a.cache != nil {
		a.cache.SetWithTTL(title, an, 1, analysisTTL)
	}
	return an
}
