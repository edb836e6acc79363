// Package matching decides which listings on two platforms describe the same
// event. It normalizes titles, extracts anchor entities, scores candidate
// pairs and assigns them greedily one-to-one.
package matching

import (
	"strings"
	"unicode"
)

// stopWords are dropped from token sets: articles, prepositions, conjunctions
// and auxiliary verbs.
var stopWords = map[string]bool{
	"the": true, "an": true, "and": true, "or": true, "nor": true, "but": true,
	"of": true, "in": true, "to": true, "for": true, "on": true, "at": true,
	"by": true, "with": true, "from": true, "into": true, "onto": true, "over": true,
	"under": true, "about": true, "between": true, "before": true, "after": true,
	"during": true, "above": true, "below": true, "than": true, "as": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "am": true, "will": true, "would": true, "shall": true,
	"should": true, "can": true, "could": true, "may": true, "might": true,
	"must": true, "do": true, "does": true, "did": true, "has": true,
	"have": true, "had": true, "it": true, "this": true, "that": true,
}

// Normalize lowercases title, collapses every run of non-alphanumeric
// characters to a single space and returns the remaining tokens in order of
// first appearance, without duplicates, single-character tokens or stop-words.
func Normalize(title string) []string {
	words := strings.Fields(simplify(title))
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 1 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// simplify lowercases s and replaces non-alphanumeric runs with one space.
func simplify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
