package matching

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

//go:embed dictionary.toml
var defaultDictionary string

// CategoryOther is assigned when no category can be inferred.
const CategoryOther = "other"

var (
	numberRe = regexp.MustCompile(`^\d+$`)
	yearRe   = regexp.MustCompile(`^20\d\d$`)
)

// dictionaryFile mirrors the TOML layout of a dictionary file.
type dictionaryFile struct {
	Entities   map[string][]string `toml:"entities"`
	Categories map[string][]string `toml:"categories"`
}

type phrase struct {
	key  string
	text string // padded with spaces for word-boundary matching
}

// Dictionary is the data-driven alias table used for entity extraction and
// category inference. It is immutable after construction and safe for
// concurrent use.
type Dictionary struct {
	aliases    []phrase
	categories []phrase
	names      map[string]bool
}

// DefaultDictionary returns the dictionary compiled into the binary.
func DefaultDictionary() *Dictionary {
	d, err := ParseDictionary(defaultDictionary)
	if err != nil {
		panic(fmt.Sprintf("matching: embedded dictionary: %v", err))
	}
	return d
}

// LoadDictionary reads a dictionary TOML file from path.
func LoadDictionary(path string) (*Dictionary, error) {
	var f dictionaryFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("matching: load dictionary %s: %w", path, err)
	}
	return NewDictionary(f.Entities, f.Categories), nil
}

// ParseDictionary decodes a dictionary from TOML text.
func ParseDictionary(data string) (*Dictionary, error) {
	var f dictionaryFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("matching: parse dictionary: %w", err)
	}
	return NewDictionary(f.Entities, f.Categories), nil
}

// NewDictionary builds a Dictionary from canonical key -> alias phrases and
// category -> keyword tables. Canonical keys match as phrases themselves.
func NewDictionary(entities, categories map[string][]string) *Dictionary {
	d := &Dictionary{names: make(map[string]bool, len(categories))}

	for key, aliases := range entities {
		canonical := strings.ToLower(strings.TrimSpace(key))
		if canonical == "" {
			continue
		}
		d.aliases = appendPhrase(d.aliases, canonical, strings.ReplaceAll(canonical, "_", " "))
		for _, a := range aliases {
			d.aliases = appendPhrase(d.aliases, canonical, a)
		}
	}
	for name, keywords := range categories {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		d.names[name] = true
		for _, k := range keywords {
			d.categories = appendPhrase(d.categories, name, k)
		}
	}

	sortPhrases(d.aliases)
	sortPhrases(d.categories)
	return d
}

func appendPhrase(dst []phrase, key, text string) []phrase {
	s := simplify(text)
	if s == "" {
		return dst
	}
	return append(dst, phrase{key: key, text: " " + s + " "})
}

// sortPhrases orders by key then text so lookups are deterministic.
func sortPhrases(p []phrase) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].key != p[j].key {
			return p[i].key < p[j].key
		}
		return p[i].text < p[j].text
	})
}

// Extract returns the canonical entities mentioned in title, plus every bare
// number and four-digit 20xx year.
func (d *Dictionary) Extract(title string) map[string]struct{} {
	simple := simplify(title)
	padded := " " + simple + " "
	out := make(map[string]struct{})

	for _, p := range d.aliases {
		if strings.Contains(padded, p.text) {
			out[p.key] = struct{}{}
		}
	}
	for _, w := range strings.Fields(simple) {
		if yearRe.MatchString(w) || numberRe.MatchString(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

// InferCategory returns the listing's category. An explicit category field
// is mapped onto a known category name when possible; otherwise the title
// is searched for category keywords.
func (d *Dictionary) InferCategory(l domain.Listing) string {
	if c := simplify(l.Category); c != "" {
		if d.names[c] {
			return c
		}
		if name, ok := d.lookupCategory(" " + c + " "); ok {
			return name
		}
		return c
	}
	if name, ok := d.lookupCategory(" " + simplify(l.Title) + " "); ok {
		return name
	}
	return CategoryOther
}

func (d *Dictionary) lookupCategory(padded string) (string, bool) {
	for _, p := range d.categories {
		if strings.Contains(padded, p.text) {
			return p.key, true
		}
	}
	return "", false
}
