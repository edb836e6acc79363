package scan

import (
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// CategoryAll disables category filtering.
const CategoryAll = "all"

// Request bounds.
const (
	DefaultMinSpreadPercent      = 1.0
	DefaultMaxMarketsPerPlatform = 200
	MaxMarketsPerPlatformLimit   = 500
	DefaultMinMatchScore         = 60.0
)

// Request holds the caller-tunable parameters of one scan.
type Request struct {
	Category              string  `json:"category"`
	MinSpreadPercent      float64 `json:"minSpreadPercent"`
	MaxMarketsPerPlatform int     `json:"maxMarketsPerPlatform"`
	MinMatchScore         float64 `json:"minMatchScore"`
	Debug                 bool    `json:"debug"`
}

// DefaultRequest returns a Request with every parameter at its default.
func DefaultRequest() Request {
	return Request{
		Category:              CategoryAll,
		MinSpreadPercent:      DefaultMinSpreadPercent,
		MaxMarketsPerPlatform: DefaultMaxMarketsPerPlatform,
		MinMatchScore:         DefaultMinMatchScore,
	}
}

// Normalize clamps r into its valid ranges.
func (r Request) Normalize() Request {
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	if r.Category == "" {
		r.Category = CategoryAll
	}
	if r.MinSpreadPercent < 0 {
		r.MinSpreadPercent = 0
	}
	r.MaxMarketsPerPlatform = min(max(r.MaxMarketsPerPlatform, 1), MaxMarketsPerPlatformLimit)
	r.MinMatchScore = min(max(r.MinMatchScore, 0), 100)
	return r
}

// Stats summarises the work a scan did.
type Stats struct {
	PlatformACount     int   `json:"platformACount"`
	PlatformBCount     int   `json:"platformBCount"`
	MatchedPairs       int   `json:"matchedPairs"`
	OpportunitiesFound int   `json:"opportunitiesFound"`
	ElapsedMs          int64 `json:"elapsedMs"`
}

// PairSample is a matched pair reduced to what is useful when tuning
// thresholds.
type PairSample struct {
	TitleA   string  `json:"titleA"`
	TitleB   string  `json:"titleB"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	Category string  `json:"category,omitempty"`
}

// Debug carries diagnostics returned when Request.Debug is set.
type Debug struct {
	ListingSamples  map[domain.Platform][]string `json:"listingSamples"`
	PairSamples     []PairSample                 `json:"pairSamples"`
	MalformedA      int                          `json:"malformedA"`
	MalformedB      int                          `json:"malformedB"`
	PairsFailed     int                          `json:"pairsFailed"`
	PersistFailures int                          `json:"persistFailures"`
}

// Result is the scan response. It is always well formed: Opportunities is
// never nil and failures are reported through Message and Error.
type Result struct {
	ScanID           string               `json:"scanId"`
	Opportunities    []domain.Opportunity `json:"opportunities"`
	Count            int                  `json:"count"`
	Stats            Stats                `json:"stats"`
	Category         string               `json:"category"`
	MinSpreadPercent float64              `json:"minSpreadPercent"`
	Timestamp        time.Time            `json:"timestamp"`
	Message          string               `json:"message,omitempty"`
	Error            string               `json:"error,omitempty"`
	Debug            *Debug               `json:"debug,omitempty"`
}
