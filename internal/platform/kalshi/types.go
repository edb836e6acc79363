package kalshi

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/platform/upstream"
)

type marketsPage struct {
	Markets []json.RawMessage `json:"markets"`
}

// apiMarket covers both the current field names and the older ticker field.
type apiMarket struct {
	MarketTicker string             `json:"market_ticker"`
	Ticker       string             `json:"ticker"`
	EventTicker  string             `json:"event_ticker"`
	Title        string             `json:"title"`
	EndTime      *int64             `json:"end_time"`   // unix seconds
	CloseTime    *int64             `json:"close_time"` // unix seconds
	Category     string             `json:"category"`
	Volume       upstream.FlexFloat `json:"volume"`
}

func parseMarket(index int, raw json.RawMessage) domain.ListingResult {
	fail := func(reason string) domain.ListingResult {
		return domain.ListingResult{Err: &domain.ParseError{
			Platform: domain.PlatformKalshi,
			Index:    index,
			Reason:   reason,
		}}
	}

	var m apiMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		return fail("decode: " + err.Error())
	}

	ticker := m.MarketTicker
	if ticker == "" {
		ticker = m.Ticker
	}
	if ticker == "" {
		return fail("missing market_ticker")
	}
	title := strings.TrimSpace(m.Title)
	if title == "" {
		return fail("missing title")
	}

	l := domain.Listing{
		Platform:   domain.PlatformKalshi,
		ExternalID: ticker,
		Title:      title,
		Category:   m.Category,
		Volume:     float64(m.Volume),
		// Both outcomes live in one book addressed by the ticker.
		Tokens: domain.OutcomeTokens{Yes: ticker, No: ticker},
	}
	exp := m.EndTime
	if exp == nil || *exp <= 0 {
		exp = m.CloseTime
	}
	if exp != nil && *exp > 0 {
		t := time.Unix(*exp, 0).UTC()
		l.ExpiresAt = &t
	}
	return domain.ListingResult{Listing: l}
}

// apiLevel is [price in cents, quantity].
type apiLevel [2]float64

type apiBook struct {
	Yes []apiLevel `json:"yes"`
	No  []apiLevel `json:"no"`
}

type apiSnapshot struct {
	Orderbook apiBook `json:"orderbook"`
	Timestamp int64   `json:"timestamp"` // unix ms
}

type orderbooksResponse struct {
	Snapshots []apiSnapshot `json:"snapshots"`
}

func (r orderbooksResponse) latest() (apiSnapshot, bool) {
	if len(r.Snapshots) == 0 {
		return apiSnapshot{}, false
	}
	best := r.Snapshots[0]
	for _, s := range r.Snapshots[1:] {
		if s.Timestamp > best.Timestamp {
			best = s
		}
	}
	return best, true
}

// view builds the book of one outcome: its own bids, and asks implied by
// the opposite outcome's bids at 1 - p.
func (s apiSnapshot) view(o domain.Outcome) domain.OrderbookSnapshot {
	own, other := s.Orderbook.Yes, s.Orderbook.No
	if o == domain.OutcomeNo {
		own, other = other, own
	}
	snap := domain.OrderbookSnapshot{
		Bids: make([]domain.PriceLevel, 0, len(own)),
		Asks: make([]domain.PriceLevel, 0, len(other)),
	}
	for _, l := range own {
		if p, ok := centsToProb(l[0]); ok && l[1] >= 0 {
			snap.Bids = append(snap.Bids, domain.PriceLevel{Price: p, Size: l[1]})
		}
	}
	for _, l := range other {
		if p, ok := centsToProb(l[0]); ok && l[1] >= 0 {
			snap.Asks = append(snap.Asks, domain.PriceLevel{Price: 1 - p, Size: l[1]})
		}
	}
	if s.Timestamp > 0 {
		snap.Timestamp = time.UnixMilli(s.Timestamp).UTC()
	}
	return snap
}

func centsToProb(c float64) (float64, bool) {
	if c < 0 || c > 100 {
		return 0, false
	}
	return c / 100, true
}
