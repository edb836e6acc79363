package polymarket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/platform/upstream"
)

// marketsPage is the listings envelope. Records are kept raw so each one is
// parsed on its own and a bad record cannot fail the page.
type marketsPage struct {
	Markets []json.RawMessage `json:"markets"`
}

type apiSide struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type apiMarket struct {
	ConditionID string             `json:"condition_id"`
	MarketSlug  string             `json:"market_slug"`
	Title       string             `json:"title"`
	EndTime     *int64             `json:"end_time"` // unix seconds
	Tags        []string           `json:"tags"`
	VolumeTotal upstream.FlexFloat `json:"volume_total"`
	SideA       apiSide            `json:"side_a"`
	SideB       apiSide            `json:"side_b"`
}

func parseMarket(index int, raw json.RawMessage) domain.ListingResult {
	fail := func(reason string) domain.ListingResult {
		return domain.ListingResult{Err: &domain.ParseError{
			Platform: domain.PlatformPolymarket,
			Index:    index,
			Reason:   reason,
		}}
	}

	var m apiMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		return fail("decode: " + err.Error())
	}

	id := m.ConditionID
	if id == "" {
		id = m.MarketSlug
	}
	if id == "" {
		return fail("missing condition_id and market_slug")
	}
	title := strings.TrimSpace(m.Title)
	if title == "" {
		return fail("missing title")
	}

	yes, no := m.SideA, m.SideB
	if strings.EqualFold(yes.Label, "no") || strings.EqualFold(no.Label, "yes") {
		yes, no = no, yes
	}
	if yes.ID == "" || no.ID == "" {
		return fail("missing outcome token ids")
	}

	l := domain.Listing{
		Platform:   domain.PlatformPolymarket,
		ExternalID: id,
		Title:      title,
		Volume:     float64(m.VolumeTotal),
		Tokens:     domain.OutcomeTokens{Yes: yes.ID, No: no.ID},
	}
	if m.EndTime != nil && *m.EndTime > 0 {
		t := time.Unix(*m.EndTime, 0).UTC()
		l.ExpiresAt = &t
	}
	if len(m.Tags) > 0 {
		l.Category = m.Tags[0]
	}
	return domain.ListingResult{Listing: l}
}

type apiLevel struct {
	Price upstream.FlexFloat `json:"price"`
	Size  upstream.FlexFloat `json:"size"`
}

type apiSnapshot struct {
	Bids      []apiLevel `json:"bids"`
	Asks      []apiLevel `json:"asks"`
	Timestamp int64      `json:"timestamp"` // unix ms
}

// orderbooksResponse accepts both the snapshot history shape and a bare
// live book ({bids, asks}) at the top level.
type orderbooksResponse struct {
	Snapshots []apiSnapshot `json:"snapshots"`
	Bids      []apiLevel    `json:"bids"`
	Asks      []apiLevel    `json:"asks"`
	Timestamp int64         `json:"timestamp"`
}

func (r orderbooksResponse) latest() (domain.OrderbookSnapshot, bool) {
	if len(r.Snapshots) == 0 {
		if len(r.Bids) == 0 && len(r.Asks) == 0 {
			return domain.OrderbookSnapshot{}, false
		}
		return toSnapshot(apiSnapshot{Bids: r.Bids, Asks: r.Asks, Timestamp: r.Timestamp}), true
	}
	best := r.Snapshots[0]
	for _, s := range r.Snapshots[1:] {
		if s.Timestamp > best.Timestamp {
			best = s
		}
	}
	return toSnapshot(best), true
}

func toSnapshot(s apiSnapshot) domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		Bids: toLevels(s.Bids),
		Asks: toLevels(s.Asks),
	}
	if s.Timestamp > 0 {
		snap.Timestamp = time.UnixMilli(s.Timestamp).UTC()
	}
	return snap
}

// toLevels drops levels outside the probability range or with negative size.
func toLevels(in []apiLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		p, sz := float64(l.Price), float64(l.Size)
		if p < 0 || p > 1 || sz < 0 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: sz})
	}
	return out
}
