package domain

import (
	"math"
	"time"
)

// PriceLevel is a single price+size entry in an orderbook. Price is a
// probability in [0,1].
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderbookSnapshot is a point-in-time view of one outcome's book.
type OrderbookSnapshot struct {
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	Timestamp  time.Time    `json:"timestamp"`
	AgeSeconds float64      `json:"ageSeconds"`
}

// Empty reports whether the snapshot has no levels on either side.
func (s OrderbookSnapshot) Empty() bool {
	return len(s.Bids) == 0 && len(s.Asks) == 0
}

// BestBid returns the highest bid. Levels are not assumed to be sorted.
func (s OrderbookSnapshot) BestBid() (PriceLevel, bool) {
	best := PriceLevel{Price: math.Inf(-1)}
	found := false
	for _, l := range s.Bids {
		if l.Price > best.Price {
			best = l
			found = true
		}
	}
	return best, found
}

// BestAsk returns the lowest ask.
func (s OrderbookSnapshot) BestAsk() (PriceLevel, bool) {
	best := PriceLevel{Price: math.Inf(1)}
	found := false
	for _, l := range s.Asks {
		if l.Price < best.Price {
			best = l
			found = true
		}
	}
	return best, found
}

// Invert converts a "no" book into the equivalent "yes" book. Buying no at p
// is selling yes at 1-p, so asks become bids and bids become asks.
func (s OrderbookSnapshot) Invert() OrderbookSnapshot {
	return OrderbookSnapshot{
		Bids:       complementLevels(s.Asks),
		Asks:       complementLevels(s.Bids),
		Timestamp:  s.Timestamp,
		AgeSeconds: s.AgeSeconds,
	}
}

func complementLevels(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, PriceLevel{Price: 1 - l.Price, Size: l.Size})
	}
	return out
}
