package arbitrage

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

func snap(bid, ask float64) *domain.OrderbookSnapshot {
	s := &domain.OrderbookSnapshot{}
	if bid > 0 {
		s.Bids = []domain.PriceLevel{{Price: bid - 0.05, Size: 1}, {Price: bid, Size: 300}}
	}
	if ask > 0 {
		s.Asks = []domain.PriceLevel{{Price: ask + 0.05, Size: 1}, {Price: ask, Size: 200}}
	}
	return s
}

func testPair() domain.MatchedPair {
	return domain.MatchedPair{
		A:        domain.Listing{Platform: domain.PlatformPolymarket, ExternalID: "0xabc", Title: "Will Candidate X win?"},
		B:        domain.Listing{Platform: domain.PlatformKalshi, ExternalID: "PRES-X"},
		Score:    93.75,
		Reason:   "matched entities: candidate_x",
		Category: "politics",
	}
}

func newTestCalculator() *Calculator {
	c := NewCalculator(DefaultFeePercent)
	c.now = func() time.Time { return time.UnixMilli(1_760_000_000_000) }
	return c
}

func TestComputeBuyAOnSellB(t *testing.T) {
	c := newTestCalculator()
	opp := c.Compute(testPair(), snap(0.40, 0.42), snap(0.47, 0.50))
	require.NotNil(t, opp)

	assert.Equal(t, domain.PlatformPolymarket, opp.BuyPlatform)
	assert.Equal(t, int64(42), opp.BuyPrice)
	assert.Equal(t, domain.PlatformKalshi, opp.SellPlatform)
	assert.Equal(t, int64(47), opp.SellPrice)
	assert.InDelta(t, 11.90, opp.SpreadPercent, 1e-9)
	assert.InDelta(t, 9.90, opp.EstimatedProfitPercent, 1e-9)
	assert.Equal(t, 200.0, opp.BuyVolume)
	assert.Equal(t, 300.0, opp.SellVolume)
	assert.Equal(t, "polymarket:0xabc", opp.MatchKey)
	assert.Equal(t, "Will Candidate X win?", opp.EventTitle)
	assert.Equal(t, "politics", opp.Category)
	assert.Equal(t, 93.75, opp.MatchScore)
	assert.Equal(t, int64(1_760_000_000_000), opp.ComputedAtEpochMs)
}

func TestComputeBuyBOnSellA(t *testing.T) {
	c := newTestCalculator()
	opp := c.Compute(testPair(), snap(0.60, 0.62), snap(0.50, 0.55))
	require.NotNil(t, opp)
	assert.Equal(t, domain.PlatformKalshi, opp.BuyPlatform)
	assert.Equal(t, "PRES-X", opp.BuyMarketID)
	assert.Equal(t, int64(55), opp.BuyPrice)
	assert.Equal(t, int64(60), opp.SellPrice)
	assert.InDelta(t, 9.09, opp.SpreadPercent, 1e-9)
}

func TestComputePicksHigherSpread(t *testing.T) {
	c := newTestCalculator()
	// A->B: buy 0.30 sell 0.35 (16.67%). B->A: buy 0.20 sell 0.25 (25%).
	a := &domain.OrderbookSnapshot{
		Bids: []domain.PriceLevel{{Price: 0.25, Size: 1}},
		Asks: []domain.PriceLevel{{Price: 0.30, Size: 1}},
	}
	b := &domain.OrderbookSnapshot{
		Bids: []domain.PriceLevel{{Price: 0.35, Size: 1}},
		Asks: []domain.PriceLevel{{Price: 0.20, Size: 1}},
	}
	opp := c.Compute(testPair(), a, b)
	require.NotNil(t, opp)
	assert.Equal(t, domain.PlatformKalshi, opp.BuyPlatform)
	assert.InDelta(t, 25.0, opp.SpreadPercent, 1e-9)
}

func TestComputeNoOpportunity(t *testing.T) {
	c := newTestCalculator()
	tests := []struct {
		name string
		a, b *domain.OrderbookSnapshot
	}{
		{"crossed nowhere", snap(0.40, 0.45), snap(0.41, 0.46)},
		{"equal prices", snap(0.40, 0.45), snap(0.45, 0.50)},
		{"missing a", nil, snap(0.47, 0.50)},
		{"missing b", snap(0.40, 0.42), nil},
		{"no asks", snap(0.40, 0), snap(0.47, 0)},
		{"zero ask", &domain.OrderbookSnapshot{Asks: []domain.PriceLevel{{Price: 0.001, Size: 1}}}, snap(0.47, 0.50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, c.Compute(testPair(), tt.a, tt.b))
		})
	}
}

func TestComputeFeeFloor(t *testing.T) {
	c := NewCalculator(5)
	// 50 -> 51 is a 2% spread, below the 5% fee.
	opp := c.Compute(testPair(), snap(0.45, 0.50), snap(0.51, 0.60))
	require.NotNil(t, opp)
	assert.InDelta(t, 2.0, opp.SpreadPercent, 1e-9)
	assert.Equal(t, 0.0, opp.EstimatedProfitPercent)
}

func TestSpreadPercentRounding(t *testing.T) {
	for buy := int64(1); buy < 100; buy++ {
		for sell := buy + 1; sell <= 100; sell++ {
			got := SpreadPercent(buy, sell).InexactFloat64()
			want := math.Round(float64(sell-buy)/float64(buy)*100*100) / 100
			require.InDelta(t, want, got, 0.0051, "buy=%d sell=%d", buy, sell)
			require.Greater(t, got, 0.0)
		}
	}
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(47), Cents(1-0.53))
	assert.Equal(t, int64(42), Cents(0.42))
	assert.Equal(t, int64(1), Cents(0.005))
	assert.Equal(t, int64(0), Cents(0.004))
}

func TestExpiresAtIsEarliest(t *testing.T) {
	c := newTestCalculator()
	p := testPair()
	early := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	p.A.ExpiresAt = &late
	p.B.ExpiresAt = &early

	opp := c.Compute(p, snap(0.40, 0.42), snap(0.47, 0.50))
	require.NotNil(t, opp)
	assert.Equal(t, early, *opp.ExpiresAt)

	p.B.ExpiresAt = nil
	opp = c.Compute(p, snap(0.40, 0.42), snap(0.47, 0.50))
	assert.Equal(t, late, *opp.ExpiresAt)
}
