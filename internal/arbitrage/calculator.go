// Package arbitrage prices cross-venue spreads for matched pairs.
package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// DefaultFeePercent approximates the combined trading fees of both venues.
const DefaultFeePercent = 2.0

var hundred = decimal.NewFromInt(100)

// Calculator evaluates both trade directions of a pair.
type Calculator struct {
	feePercent decimal.Decimal
	now        func() time.Time
}

// NewCalculator creates a Calculator that deducts feePercent from every
// spread.
func NewCalculator(feePercent float64) *Calculator {
	return &Calculator{
		feePercent: decimal.NewFromFloat(feePercent),
		now:        time.Now,
	}
}

// quote is one executable direction: buy at the ask on one venue, sell at
// the bid on the other.
type quote struct {
	buy, sell       domain.Listing
	buyLvl, sellLvl domain.PriceLevel
	buyCents        int64
	sellCents       int64
	spread          decimal.Decimal
}

// Compute returns the better of the two directions with a positive spread,
// or nil when neither direction pays or a book is missing.
func (c *Calculator) Compute(pair domain.MatchedPair, a, b *domain.OrderbookSnapshot) *domain.Opportunity {
	if a == nil || b == nil {
		return nil
	}

	best := direction(pair.A, a, pair.B, b)
	if alt := direction(pair.B, b, pair.A, a); alt != nil && (best == nil || alt.spread.GreaterThan(best.spread)) {
		best = alt
	}
	if best == nil {
		return nil
	}

	profit := best.spread.Sub(c.feePercent).Round(2)
	if profit.IsNegative() {
		profit = decimal.Zero
	}

	return &domain.Opportunity{
		MatchKey:               MatchKey(pair),
		EventTitle:             pair.A.Title,
		Category:               pair.Category,
		BuyPlatform:            best.buy.Platform,
		BuyMarketID:            best.buy.ExternalID,
		BuyPrice:               best.buyCents,
		SellPlatform:           best.sell.Platform,
		SellMarketID:           best.sell.ExternalID,
		SellPrice:              best.sellCents,
		SpreadPercent:          best.spread.InexactFloat64(),
		EstimatedProfitPercent: profit.InexactFloat64(),
		BuyVolume:              best.buyLvl.Size,
		SellVolume:             best.sellLvl.Size,
		ExpiresAt:              earliest(pair.A.ExpiresAt, pair.B.ExpiresAt),
		MatchScore:             pair.Score,
		MatchReason:            pair.Reason,
		ComputedAtEpochMs:      c.now().UnixMilli(),
	}
}

// direction prices buying at buyBook's best ask and selling at sellBook's
// best bid. It is nil unless the sell price is strictly above the buy price.
func direction(buy domain.Listing, buyBook *domain.OrderbookSnapshot, sell domain.Listing, sellBook *domain.OrderbookSnapshot) *quote {
	ask, ok := buyBook.BestAsk()
	if !ok {
		return nil
	}
	bid, ok := sellBook.BestBid()
	if !ok {
		return nil
	}

	buyCents, sellCents := Cents(ask.Price), Cents(bid.Price)
	if buyCents <= 0 || sellCents <= buyCents {
		return nil
	}
	return &quote{
		buy:       buy,
		sell:      sell,
		buyLvl:    ask,
		sellLvl:   bid,
		buyCents:  buyCents,
		sellCents: sellCents,
		spread:    SpreadPercent(buyCents, sellCents),
	}
}

// Cents converts a probability price to whole cents.
func Cents(price float64) int64 {
	return decimal.NewFromFloat(price).Mul(hundred).Round(0).IntPart()
}

// SpreadPercent is (sell - buy) / buy * 100 rounded to two decimals.
func SpreadPercent(buyCents, sellCents int64) decimal.Decimal {
	buy := decimal.NewFromInt(buyCents)
	return decimal.NewFromInt(sellCents).Sub(buy).Div(buy).Mul(hundred).Round(2)
}

// MatchKey identifies a pair across scans by its first listing.
func MatchKey(pair domain.MatchedPair) string {
	return string(pair.A.Platform) + ":" + pair.A.ExternalID
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
