package domain

import "time"

// NormalizedTitle is the derived token and entity view of a listing title.
// It is never persisted.
type NormalizedTitle struct {
	Tokens   map[string]struct{}
	Entities map[string]struct{}
}

// MatchedPair links one listing from each platform judged to describe the
// same event.
type MatchedPair struct {
	A        Listing `json:"listingA"`
	B        Listing `json:"listingB"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	Category string  `json:"category,omitempty"`
}

// Opportunity is a cross-venue arbitrage found for a matched pair. Prices
// are integer cents.
type Opportunity struct {
	MatchKey               string     `json:"matchKey"`
	EventTitle             string     `json:"eventTitle"`
	Category               string     `json:"category"`
	BuyPlatform            Platform   `json:"buyPlatform"`
	BuyMarketID            string     `json:"buyMarketId"`
	BuyPrice               int64      `json:"buyPrice"`
	SellPlatform           Platform   `json:"sellPlatform"`
	SellMarketID           string     `json:"sellMarketId"`
	SellPrice              int64      `json:"sellPrice"`
	SpreadPercent          float64    `json:"spreadPercent"`
	EstimatedProfitPercent float64    `json:"estimatedProfitPercent"`
	BuyVolume              float64    `json:"buyVolume"`
	SellVolume             float64    `json:"sellVolume"`
	ExpiresAt              *time.Time `json:"expiresAt,omitempty"`
	MatchScore             float64    `json:"matchScore"`
	MatchReason            string     `json:"matchReason"`
	ComputedAtEpochMs      int64      `json:"computedAtEpochMs"`
}
