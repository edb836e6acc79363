package domain

import (
	"fmt"
	"time"
)

// Platform identifies a prediction-market venue.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformKalshi     Platform = "kalshi"
)

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// OutcomeTokens holds the tradable identifiers for both outcomes of a listing.
// On venues that quote both sides under one ticker, Yes and No are equal and
// the Outcome carried by OutcomeToken selects the side.
type OutcomeTokens struct {
	Yes string `json:"yes"`
	No  string `json:"no"`
}

// OutcomeToken addresses the book of one outcome of a listing.
type OutcomeToken struct {
	ID      string
	Outcome Outcome
}

// Listing is an open market on one platform as seen during a single scan.
type Listing struct {
	Platform   Platform      `json:"platform"`
	ExternalID string        `json:"externalId"`
	Title      string        `json:"title"`
	ExpiresAt  *time.Time    `json:"expiryTime,omitempty"`
	Category   string        `json:"category,omitempty"`
	Volume     float64       `json:"volume,omitempty"`
	Tokens     OutcomeTokens `json:"outcomeTokenIds"`
}

// Token returns the addressable token for the given outcome.
func (l Listing) Token(o Outcome) OutcomeToken {
	if o == OutcomeNo {
		return OutcomeToken{ID: l.Tokens.No, Outcome: OutcomeNo}
	}
	return OutcomeToken{ID: l.Tokens.Yes, Outcome: OutcomeYes}
}

// ParseError describes an upstream record that could not be turned into a
// Listing.
type ParseError struct {
	Platform Platform
	Index    int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s record %d: %s", e.Platform, e.Index, e.Reason)
}

// Unwrap lets callers match parse failures with errors.Is(err, ErrMalformedResponse).
func (e *ParseError) Unwrap() error {
	return ErrMalformedResponse
}

// ListingResult is the outcome of parsing one upstream record: exactly one
// of Listing (when Err is nil) or Err is meaningful.
type ListingResult struct {
	Listing Listing
	Err     *ParseError
}

// OK reports whether the record parsed successfully.
func (r ListingResult) OK() bool {
	return r.Err == nil
}
