package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")

	// Scan error taxonomy.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
	ErrStaleData           = errors.New("stale orderbook snapshot")
	ErrNoMatch             = errors.New("no matching listings")
	ErrPersistence         = errors.New("persistence failure")
)
