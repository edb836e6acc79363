// Package polymarket reads Polymarket listings and orderbook snapshots from
// the market-data API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/platform/upstream"
)

// Client is the Polymarket side of the market-data API.
type Client struct {
	api *upstream.Client
}

// NewClient creates a Client.
func NewClient(cfg upstream.Config) *Client {
	return &Client{api: upstream.New(cfg)}
}

// Platform identifies the venue.
func (c *Client) Platform() domain.Platform {
	return domain.PlatformPolymarket
}

// ListMarkets returns one parse result per market record on the requested
// page.
func (c *Client) ListMarkets(ctx context.Context, status string, limit, offset int) ([]domain.ListingResult, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.api.Get(ctx, "/polymarket/markets", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket: list markets offset=%d: %w", offset, err)
	}

	var page marketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w: %w", domain.ErrMalformedResponse, err)
	}

	out := make([]domain.ListingResult, 0, len(page.Markets))
	for i, raw := range page.Markets {
		out = append(out, parseMarket(offset+i, raw))
	}
	return out, nil
}

// GetOrderbook returns the most recent snapshot for token between start and
// end. Polymarket quotes every outcome token with its own book, so the
// token's Outcome is not needed to build it.
func (c *Client) GetOrderbook(ctx context.Context, token domain.OutcomeToken, start, end time.Time) (domain.OrderbookSnapshot, error) {
	if token.ID == "" {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket: orderbook: empty token id: %w", domain.ErrNotFound)
	}

	params := url.Values{}
	params.Set("token_id", token.ID)
	params.Set("start_time", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("end_time", strconv.FormatInt(end.UnixMilli(), 10))

	body, err := c.api.Get(ctx, "/polymarket/orderbooks", params)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket: orderbook %s: %w", token.ID, err)
	}

	var resp orderbooksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket: decode orderbook %s: %w: %w", token.ID, domain.ErrMalformedResponse, err)
	}

	snap, ok := resp.latest()
	if !ok {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket: orderbook %s: no snapshots: %w", token.ID, domain.ErrNotFound)
	}
	return snap, nil
}
