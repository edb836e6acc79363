package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OpportunityStore implements domain.OpportunityStore. Rows are keyed by
// match key; a later scan overwrites the earlier row.
type OpportunityStore struct {
	db execer
}

// NewOpportunityStore creates an OpportunityStore on c's pool.
func NewOpportunityStore(c *Client) *OpportunityStore {
	return &OpportunityStore{db: c.pool}
}

const upsertOpportunity = `
	INSERT INTO arbitrage_opportunities (
		match_key, event_title, category,
		buy_platform, buy_market_id, buy_price_cents,
		sell_platform, sell_market_id, sell_price_cents,
		spread_percent, estimated_profit_percent,
		buy_volume, sell_volume, expires_at,
		match_score, match_reason, computed_at
	) VALUES (
		$1, $2, $3,
		$4, $5, $6,
		$7, $8, $9,
		$10, $11,
		$12, $13, $14,
		$15, $16, $17
	)
	ON CONFLICT (match_key) DO UPDATE SET
		event_title              = EXCLUDED.event_title,
		category                 = EXCLUDED.category,
		buy_platform             = EXCLUDED.buy_platform,
		buy_market_id            = EXCLUDED.buy_market_id,
		buy_price_cents          = EXCLUDED.buy_price_cents,
		sell_platform            = EXCLUDED.sell_platform,
		sell_market_id           = EXCLUDED.sell_market_id,
		sell_price_cents         = EXCLUDED.sell_price_cents,
		spread_percent           = EXCLUDED.spread_percent,
		estimated_profit_percent = EXCLUDED.estimated_profit_percent,
		buy_volume               = EXCLUDED.buy_volume,
		sell_volume              = EXCLUDED.sell_volume,
		expires_at               = EXCLUDED.expires_at,
		match_score              = EXCLUDED.match_score,
		match_reason             = EXCLUDED.match_reason,
		computed_at              = EXCLUDED.computed_at,
		updated_at               = NOW()`

// UpsertOpportunity writes o, replacing any row with the same match key.
func (s *OpportunityStore) UpsertOpportunity(ctx context.Context, o domain.Opportunity) error {
	_, err := s.db.Exec(ctx, upsertOpportunity,
		o.MatchKey, o.EventTitle, o.Category,
		string(o.BuyPlatform), o.BuyMarketID, o.BuyPrice,
		string(o.SellPlatform), o.SellMarketID, o.SellPrice,
		o.SpreadPercent, o.EstimatedProfitPercent,
		o.BuyVolume, o.SellVolume, o.ExpiresAt,
		o.MatchScore, o.MatchReason, time.UnixMilli(o.ComputedAtEpochMs).UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert opportunity %s: %w: %w", o.MatchKey, domain.ErrPersistence, err)
	}
	return nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
