package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type recordingExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func TestUpsertOpportunity(t *testing.T) {
	db := &recordingExec{}
	store := &OpportunityStore{db: db}
	exp := time.Date(2028, 11, 7, 0, 0, 0, 0, time.UTC)
	opp := domain.Opportunity{
		MatchKey:               "polymarket:0xabc",
		EventTitle:             "Trump wins the 2028 presidential election",
		Category:               "politics",
		BuyPlatform:            domain.PlatformPolymarket,
		BuyMarketID:            "0xabc",
		BuyPrice:               42,
		SellPlatform:           domain.PlatformKalshi,
		SellMarketID:           "PRES-2028-DJT",
		SellPrice:              47,
		SpreadPercent:          11.9,
		EstimatedProfitPercent: 9.9,
		ExpiresAt:              &exp,
		MatchScore:             93.75,
		ComputedAtEpochMs:      1_760_000_000_000,
	}

	require.NoError(t, store.UpsertOpportunity(context.Background(), opp))
	assert.Contains(t, db.sql, "ON CONFLICT (match_key) DO UPDATE")
	require.Len(t, db.args, 17)
	assert.Equal(t, "polymarket:0xabc", db.args[0])
	assert.Equal(t, "polymarket", db.args[3])
	assert.Equal(t, int64(42), db.args[5])
	assert.Equal(t, "kalshi", db.args[6])
	assert.Equal(t, &exp, db.args[13])
	assert.Equal(t, time.UnixMilli(1_760_000_000_000).UTC(), db.args[16])
	assert.Equal(t, 17, strings.Count(db.sql, "$"))
}

func TestUpsertOpportunityWrapsFailure(t *testing.T) {
	cause := errors.New("connection reset")
	store := &OpportunityStore{db: &recordingExec{err: cause}}

	err := store.UpsertOpportunity(context.Background(), domain.Opportunity{MatchKey: "kalshi:X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "kalshi:X")
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arb?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "arb", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/arb?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "arb", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://override", DSN(ClientConfig{DSN: "postgres://override", Host: "ignored"}))
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_arbitrage_opportunities.sql"}, names)
}
