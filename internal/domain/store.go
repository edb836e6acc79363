package domain

import "context"

// OpportunityStore persists arbitrage opportunities keyed by MatchKey. A
// write for an existing key overwrites the stored record.
type OpportunityStore interface {
	UpsertOpportunity(ctx context.Context, opp Opportunity) error
}
