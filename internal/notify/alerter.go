package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/scan"
)

// maxAlertLines caps how many opportunities one alert lists.
const maxAlertLines = 5

type alerted struct {
	at     time.Time
	spread float64
}

// Alerter turns scan results into alerts. An opportunity is alerted when its
// spread reaches the threshold, and is then quiet for the cooldown unless
// its spread widens. It is safe for concurrent use.
type Alerter struct {
	senders   []Sender
	minSpread float64
	cooldown  time.Duration

	mu   sync.Mutex
	seen map[string]alerted
	now  func() time.Time

	logger *slog.Logger
}

// NewAlerter creates an Alerter over senders.
func NewAlerter(senders []Sender, minSpreadPercent float64, cooldown time.Duration, logger *slog.Logger) *Alerter {
	return &Alerter{
		senders:   senders,
		minSpread: minSpreadPercent,
		cooldown:  cooldown,
		seen:      make(map[string]alerted),
		now:       time.Now,
		logger:    logger.With(slog.String("component", "notify")),
	}
}

// Alert sends one message listing the new opportunities in res and returns
// how many it listed. Opportunities are only marked as alerted when at least
// one sender delivered.
func (a *Alerter) Alert(ctx context.Context, res scan.Result) (int, error) {
	if len(a.senders) == 0 {
		return 0, nil
	}

	a.mu.Lock()
	now := a.now()
	a.prune(now)
	var fresh []domain.Opportunity
	for _, o := range res.Opportunities {
		if o.SpreadPercent < a.minSpread {
			continue
		}
		if prev, ok := a.seen[o.MatchKey]; ok && o.SpreadPercent <= prev.spread {
			continue
		}
		fresh = append(fresh, o)
		if len(fresh) == maxAlertLines {
			break
		}
	}
	a.mu.Unlock()

	if len(fresh) == 0 {
		return 0, nil
	}

	title := fmt.Sprintf("arbscan: %d new opportunit%s", len(fresh), plural(len(fresh)))
	delivered, err := a.dispatch(ctx, title, formatOpportunities(fresh))
	if delivered > 0 {
		a.mu.Lock()
		for _, o := range fresh {
			a.seen[o.MatchKey] = alerted{at: now, spread: o.SpreadPercent}
		}
		a.mu.Unlock()
	}
	return len(fresh), err
}

// prune drops entries older than the cooldown. Callers hold mu.
func (a *Alerter) prune(now time.Time) {
	for key, s := range a.seen {
		if now.Sub(s.at) >= a.cooldown {
			delete(a.seen, key)
		}
	}
}

// dispatch sends to every sender. A failing sender does not stop the rest.
func (a *Alerter) dispatch(ctx context.Context, title, message string) (int, error) {
	var (
		delivered int
		errs      []error
	)
	for _, s := range a.senders {
		if err := s.Send(ctx, title, message); err != nil {
			a.logger.ErrorContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

func formatOpportunities(opps []domain.Opportunity) string {
	var b strings.Builder
	for i, o := range opps {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%.2f%% %s: buy %s @ %d¢, sell %s @ %d¢ (score %.0f)",
			o.SpreadPercent, o.EventTitle,
			o.BuyPlatform, o.BuyPrice,
			o.SellPlatform, o.SellPrice,
			o.MatchScore,
		)
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
