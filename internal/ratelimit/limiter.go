// Package ratelimit is the in-process sliding-window implementation of
// domain.RateLimiter, used when no shared Redis limiter is configured.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

const waitPollInterval = 50 * time.Millisecond

// Limiter tracks request timestamps per key. It is created once per process
// and shared by every upstream client; Reset clears all windows.
type Limiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty Limiter.
func New(logger *slog.Logger) *Limiter {
	return &Limiter{
		hits:   make(map[string][]time.Time),
		now:    time.Now,
		logger: logger.With(slog.String("component", "ratelimit")),
	}
}

// Allow records a request for key and reports whether it fits within limit
// requests per window. Rejected requests are not recorded.
func (l *Limiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	hits := l.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= limit {
		l.hits[key] = hits
		return false, nil
	}
	l.hits[key] = append(hits, now)
	return true, nil
}

// Wait blocks until Allow admits a request for key or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		allowed, err := l.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("ratelimit: wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

// Reset forgets every recorded request.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = make(map[string][]time.Time)
}

// RunResets calls Reset every interval until ctx is cancelled.
func (l *Limiter) RunResets(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Reset()
			l.logger.Debug("ratelimit: windows reset")
		}
	}
}

var _ domain.RateLimiter = (*Limiter)(nil)
