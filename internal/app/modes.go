package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/scan"
	"github.com/alanyoungcy/arbscan/internal/server"
	"github.com/alanyoungcy/arbscan/internal/server/handler"
)

// runner runs one scan per call.
type runner interface {
	Run(ctx context.Context, req scan.Request) scan.Result
}

// alerter reports new opportunities from a result.
type alerter interface {
	Alert(ctx context.Context, res scan.Result) (int, error)
}

// ServeMode serves the scan API until ctx ends, then drains in-flight
// requests within the configured shutdown timeout.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode", slog.Int("port", a.cfg.Server.Port))

	g, ctx := errgroup.WithContext(ctx)
	a.startResets(ctx, g, deps)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Pingers, a.logger),
		Scan:   handler.NewScanHandler(deps.Scanner, RequestDefaults(a.cfg), a.logger),
	}, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ScanMode runs a single scan and writes the result as indented JSON.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies, req scan.Request) error {
	a.logger.InfoContext(ctx, "starting scan mode", slog.String("category", req.Category))
	res := deps.Scanner.Run(ctx, req)
	if err := writeResult(a.out, res); err != nil {
		return err
	}
	if res.Error != "" {
		return fmt.Errorf("app: scan %s: %s", res.ScanID, res.Error)
	}
	return nil
}

// WatchMode scans immediately and then every configured interval until ctx
// ends.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies, req scan.Request) error {
	interval := a.cfg.Scan.Interval.Duration
	a.logger.InfoContext(ctx, "starting watch mode", slog.Duration("interval", interval))

	g, ctx := errgroup.WithContext(ctx)
	a.startResets(ctx, g, deps)
	var al alerter
	if deps.Alerter != nil {
		al = deps.Alerter
	}
	g.Go(func() error {
		return watch(ctx, deps.Scanner, req, interval, al, a.logger)
	})
	return g.Wait()
}

// startResets clears the process-local limiter on the configured interval.
func (a *App) startResets(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.LocalLimiter == nil || a.cfg.Upstream.ResetInterval.Duration <= 0 {
		return
	}
	g.Go(func() error {
		deps.LocalLimiter.RunResets(ctx, a.cfg.Upstream.ResetInterval.Duration)
		return nil
	})
}

// watch scans every interval and alerts on each result. al may be nil.
func watch(ctx context.Context, r runner, req scan.Request, interval time.Duration, al alerter, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := r.Run(ctx, req)
		attrs := []slog.Attr{
			slog.String("scan_id", res.ScanID),
			slog.Int("opportunities", res.Count),
			slog.Int("matched_pairs", res.Stats.MatchedPairs),
			slog.Int64("elapsed_ms", res.Stats.ElapsedMs),
		}
		if len(res.Opportunities) > 0 {
			top := res.Opportunities[0]
			attrs = append(attrs,
				slog.String("top_match_key", top.MatchKey),
				slog.Float64("top_spread_pct", top.SpreadPercent),
			)
		}
		switch {
		case res.Error != "":
			logger.LogAttrs(ctx, slog.LevelError, "watch: scan failed", append(attrs, slog.String("error", res.Error))...)
		case res.Message != "":
			logger.LogAttrs(ctx, slog.LevelInfo, "watch: scan finished", append(attrs, slog.String("message", res.Message))...)
		default:
			logger.LogAttrs(ctx, slog.LevelInfo, "watch: scan finished", attrs...)
		}
		if al != nil && res.Error == "" {
			if n, err := al.Alert(ctx, res); err != nil {
				logger.Warn("watch: alert failed", slog.String("error", err.Error()))
			} else if n > 0 {
				logger.Info("watch: alert sent", slog.Int("opportunities", n))
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func writeResult(w io.Writer, res scan.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("app: write result: %w", err)
	}
	return nil
}
