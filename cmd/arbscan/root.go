package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/arbscan/internal/app"
	"github.com/alanyoungcy/arbscan/internal/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "arbscan",
	Short: "Cross-venue prediction market arbitrage scanner",
	Long: `arbscan pulls open listings from Polymarket and Kalshi, matches listings
that describe the same event, prices each matched pair from recent orderbooks
and ranks the cross-venue spreads.

Configuration comes from an optional TOML file, a .env file and ARBSCAN_*
environment variables, in increasing precedence.`,
	SilenceUsage: true,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	configPath string
	logLevel   string
)

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
}

// loadConfig loads, overrides and validates the configuration for mode.
func loadConfig(mode string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Mode = mode
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the JSON logger and installs it as the default. Logs go
// to stderr so scan output on stdout stays parseable.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}

// run executes the application in mode until SIGINT or SIGTERM. Request
// flags set on cmd override the configured scan defaults.
func run(cmd *cobra.Command, mode string) error {
	cfg, err := loadConfig(mode)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	logger.Info("arbscan starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := requestFromFlags(cmd, app.RequestDefaults(cfg))
	if err := application.RunScan(ctx, req); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("arbscan stopped")
	return nil
}
