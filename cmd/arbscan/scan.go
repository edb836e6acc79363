package main

import (
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/arbscan/internal/config"
	"github.com/alanyoungcy/arbscan/internal/scan"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the result as JSON",
	Long: `Runs a single scan and writes the result to stdout as indented JSON.
Flags override the [scan] defaults from configuration.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	registerRequestFlags(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	return run(cmd, config.ModeScan)
}

// registerRequestFlags adds the scan request flags to cmd.
func registerRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("category", scan.CategoryAll, "category to keep, or \"all\"")
	f.Float64("min-spread", scan.DefaultMinSpreadPercent, "minimum spread percent")
	f.Int("max-markets", scan.DefaultMaxMarketsPerPlatform, "listings fetched per platform (max 500)")
	f.Float64("min-score", scan.DefaultMinMatchScore, "minimum match score (0-100)")
	f.Bool("debug", false, "include listing and pair samples in the result")
}

// requestFromFlags overrides req with every request flag the user set.
// Commands without request flags leave req unchanged.
func requestFromFlags(cmd *cobra.Command, req scan.Request) scan.Request {
	f := cmd.Flags()
	if f.Changed("category") {
		req.Category, _ = f.GetString("category")
	}
	if f.Changed("min-spread") {
		req.MinSpreadPercent, _ = f.GetFloat64("min-spread")
	}
	if f.Changed("max-markets") {
		req.MaxMarketsPerPlatform, _ = f.GetInt("max-markets")
	}
	if f.Changed("min-score") {
		req.MinMatchScore, _ = f.GetFloat64("min-score")
	}
	if f.Changed("debug") {
		req.Debug, _ = f.GetBool("debug")
	}
	return req
}
