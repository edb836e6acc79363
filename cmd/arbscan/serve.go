package main

import (
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/arbscan/internal/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan API",
	Long: `Starts the HTTP API:

  GET|POST /api/scan    run a scan and return ranked opportunities
  GET      /api/health  dependency health
  GET      /metrics     Prometheus metrics`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, config.ModeServe)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}
