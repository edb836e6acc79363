package main

import (
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/arbscan/internal/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan on an interval and log a summary of each run",
	Long: `Runs a scan immediately and then every scan.interval until interrupted.
Each run is persisted, published and archived when those sinks are enabled.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, config.ModeWatch)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
	registerRequestFlags(watchCmd)
}
