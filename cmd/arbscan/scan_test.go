package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/scan"
)

func TestRequestFromFlags(t *testing.T) {
	base := scan.Request{
		Category:              "politics",
		MinSpreadPercent:      1.5,
		MaxMarketsPerPlatform: 150,
		MinMatchScore:         65,
	}

	tests := []struct {
		name string
		args []string
		want scan.Request
	}{
		{
			name: "no flags keeps configured defaults",
			want: base,
		},
		{
			name: "set flags override",
			args: []string{"--category", "crypto", "--min-spread=3", "--debug"},
			want: scan.Request{
				Category:              "crypto",
				MinSpreadPercent:      3,
				MaxMarketsPerPlatform: 150,
				MinMatchScore:         65,
				Debug:                 true,
			},
		},
		{
			name: "explicit default value still overrides",
			args: []string{"--max-markets", "200", "--min-score", "60"},
			want: scan.Request{
				Category:              "politics",
				MinSpreadPercent:      1.5,
				MaxMarketsPerPlatform: 200,
				MinMatchScore:         60,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "scan"}
			registerRequestFlags(cmd)
			require.NoError(t, cmd.ParseFlags(tt.args))
			assert.Equal(t, tt.want, requestFromFlags(cmd, base))
		})
	}
}

func TestRequestFromFlagsWithoutRequestFlags(t *testing.T) {
	base := scan.DefaultRequest()
	assert.Equal(t, base, requestFromFlags(&cobra.Command{Use: "serve"}, base))
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "scan", "watch"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, watchCmd.Flags().Lookup("min-spread"))
	assert.Nil(t, serveCmd.Flags().Lookup("min-spread"))
}
