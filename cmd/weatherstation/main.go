// Weatherstation publishes street weather readings over MQTT.
//
// The daemon watches the network link, keeps one broker session alive with
// fixed-delay retries, and publishes the combined weather document on a
// fixed interval. Readings are also written to InfluxDB when enabled and
// every publish attempt is recorded in a local SQLite journal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Without a subcommand the station
// daemon runs.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "weatherstation",
		Short:         "Street weather station MQTT uplink",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env WEATHERSTATION_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the station daemon",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		newPayloadCmd(&configPath),
		newJournalCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "weatherstation %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)

	return root
}

// getConfigPath returns the configuration file path.
// Uses WEATHERSTATION_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WEATHERSTATION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
