// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates and configures the root command. Running it with no
// subcommand starts a harvest.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Sweeps book detail pages into a flat CSV dataset",
		Long: `harvester walks book identifiers upward from a start id, fetches each
detail page, resolves the embedded Apollo state into an 18-column record, and
appends every resolved record to a CSV file (and optionally Postgres).
It runs until interrupted with SIGINT or SIGTERM.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd.Context(), cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars use the HARVESTER_ prefix")
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		os.Exit(1)
	}
}
