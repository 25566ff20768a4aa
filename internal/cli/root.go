// Package cli provides the command-line interface for the offload scraper.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nwtelemetry/huboffload/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "huboffload",
		Short: "Scrape daily network offload usage from the HUB portal",
		Long: `huboffload drives a headless browser through the HUB reporting portal,
captures the daily offload exports and reconciles them into Postgres.

Runs are idempotent: re-scraping a window only writes rows whose values
actually changed, and every run leaves exactly one audit entry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewRunAllCommand())
	rootCmd.AddCommand(commands.NewAggregateCommand())
	rootCmd.AddCommand(commands.NewDevicesCommand())
	rootCmd.AddCommand(commands.NewSetupCommand())

	return rootCmd
}
