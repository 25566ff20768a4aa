package commands

import (
	"github.com/spf13/cobra"
)

// NewRunAllCommand creates the run-all command, which sweeps every active
// registry device in sequence.
func NewRunAllCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Scrape every active device in the registry",
		Long: `Run the device pipeline for each active registry entry, one at a time.
A failed device is reported and the sweep moves on to the next one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.cleanup()

			runner, err := buildRunner(d)
			if err != nil {
				return err
			}

			summaries, err := runner.RunAll()
			if err != nil {
				return err
			}
			return printSummaries(summaries, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print run summaries as JSON")

	return cmd
}
