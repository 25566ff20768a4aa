package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAggregateCommand creates the aggregate command, which scrapes the
// fleet-wide Data Usage Timeline report.
func NewAggregateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Scrape and reconcile the fleet-wide daily offload totals",
		Args:  cobra.NoArgs,
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

			result, err := runner.RunAggregate()
			if err != nil {
				return err
			}

			fmt.Printf("parsed=%d inserted=%d updated=%d written=%d\n",
				result.TotalParsed, result.Inserted, result.Updated, result.Upserted)
			return nil
		},
	}

	return cmd
}
