package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nwtelemetry/huboffload/internal/models"
)

// RunOptions holds command-line options for the run command.
type RunOptions struct {
	StartDate string
	EndDate   string
	JSON      bool
}

// NewRunCommand creates the run command, which scrapes a single device.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <nas-id>",
		Short: "Scrape and reconcile one device's daily offload report",
		Long: `Run the full pipeline for a single NAS ID: sign in, capture the NASID
Daily export, parse it and reconcile the rows into Postgres.

Without flags the report's default window is used. Pass --start and --end
together to scrape a custom date range.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.StartDate, "start", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "Window end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the run summary as JSON")

	return cmd
}

func runDevice(nasID string, opts *RunOptions) error {
	req := models.RunRequest{NasID: nasID}
	var err error
	if req.StartDate, err = parseDateFlag(opts.StartDate, "--start"); err != nil {
		return err
	}
	if req.EndDate, err = parseDateFlag(opts.EndDate, "--end"); err != nil {
		return err
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.cleanup()

	runner, err := buildRunner(d)
	if err != nil {
		return err
	}

	summary, err := runner.RunDevice(req)
	if err != nil {
		return err
	}

	return printSummaries([]models.RunSummary{*summary}, opts.JSON)
}

func parseDateFlag(value, flag string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: use YYYY-MM-DD", flag, value)
	}
	return parsed, nil
}

func printSummaries(summaries []models.RunSummary, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summaries)
	}

	for _, s := range summaries {
		status := "ok"
		if !s.Success {
			status = "FAILED"
		}
		fmt.Printf("%-20s %-7s processed=%d upserted=%d changed=%d errors=%d\n",
			s.NasID, status, s.TotalProcessed, s.TotalUpserted, s.TotalChanged, len(s.Errors))
		for _, rowErr := range s.Errors {
			fmt.Printf("  %s: %s\n", rowErr.Key, rowErr.Err)
		}
	}
	return nil
}
