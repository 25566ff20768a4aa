package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nwtelemetry/huboffload/internal/database"
)

// NewDevicesCommand creates the devices command group for managing the
// scrape list.
func NewDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage the device registry",
	}

	cmd.AddCommand(newDevicesListCommand())
	cmd.AddCommand(newDevicesAddCommand())
	cmd.AddCommand(newDevicesRemoveCommand())

	return cmd
}

func newDevicesListCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.cleanup()

			devices, err := d.registry.List()
			if err != nil {
				return err
			}

			fmt.Printf("%-20s %-25s %-8s %s\n", "NAS-ID", "NAME", "ACTIVE", "LAST SCRAPED")
			for _, device := range devices {
				if !device.Active && !all {
					continue
				}
				lastScraped := "never"
				if !device.LastScrape.IsZero() {
					lastScraped = database.DayKey(device.LastScrape)
				}
				fmt.Printf("%-20s %-25s %-8t %s\n", device.NasID, device.Name, device.Active, lastScraped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include removed devices")

	return cmd
}

func newDevicesAddCommand() *cobra.Command {
	var name, notes string

	cmd := &cobra.Command{
		Use:   "add <nas-id>",
		Short: "Register a device for scraping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.cleanup()

			device, err := d.registry.Add(args[0], name, notes)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s)\n", device.NasID, device.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable device name")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")

	return cmd
}

func newDevicesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <nas-id>",
		Short: "Remove a device from the scrape list",
		Long: `Remove a device from the scrape list. The device's historical usage
rows are kept; only future sweeps skip it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.cleanup()

			if err := d.registry.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s from the scrape list\n", args[0])
			return nil
		},
	}
}
