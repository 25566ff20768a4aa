package commands

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/nwtelemetry/huboffload/internal/automation"
	"github.com/nwtelemetry/huboffload/internal/config"
	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/pipeline"
	"github.com/nwtelemetry/huboffload/internal/registry"
)

// deps bundles the wired services a command needs, with a cleanup func for
// the connection pool.
type deps struct {
	cfg      *config.Config
	store    *database.PostgresStore
	registry *registry.Service
	cleanup  func()
}

func buildDeps() (*deps, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dbpool, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	store := database.NewPostgresStore(context.Background(), dbpool)
	return &deps{
		cfg:      cfg,
		store:    store,
		registry: registry.NewService(store),
		cleanup:  func() { dbpool.Close() },
	}, nil
}

func buildRunner(d *deps) (*pipeline.Runner, error) {
	if err := d.cfg.ValidateScrape(); err != nil {
		return nil, err
	}

	scraper := automation.NewScraper(automation.Credentials{
		StartURL: d.cfg.OktaStartURL,
		Email:    d.cfg.OktaEmail,
		Password: d.cfg.OktaPassword,
	}, d.cfg.Headless)

	runner := pipeline.NewRunner(scraper, d.store)
	runner.SetInterDeviceDelay(d.cfg.InterDeviceDelay)
	return runner, nil
}

// NewSetupCommand creates the setup command. It prepares the database
// schema and optionally seeds the device registry.
func NewSetupCommand() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the database schema and seed the device registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.cleanup()

			if err := d.store.EnsureSchema(); err != nil {
				return fmt.Errorf("failed to set up schema: %w", err)
			}
			log.Println("Database schema is ready")

			if seedFile == "" {
				seedFile = d.cfg.SeedFile
			}
			if seedFile != "" {
				added, err := d.registry.SeedFromFile(seedFile)
				if err != nil {
					return err
				}
				log.Printf("Seeded %d device(s) from %s", added, seedFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML file listing devices to register")

	return cmd
}
