package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/psds-microservice/support-service/internal/config"
	"github.com/psds-microservice/support-service/internal/database"
	"github.com/psds-microservice/support-service/internal/repository"
	"github.com/psds-microservice/support-service/internal/store"
	"github.com/spf13/cobra"
)

var seedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo tickets into the PostgreSQL journal",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "import even if the journal already has tickets")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Storage = config.StoragePostgres
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN(), false)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	journal := repository.NewJournal(db)
	n, err := journal.Count(ctx)
	if err != nil {
		return fmt.Errorf("count tickets: %w", err)
	}
	if n > 0 && !seedForce {
		log.Printf("seed: journal already has %d tickets, use --force to import anyway", n)
		return nil
	}
	demo := store.DefaultSeed(time.Now())
	if err := journal.Import(ctx, demo); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Printf("seed: imported %d tickets, %d messages", len(demo.Tickets), len(demo.Messages))
	return nil
}
