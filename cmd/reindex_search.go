package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/psds-microservice/support-service/internal/application"
	"github.com/psds-microservice/support-service/internal/config"
	"github.com/spf13/cobra"
)

var reindexSearchCmd = &cobra.Command{
	Use:   "reindex-search",
	Short: "Reindex all tickets into search. Sends ticket.updated events and, if SEARCH_SERVICE_URL is set, indexes over HTTP.",
	RunE:  runReindexSearch,
}

func init() {
	rootCmd.AddCommand(reindexSearchCmd)
}

func runReindexSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Kafka.Brokers == "" && cfg.RabbitMQ.URL == "" && cfg.SearchServiceURL == "" {
		log.Println("reindex-search: none of KAFKA_BROKERS, RABBITMQ_URL, SEARCH_SERVICE_URL set, nothing to do")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	comp, err := application.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer comp.Close()

	log.Printf("reindex-search: found %d tickets", comp.Store.Len())
	n := comp.Service.Reindex(ctx, func(done, total int) {
		if done%50 == 0 || done == total {
			log.Printf("reindex-search: %d/%d", done, total)
		}
	})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reindex-search: stopped after %d tickets: %w", n, err)
	}
	log.Printf("reindex-search: done, %d tickets", n)
	return nil
}
