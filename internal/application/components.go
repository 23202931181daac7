package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/psds-microservice/support-service/internal/config"
	"github.com/psds-microservice/support-service/internal/database"
	"github.com/psds-microservice/support-service/internal/kafka"
	"github.com/psds-microservice/support-service/internal/mq"
	"github.com/psds-microservice/support-service/internal/repository"
	"github.com/psds-microservice/support-service/internal/searchindex"
	"github.com/psds-microservice/support-service/internal/service"
	"github.com/psds-microservice/support-service/internal/store"
	"gorm.io/gorm"
)

// Components: общий набор зависимостей для api, reindex-search и seed.
type Components struct {
	Store   *store.Store
	Service *service.TicketService
	Journal *repository.Journal // nil при STORAGE=memory
	Search  *searchindex.Client

	db      *gorm.DB
	closers []func() error
}

// Build поднимает хранилище, продюсеры событий и сервис по конфигу.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{Search: searchindex.NewClient(cfg.SearchServiceURL)}

	seed := store.Catalogue()
	var opts []store.Option
	if cfg.UsesDatabase() {
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(cfg.DSN(), cfg.LogLevel == "debug")
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		c.db = db
		c.closers = append(c.closers, func() error { return database.Close(db) })
		c.Journal = repository.NewJournal(db)

		loaded, err := c.Journal.LoadAll(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("load journal: %w", err)
		}
		seed = loaded
		if len(seed.Tickets) == 0 && cfg.SeedData {
			demo := store.DefaultSeed(time.Now())
			if err := c.Journal.Import(ctx, demo); err != nil {
				c.Close()
				return nil, fmt.Errorf("seed journal: %w", err)
			}
			log.Printf("storage: journal was empty, imported %d demo tickets", len(demo.Tickets))
			seed = demo
		}
		opts = append(opts, store.WithPersister(c.Journal))
	} else if cfg.SeedData {
		seed = store.DefaultSeed(time.Now())
	}
	c.Store = store.New(seed, opts...)
	log.Printf("storage: %s, %d tickets loaded", cfg.Storage, c.Store.Len())

	c.Service = service.NewTicketService(service.Deps{
		Store:    c.Store,
		Producer: c.producers(cfg),
		Search:   c.Search,
	})
	return c, nil
}

// producers собирает Kafka и RabbitMQ в один приёмник. Недоступный брокер
// не мешает старту: события best-effort.
func (c *Components) producers(cfg *config.Config) service.EventProducer {
	var sinks mq.Fanout
	if brokers := kafka.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		p := kafka.NewProducer(brokers, cfg.Kafka.TopicTicket)
		c.closers = append(c.closers, p.Close)
		sinks = append(sinks, p)
		log.Printf("events: kafka topic %s", cfg.Kafka.TopicTicket)
	}
	if cfg.RabbitMQ.URL != "" {
		p, err := mq.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Printf("events: rabbitmq unavailable, continuing without it: %v", err)
		} else {
			c.closers = append(c.closers, p.Close)
			sinks = append(sinks, p)
			log.Printf("events: rabbitmq exchange %s", cfg.RabbitMQ.Exchange)
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// Ready: проверка для /ready: при хранении в БД пингуем пул.
func (c *Components) Ready() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close закрывает продюсеры и БД в обратном порядке открытия.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
