package application

import (
	"context"
	"testing"

	"github.com/psds-microservice/support-service/internal/config"
	"github.com/psds-microservice/support-service/internal/filter"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(seed bool) *config.Config {
	cfg := &config.Config{Storage: config.StorageMemory, HTTPPort: "0", SeedData: seed}
	cfg.Kafka.TopicTicket = "support.tickets"
	return cfg
}

func TestBuildMemoryWithSeed(t *testing.T) {
	comp, err := Build(context.Background(), memoryConfig(true))
	require.NoError(t, err)
	defer comp.Close()

	assert.Equal(t, 4, comp.Store.Len())
	assert.Nil(t, comp.Journal)
	assert.NoError(t, comp.Ready())

	agent := model.Actor{Role: model.RoleCS}
	assert.Len(t, comp.Service.FilterTickets(agent, "", filter.Facets{}), 4)
}

func TestBuildMemoryEmpty(t *testing.T) {
	comp, err := Build(context.Background(), memoryConfig(false))
	require.NoError(t, err)
	defer comp.Close()

	assert.Equal(t, 0, comp.Store.Len())
	assert.Len(t, comp.Service.Products(), 6, "the catalogue is always there")
}

func TestProducersDisabledWithoutBrokers(t *testing.T) {
	c := &Components{}
	assert.Nil(t, c.producers(memoryConfig(false)))
	assert.NoError(t, c.Close())
}

func TestProducersKafkaOnly(t *testing.T) {
	cfg := memoryConfig(false)
	cfg.Kafka.Brokers = "localhost:9092"
	c := &Components{}
	assert.NotNil(t, c.producers(cfg))
	assert.Len(t, c.closers, 1)
	assert.NoError(t, c.Close())
}
