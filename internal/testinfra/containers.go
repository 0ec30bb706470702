// Package testinfra starts disposable infrastructure for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	KafkaImage     = "confluentinc/confluent-local:7.5.0"
	KafkaClusterID = "csvingest"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

// StartSimplePostgres starts a plain PostgreSQL container without TLS.
func StartSimplePostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

type KafkaContainer struct {
	*kafka.KafkaContainer
	Brokers []string
}

// StartKafka starts a single-node KRaft broker for event publishing tests.
func StartKafka(ctx context.Context) (*KafkaContainer, error) {
	ctr, err := kafka.Run(ctx, KafkaImage, kafka.WithClusterID(KafkaClusterID))
	if err != nil {
		return nil, fmt.Errorf("start kafka: %w", err)
	}

	brokers, err := ctr.Brokers(ctx)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get brokers: %w", err)
	}

	return &KafkaContainer{KafkaContainer: ctr, Brokers: brokers}, nil
}
