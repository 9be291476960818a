package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	rmqcontainer "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error

	rmqOnce sync.Once
	rmqURL  string
	rmqErr  error

	containerCleanups []func()
)

// getSharedPostgresDatabase returns a DSN for a PostgreSQL container that is
// reused across tests and terminated in TestMain.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}

	pgOnce.Do(func() {
		ctx := context.Background()

		container, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("riders"),
			pgcontainer.WithUsername("riders"),
			pgcontainer.WithPassword("riders"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			pgErr = err
			return
		}
		containerCleanups = append(containerCleanups, terminate(container))

		pgDSN, pgErr = container.ConnectionString(ctx, "sslmode=disable")
	})

	if pgErr != nil {
		t.Fatalf("postgres container: %v", pgErr)
	}
	return pgDSN
}

// getSharedRabbitMQ returns the AMQP URL of a shared RabbitMQ container.
func getSharedRabbitMQ(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping rabbitmq container in short mode")
	}

	rmqOnce.Do(func() {
		ctx := context.Background()

		container, err := rmqcontainer.Run(ctx, "rabbitmq:3.13-alpine")
		if err != nil {
			rmqErr = err
			return
		}
		containerCleanups = append(containerCleanups, terminate(container))

		rmqURL, rmqErr = container.AmqpURL(ctx)
	})

	if rmqErr != nil {
		t.Fatalf("rabbitmq container: %v", rmqErr)
	}
	return rmqURL
}

func terminate(c testcontainers.Container) func() {
	return func() {
		_ = testcontainers.TerminateContainer(c)
	}
}
