package testenv

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gti/jenkins-acceptance/internal/results"
)

// PostgresContainer is the ephemeral results database.
type PostgresContainer struct {
	Container        testcontainers.Container
	ConnectionString string
}

type PostgresConfig struct {
	Image    string
	Database string
	Username string
	Password string
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Image:    "postgres:16-alpine",
		Database: "acceptance_results_test",
		Username: "test_user",
		Password: "test_pass",
	}
}

// StartPostgres runs a PostgreSQL container and opens a results recorder on
// it, which migrates the schema. Call cleanup when done.
func StartPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresContainer, *results.Recorder, func(), error) {
	container, err := postgres.Run(ctx,
		cfg.Image,
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	rec, err := results.Open(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, nil, fmt.Errorf("failed to open results database: %w", err)
	}

	cleanup := func() {
		rec.Close()
		_ = container.Terminate(context.Background())
	}

	return &PostgresContainer{Container: container, ConnectionString: connStr}, rec, cleanup, nil
}
