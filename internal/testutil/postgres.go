// Package testutil provides test helpers including container management
// and test client utilities.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/tictactoe-bot/internal/config"
	"github.com/cory-johannsen/tictactoe-bot/internal/storage/postgres"
	"github.com/cory-johannsen/tictactoe-bot/migrations"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	pc, err := startPostgres(context.Background())
	if err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(pc.terminate)
	return pc
}

func startPostgres(ctx context.Context) (*PostgresContainer, error) {
	start := time.Now()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("getting container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("getting mapped port: %w", err)
	}

	dbCfg := config.DatabaseConfig{
		Enabled:         true,
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("connecting to test postgres: %w [%s]", err, time.Since(start))
	}

	return &PostgresContainer{
		container: container,
		Pool:      pool,
		Config:    dbCfg,
	}, nil
}

func (pc *PostgresContainer) terminate() {
	pc.Pool.Close()
	_ = pc.container.Terminate(context.Background())
}

// ApplyMigrations runs the embedded schema migrations.
//
// Precondition: Pool must be connected.
// Postcondition: The game_results table exists in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	if err := pc.migrate(); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
}

func (pc *PostgresContainer) migrate() error {
	m, err := migrations.New(pc.DSN())
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}

var (
	sharedOnce sync.Once
	shared     *PostgresContainer
	sharedErr  error
)

// NewPool returns a pool on a migrated database shared by every test in
// the package. The container lives until the test binary exits. Tests are
// skipped under -short.
func NewPool(t *testing.T) *postgres.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	sharedOnce.Do(func() {
		shared, sharedErr = startPostgres(context.Background())
		if sharedErr == nil {
			sharedErr = shared.migrate()
		}
	})
	if sharedErr != nil {
		t.Fatalf("shared postgres: %v", sharedErr)
	}
	return shared.Pool
}
