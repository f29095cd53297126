package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/database"
)

// PostgresImage is the stock PostgreSQL image integration tests run against.
const PostgresImage = "postgres:16-alpine"

// TestDB holds a shared test database container and a migrated connection pool.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once, migrated, and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "delphi_test",
			"POSTGRES_USER":     "delphi",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The entrypoint restarts postgres once after init, so wait for the second banner.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://delphi:test_password@%s:%s/delphi_test?sslmode=disable",
		host, port.Port())

	var db *database.DB
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: 10,
		})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := database.RunPoolMigrations(db, zap.NewNop()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// ScopedContext returns a context carrying a pooled connection from the shared test database.
// The connection is released when the test finishes.
func ScopedContext(t *testing.T, testDB *TestDB) context.Context {
	t.Helper()

	scope, err := testDB.DB.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire connection: %v", err)
	}
	t.Cleanup(scope.Close)

	return database.SetScope(context.Background(), scope)
}
