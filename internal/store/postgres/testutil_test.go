package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container, applies the embedded migrations,
// and returns a connected client. Returns a cleanup function that must be
// called after tests complete.
func setupTestDB(t *testing.T) (*Client, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err, "failed to create client")

	require.NoError(t, client.RunMigrations(ctx), "failed to run migrations")

	cleanup := func() {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return client, cleanup
}

func countRows(t *testing.T, client *Client, table string) int64 {
	t.Helper()
	var n int64
	err := client.Pool().QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n)
	require.NoError(t, err)
	return n
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
