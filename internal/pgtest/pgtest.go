// Package pgtest connects tests to the database named by TEST_DATABASE_URL.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/simpleaccount/repo/postgres"
)

// TestDB represents a migrated test database connection
type TestDB struct {
	Pool *pgxpool.Pool
}

// New connects to TEST_DATABASE_URL and applies the migrations. The test is
// skipped when the variable is unset.
func New(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	require.NoError(t, postgres.MigrateURL(ctx, connString), "Failed to migrate test database")

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	db := &TestDB{Pool: pool}
	db.Truncate(t)
	t.Cleanup(func() {
		db.Truncate(t)
		pool.Close()
	})
	return db
}

// Truncate removes all rows except the sentinel identity.
func (db *TestDB) Truncate(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx, `TRUNCATE reactions, content_categories, content, categories, profiles`)
	require.NoError(t, err, "Failed to truncate account tables")

	_, err = db.Pool.Exec(ctx, `DELETE FROM identities WHERE id <> '00000000-0000-0000-0000-000000000001'`)
	require.NoError(t, err, "Failed to clean identities")
}
