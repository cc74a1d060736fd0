//go:build integration

package migrate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = pg.Terminate(ctx) }()

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("Run applies migrations", func(t *testing.T) {
		require.NoError(t, Run(db))
		require.True(t, tableExists(t, db, "catalog_databases"))
		require.True(t, tableExists(t, db, "catalog_indexes"))
		require.True(t, tableExists(t, db, "audit_logs"))
	})

	t.Run("Run is idempotent", func(t *testing.T) {
		require.NoError(t, Run(db))
		version, dirty, err := Version(db)
		require.NoError(t, err)
		require.False(t, dirty)
		require.Equal(t, uint(2), version)
	})

	t.Run("Down and Steps", func(t *testing.T) {
		require.NoError(t, Down(db))
		require.False(t, tableExists(t, db, "catalog_databases"))

		require.NoError(t, Steps(db, 1))
		version, _, err := Version(db)
		require.NoError(t, err)
		require.Equal(t, uint(1), version)
		require.False(t, tableExists(t, db, "audit_logs"))
	})
}
