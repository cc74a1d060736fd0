//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/database/migrate"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("catalog"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrate.Run(db))
	return db
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := startPostgres(t)
	s, err := New(db)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	id := kusto.MustParseClusterIdentity("help")

	_, err = s.LoadDatabase(ctx, id, "Samples")
	require.ErrorIs(t, err, catalog.ErrCacheMiss)

	require.NoError(t, s.SaveDatabase(ctx, id, samples()))
	require.NoError(t, s.SaveDatabase(ctx, id, samples()), "upsert replaces")
	require.NoError(t, s.SaveDatabase(ctx, id, catalog.NewDatabaseCatalog(kusto.DatabaseInfo{Name: "Old"}, nil)))

	got, err := s.LoadDatabase(ctx, id, "Samples")
	require.NoError(t, err)
	assert.Equal(t, samples(), got)

	infos := []kusto.DatabaseInfo{{Name: "Samples"}}
	require.NoError(t, s.SaveIndex(ctx, id, infos))
	gotInfos, err := s.LoadIndex(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, infos, gotInfos)

	fps, err := s.Fingerprints(ctx, id)
	require.NoError(t, err)
	assert.Len(t, fps, 1, "databases missing from the index are pruned")
	assert.Contains(t, fps, "Samples")
}
