//go:build integration

// Package e2e runs the platform against a real PostgreSQL instance.
package e2e

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txn2/mcp-kusto/pkg/kusto/kustotest"
	"github.com/txn2/mcp-kusto/pkg/platform"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mcp_kusto"),
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
	return dsn
}

func newPlatform(t *testing.T, dsn string, fake *kustotest.Cluster) *platform.Platform {
	t.Helper()
	cfg, err := platform.ParseConfig([]byte(`
clusters: [help]
cache:
  backend: postgres
query:
  default_database: Samples
audit:
  enabled: true
`))
	require.NoError(t, err)
	cfg.Database.DSN = dsn

	p, err := platform.New(platform.WithConfig(cfg), platform.WithHandleFactory(kustotest.Factory(fake)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Start(context.Background()))
	return p
}

func TestPostgresBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	dsn := startPostgres(t)
	ctx := context.Background()

	first := kustotest.Samples()
	p := newPlatform(t, dsn, first)
	assert.Equal(t, 1, first.Calls("schema:Samples"))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := p.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = ss.Close() }()
	cs, err := mcp.NewClient(&mcp.Implementation{Name: "e2e", Version: "0.0.1"}, nil).Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      platform.ToolValidateQuery,
		Arguments: map[string]any{"query": "StormEvents | summarize n = count() by State"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	// The audit middleware writes asynchronously.
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.Eventually(t, func() bool {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT count(*) FROM audit_logs WHERE tool_name = $1`, platform.ToolValidateQuery).Scan(&n)
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)

	// A second server sharing the database loads the catalog from it.
	second := kustotest.Samples()
	newPlatform(t, dsn, second)
	assert.Equal(t, 0, second.Calls("schema:Samples"))
	assert.Equal(t, 0, second.Calls("databases"))
}
