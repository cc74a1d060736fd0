package analyzer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-kusto/pkg/analyzer"
	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kql"
	"github.com/txn2/mcp-kusto/pkg/kusto"
	"github.com/txn2/mcp-kusto/pkg/kusto/kustotest"
)

func TestCrossReferences(t *testing.T) {
	q, err := kql.Parse(`let X = database('A').T;
union X, cluster('Other').database('B').U, database('A').V
| join (database("C").W) on k`)
	require.NoError(t, err)

	refs := analyzer.CrossReferences(q)
	got := make([]string, len(refs))
	for i, r := range refs {
		got[i] = r.String()
	}
	assert.Equal(t, []string{
		"database('A')",
		"cluster('Other').database('B')",
		"database('C')",
	}, got)
}

func TestCrossReferences_IgnoresComputedNames(t *testing.T) {
	q, err := kql.Parse("let n = 'A'; database(n).T | count")
	require.NoError(t, err)
	assert.Empty(t, analyzer.CrossReferences(q))
}

func TestResolve_LeavesInputStateUntouched(t *testing.T) {
	help := kustotest.Samples().AddDatabase("Logs", "", kustotest.Table("Traces", "Message", "string"))
	reg, err := kusto.NewRegistry([]kusto.ClusterIdentity{help.ID}, kusto.CredentialDefault, kustotest.Factory(help))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	loader := catalog.NewLoader(reg)
	infos, err := loader.DiscoverDatabases(context.Background(), help.ID)
	require.NoError(t, err)
	samples, err := loader.LoadDatabase(context.Background(), help.ID, infos[0])
	require.NoError(t, err)

	// Logs is listed but not loaded.
	state := catalog.NewGlobalState(catalog.NewClusterCatalog(help.ID, infos)).
		WithDatabase(help.ID, samples).
		WithCurrent(help.ID, "Samples")

	q, err := kql.Parse("database('Logs').Traces")
	require.NoError(t, err)

	res, err := analyzer.NewResolver(loader, reg).Resolve(context.Background(), state, q)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "Logs", res.Updates[0].Database.Name)

	before, err := state.Database(help.ID, "Logs")
	require.NoError(t, err)
	assert.False(t, before.Loaded)

	after, err := res.State.Database(help.ID, "Logs")
	require.NoError(t, err)
	assert.True(t, after.Loaded)
}

func TestResolve_TransportFailureIsReported(t *testing.T) {
	help := kustotest.Samples().AddDatabase("Logs", "", kustotest.Table("Traces", "Message", "string"))
	help.FailSchema("Logs", errors.New("forbidden"))
	reg, err := kusto.NewRegistry([]kusto.ClusterIdentity{help.ID}, kusto.CredentialDefault, kustotest.Factory(help))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	loader := catalog.NewLoader(reg)
	infos, err := loader.DiscoverDatabases(context.Background(), help.ID)
	require.NoError(t, err)
	samples, err := loader.LoadDatabase(context.Background(), help.ID, infos[0])
	require.NoError(t, err)
	state := catalog.NewGlobalState(catalog.NewClusterCatalog(help.ID, infos)).
		WithDatabase(help.ID, samples).
		WithCurrent(help.ID, "Samples")

	q, err := kql.Parse("database('Logs').Traces")
	require.NoError(t, err)

	res, err := analyzer.NewResolver(loader, reg).Resolve(context.Background(), state, q)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	var te *kusto.TransportError
	assert.True(t, errors.As(res.Failures[0], &te))
	assert.Equal(t, "database('Logs')", res.Failures[0].Ref.String())
	assert.Empty(t, res.Updates)
}
