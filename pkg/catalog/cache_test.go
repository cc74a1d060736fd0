package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

func newSamplesCache() *Cache {
	return NewCache(NewGlobalState(NewClusterCatalog(helpID, []kusto.DatabaseInfo{{Name: "Samples"}})).
		WithDatabase(helpID, samplesDB()))
}

func TestCache_DescribeTable(t *testing.T) {
	c := newSamplesCache()

	tbl, err := c.DescribeTable("help.kusto.windows.net", "Samples", "StormEvents")
	require.NoError(t, err)
	assert.Equal(t, []ColumnCatalog{{Name: "StartTime", Type: "datetime"}, {Name: "State", Type: "string"}}, tbl.Columns)

	_, err = c.DescribeTable("help.kusto.windows.net", "Samples", "NoSuchTable")
	var nf *kusto.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, nf.Alternatives, "StormEvents")
}

func TestCache_NotFoundAlternativesAreExact(t *testing.T) {
	c := newSamplesCache()
	var nf *kusto.NotFoundError

	_, err := c.ListTables("help", "Missing")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"Samples"}, nf.Alternatives)

	_, err = c.ListTables("nowhere", "Samples")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"https://help.kusto.windows.net"}, nf.Alternatives)

	_, err = c.DescribeTable("help", "Missing", "StormEvents")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, kusto.KindDatabase, nf.Kind)
}

func TestCache_Listings(t *testing.T) {
	c := newSamplesCache()

	assert.Equal(t, []string{"https://help.kusto.windows.net"}, c.ListClusters())

	dbs, err := c.ListDatabases("help")
	require.NoError(t, err)
	assert.Equal(t, []DatabaseSummary{{Name: "Samples", Tables: 2, Loaded: true}}, dbs)

	tables, err := c.ListTables("help", "Samples")
	require.NoError(t, err)
	assert.Equal(t, []TableSummary{
		{Name: "PopulationData", Columns: 2},
		{Name: "StormEvents", Columns: 2},
	}, tables)

	summary := c.Summary()
	require.Len(t, summary, 1)
	assert.Equal(t, "https://help.kusto.windows.net", summary[0].Cluster)
	assert.Equal(t, []DatabaseWithTables{{Name: "Samples", Tables: []string{"PopulationData", "StormEvents"}}}, summary[0].Databases)
}

func TestCache_PromoteIsMonotonicUnderContention(t *testing.T) {
	c := NewCache(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db := NewDatabaseCatalog(kusto.DatabaseInfo{Name: string(rune('A' + i))}, nil)
			c.Promote([]DatabaseUpdate{{Cluster: helpID, Database: db}})
		}()
	}
	wg.Wait()

	dbs, err := c.ListDatabases("help")
	require.NoError(t, err)
	assert.Len(t, dbs, 20, "no promotion is lost")
}

func TestCache_SnapshotsAreStable(t *testing.T) {
	c := newSamplesCache()
	old := c.Snapshot()

	c.Promote([]DatabaseUpdate{{Cluster: helpID, Database: NewDatabaseCatalog(kusto.DatabaseInfo{Name: "Other"}, nil)}})

	_, err := old.Database(helpID, "Other")
	assert.Error(t, err, "readers holding the old snapshot never see the update")
	_, err = c.Snapshot().Database(helpID, "Other")
	assert.NoError(t, err)

	id, err := c.ResolveCluster("HELP")
	require.NoError(t, err)
	assert.Equal(t, helpID, id)
}
