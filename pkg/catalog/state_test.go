package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

var helpID = kusto.MustParseClusterIdentity("https://help.kusto.windows.net")

func samplesDB() *DatabaseCatalog {
	return NewDatabaseCatalog(kusto.DatabaseInfo{Name: "Samples"}, []kusto.TableSchema{
		{Name: "StormEvents", Columns: []kusto.ColumnSchema{{Name: "StartTime", Type: "datetime"}, {Name: "State", Type: "string"}}},
		{Name: "PopulationData", Columns: []kusto.ColumnSchema{{Name: "State", Type: "string"}, {Name: "Population", Type: "long"}}},
	})
}

func TestNewDatabaseCatalog_SortsAndDedupes(t *testing.T) {
	db := NewDatabaseCatalog(kusto.DatabaseInfo{Name: "D", AlternateName: "Pretty"}, []kusto.TableSchema{
		{Name: "b"}, {Name: "a"}, {Name: "b"},
	})
	assert.True(t, db.Loaded)
	assert.Equal(t, "Pretty", db.AlternateName)
	assert.Equal(t, []string{"a", "b"}, db.TableNames())
}

func TestGlobalState_Lookups(t *testing.T) {
	s := NewGlobalState(NewClusterCatalog(helpID, []kusto.DatabaseInfo{{Name: "Samples"}})).
		WithDatabase(helpID, samplesDB())

	tbl, err := s.Table(helpID, "Samples", "StormEvents")
	require.NoError(t, err)
	assert.Equal(t, []ColumnCatalog{{Name: "StartTime", Type: "datetime"}, {Name: "State", Type: "string"}}, tbl.Columns)

	_, err = s.Table(helpID, "Samples", "NoSuchTable")
	var nf *kusto.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, kusto.KindTable, nf.Kind)
	assert.Equal(t, []string{"PopulationData", "StormEvents"}, nf.Alternatives)

	_, err = s.Database(helpID, "Nope")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, kusto.KindDatabase, nf.Kind)
	assert.Equal(t, []string{"Samples"}, nf.Alternatives)

	_, err = s.ClusterByName("other")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"https://help.kusto.windows.net"}, nf.Alternatives)
}

func TestGlobalState_AlternateNames(t *testing.T) {
	db := NewDatabaseCatalog(kusto.DatabaseInfo{Name: "a1b2", AlternateName: "Telemetry"}, nil)
	s := NewGlobalState().WithDatabase(helpID, db)

	got, err := s.Database(helpID, "Telemetry")
	require.NoError(t, err)
	assert.Same(t, db, got)
}

func TestGlobalState_WithDatabaseIsCopyOnWrite(t *testing.T) {
	base := NewGlobalState(NewClusterCatalog(helpID, []kusto.DatabaseInfo{{Name: "Samples"}, {Name: "Other"}}))
	before, err := base.Database(helpID, "Samples")
	require.NoError(t, err)
	other, err := base.Database(helpID, "Other")
	require.NoError(t, err)

	next := base.WithDatabase(helpID, samplesDB())

	still, err := base.Database(helpID, "Samples")
	require.NoError(t, err)
	assert.Same(t, before, still, "old snapshot must be unchanged")
	assert.False(t, still.Loaded)

	updated, err := next.Database(helpID, "Samples")
	require.NoError(t, err)
	assert.True(t, updated.Loaded)

	shared, err := next.Database(helpID, "Other")
	require.NoError(t, err)
	assert.Same(t, other, shared, "unchanged databases are shared")

	names, err := next.Cluster(helpID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Samples", "Other"}, names.DatabaseNames())
}

func TestGlobalState_WithDatabaseAddsUnknownCluster(t *testing.T) {
	other := kusto.MustParseClusterIdentity("other")
	s := NewGlobalState(NewClusterCatalog(helpID, nil)).WithDatabase(other, samplesDB())

	assert.Equal(t, []string{"https://help.kusto.windows.net", "https://other.kusto.windows.net"}, s.ClusterNames())
	_, err := s.Table(other, "Samples", "StormEvents")
	assert.NoError(t, err)
}

func TestGlobalState_WithCurrent(t *testing.T) {
	base := NewGlobalState(NewClusterCatalog(helpID, nil))
	scoped := base.WithCurrent(helpID, "Samples")

	assert.Equal(t, helpID, scoped.CurrentCluster())
	assert.Equal(t, "Samples", scoped.CurrentDatabase())
	assert.True(t, base.CurrentCluster().IsZero())

	// scope survives updates
	next := scoped.WithDatabase(helpID, samplesDB())
	assert.Equal(t, "Samples", next.CurrentDatabase())
}

func TestGlobalState_ApplyIsIdempotent(t *testing.T) {
	base := NewGlobalState(NewClusterCatalog(helpID, []kusto.DatabaseInfo{{Name: "Samples"}}))
	updates := []DatabaseUpdate{{Cluster: helpID, Database: samplesDB()}}

	once := base.Apply(updates)
	twice := once.Apply([]DatabaseUpdate{{Cluster: helpID, Database: samplesDB()}})
	assert.Equal(t, once, twice)
}

func TestClusterCatalog_WithListingKeepsLoaded(t *testing.T) {
	cc := NewClusterCatalog(helpID, []kusto.DatabaseInfo{{Name: "Samples"}, {Name: "Gone"}}).WithDatabase(samplesDB())
	next := cc.WithListing([]kusto.DatabaseInfo{{Name: "Samples", AlternateName: "S"}, {Name: "New"}})

	assert.Equal(t, []string{"Samples", "New"}, next.DatabaseNames())
	s, err := next.Database("Samples")
	require.NoError(t, err)
	assert.True(t, s.Loaded)
	assert.Equal(t, "S", s.AlternateName)
	n, err := next.Database("New")
	require.NoError(t, err)
	assert.False(t, n.Loaded)
}

func TestGlobalState_Stats(t *testing.T) {
	s := NewGlobalState().WithDatabase(helpID, samplesDB())
	c, d, tbls := s.Stats()
	assert.Equal(t, 1, c)
	assert.Equal(t, 1, d)
	assert.Equal(t, 2, tbls)
}
