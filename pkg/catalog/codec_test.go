package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCodec_DatabaseRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	db := NewDatabaseCatalog(kusto.DatabaseInfo{Name: "Samples", AlternateName: "Pretty"}, []kusto.TableSchema{
		{
			Name:      "StormEvents",
			Folder:    "Storms",
			DocString: "US storm events",
			Columns:   []kusto.ColumnSchema{{Name: "StartTime", Type: "datetime"}, {Name: "State", Type: "string"}},
		},
		{Name: "PopulationData", Columns: []kusto.ColumnSchema{{Name: "State", Type: "string"}}},
	})

	b, fp, err := c.EncodeDatabase(db)
	require.NoError(t, err)
	assert.NotEmpty(t, fp)

	want, err := Fingerprint(db)
	require.NoError(t, err)
	assert.Equal(t, want, fp)

	got, err := c.DecodeDatabase(b)
	require.NoError(t, err)
	assert.Equal(t, db, got)
}

func TestCodec_FingerprintStable(t *testing.T) {
	a, err := Fingerprint(samplesDB())
	require.NoError(t, err)
	b, err := Fingerprint(samplesDB())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := samplesDB()
	changed.Tables[0].Columns[0].Type = "int"
	c, err := Fingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCodec_IndexRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	infos := []kusto.DatabaseInfo{{Name: "Samples"}, {Name: "a1b2", AlternateName: "Telemetry"}}

	b, err := c.EncodeIndex(helpID, infos)
	require.NoError(t, err)

	got, err := c.DecodeIndex(helpID, b)
	require.NoError(t, err)
	assert.Equal(t, infos, got)

	_, err = c.DecodeIndex(kusto.MustParseClusterIdentity("other"), b)
	assert.Error(t, err)
}

func TestCodec_RejectsCorruptRecords(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.DecodeDatabase(nil)
	assert.Error(t, err)

	_, err = c.DecodeDatabase([]byte("not zstd at all"))
	assert.Error(t, err)

	b, _, err := c.EncodeDatabase(samplesDB())
	require.NoError(t, err)
	truncated := b[:len(b)/2]
	_, err = c.DecodeDatabase(truncated)
	assert.Error(t, err)
}
