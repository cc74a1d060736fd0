package catalog

import (
	"sync/atomic"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Cache exposes the current GlobalState to concurrent readers. Writers
// publish whole snapshots; readers never see a partial update.
type Cache struct {
	current atomic.Pointer[GlobalState]
}

// NewCache creates a cache holding initial, or an empty snapshot if nil.
func NewCache(initial *GlobalState) *Cache {
	c := &Cache{}
	if initial == nil {
		initial = NewGlobalState()
	}
	c.current.Store(initial)
	return c
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() *GlobalState {
	return c.current.Load()
}

// Publish replaces the current snapshot.
func (c *Cache) Publish(s *GlobalState) {
	c.current.Store(s)
}

// Update applies fn to the current snapshot and publishes the result,
// retrying if another writer published in between. fn must be pure.
func (c *Cache) Update(fn func(*GlobalState) *GlobalState) *GlobalState {
	for {
		old := c.current.Load()
		next := fn(old)
		if c.current.CompareAndSwap(old, next) {
			return next
		}
	}
}

// Promote folds database updates into the shared snapshot.
func (c *Cache) Promote(updates []DatabaseUpdate) {
	if len(updates) == 0 {
		return
	}
	c.Update(func(s *GlobalState) *GlobalState { return s.Apply(updates) })
}

// ListClusters returns the cluster URIs of the current snapshot.
func (c *Cache) ListClusters() []string {
	return c.Snapshot().ClusterNames()
}

// ListDatabases returns the databases of a cluster.
func (c *Cache) ListDatabases(cluster string) ([]DatabaseSummary, error) {
	cc, err := c.Snapshot().ClusterByName(cluster)
	if err != nil {
		return nil, err
	}
	out := make([]DatabaseSummary, len(cc.Databases))
	for i, d := range cc.Databases {
		out[i] = DatabaseSummary{
			Name:          d.Name,
			AlternateName: d.AlternateName,
			Tables:        len(d.Tables),
			Loaded:        d.Loaded,
		}
	}
	return out, nil
}

// ListTables returns the tables of a database.
func (c *Cache) ListTables(cluster, database string) ([]TableSummary, error) {
	db, err := c.database(cluster, database)
	if err != nil {
		return nil, err
	}
	out := make([]TableSummary, len(db.Tables))
	for i, t := range db.Tables {
		out[i] = TableSummary{
			Name:          t.Name,
			AlternateName: t.AlternateName,
			Folder:        t.Folder,
			Columns:       len(t.Columns),
		}
	}
	return out, nil
}

// DescribeTable returns a table with its columns.
func (c *Cache) DescribeTable(cluster, database, table string) (*TableCatalog, error) {
	db, err := c.database(cluster, database)
	if err != nil {
		return nil, err
	}
	return db.Table(table)
}

// Summary lists every cluster with its databases and table names.
func (c *Cache) Summary() []ClusterSummary {
	clusters := c.Snapshot().Clusters()
	out := make([]ClusterSummary, len(clusters))
	for i, cc := range clusters {
		out[i] = ClusterSummary{Cluster: cc.ID.String(), Databases: make([]DatabaseWithTables, len(cc.Databases))}
		for j, d := range cc.Databases {
			out[i].Databases[j] = DatabaseWithTables{Name: d.Name, Tables: d.TableNames()}
		}
	}
	return out
}

func (c *Cache) database(cluster, database string) (*DatabaseCatalog, error) {
	cc, err := c.Snapshot().ClusterByName(cluster)
	if err != nil {
		return nil, err
	}
	return cc.Database(database)
}

// ResolveCluster parses a cluster name and checks it is known.
func (c *Cache) ResolveCluster(cluster string) (kusto.ClusterIdentity, error) {
	cc, err := c.Snapshot().ClusterByName(cluster)
	if err != nil {
		return kusto.ClusterIdentity{}, err
	}
	return cc.ID, nil
}
