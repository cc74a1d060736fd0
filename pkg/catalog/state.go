package catalog

import (
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// GlobalState is an immutable snapshot of every known cluster catalog plus
// the current cluster and database used to resolve unqualified names.
//
// Every With* method returns a new snapshot; unchanged clusters and
// databases are shared between the old and the new snapshot.
type GlobalState struct {
	clusters        []*ClusterCatalog
	currentCluster  kusto.ClusterIdentity
	currentDatabase string
}

// NewGlobalState builds a snapshot from clusters. A later cluster with the
// same identity replaces an earlier one.
func NewGlobalState(clusters ...*ClusterCatalog) *GlobalState {
	s := &GlobalState{}
	for _, c := range clusters {
		s = s.WithCluster(c)
	}
	return s
}

// Clusters returns the cluster catalogs in the order they were added.
func (s *GlobalState) Clusters() []*ClusterCatalog {
	out := make([]*ClusterCatalog, len(s.clusters))
	copy(out, s.clusters)
	return out
}

// ClusterNames returns the cluster URIs in the order they were added.
func (s *GlobalState) ClusterNames() []string {
	names := make([]string, len(s.clusters))
	for i, c := range s.clusters {
		names[i] = c.ID.String()
	}
	return names
}

// Cluster returns the catalog of a cluster.
func (s *GlobalState) Cluster(id kusto.ClusterIdentity) (*ClusterCatalog, error) {
	for _, c := range s.clusters {
		if c.ID.Equal(id) {
			return c, nil
		}
	}
	return nil, &kusto.NotFoundError{
		Kind:         kusto.KindCluster,
		Name:         id.String(),
		Alternatives: s.ClusterNames(),
	}
}

// ClusterByName parses name as a cluster identity and returns its catalog.
func (s *GlobalState) ClusterByName(name string) (*ClusterCatalog, error) {
	id, err := kusto.ParseClusterIdentity(name)
	if err != nil {
		return nil, &kusto.NotFoundError{Kind: kusto.KindCluster, Name: name, Alternatives: s.ClusterNames()}
	}
	return s.Cluster(id)
}

// Database returns the catalog of a database of a cluster.
func (s *GlobalState) Database(id kusto.ClusterIdentity, name string) (*DatabaseCatalog, error) {
	c, err := s.Cluster(id)
	if err != nil {
		return nil, err
	}
	return c.Database(name)
}

// Table returns the catalog of a table.
func (s *GlobalState) Table(id kusto.ClusterIdentity, database, table string) (*TableCatalog, error) {
	db, err := s.Database(id, database)
	if err != nil {
		return nil, err
	}
	return db.Table(table)
}

// CurrentCluster returns the cluster used for unqualified names.
func (s *GlobalState) CurrentCluster() kusto.ClusterIdentity {
	return s.currentCluster
}

// CurrentDatabase returns the database used for unqualified names.
func (s *GlobalState) CurrentDatabase() string {
	return s.currentDatabase
}

// WithCurrent returns a snapshot scoped to a cluster and database.
func (s *GlobalState) WithCurrent(id kusto.ClusterIdentity, database string) *GlobalState {
	out := *s
	out.currentCluster = id
	out.currentDatabase = database
	return &out
}

// WithCluster returns a snapshot in which c replaces the cluster with the
// same identity, or is appended if there is none.
func (s *GlobalState) WithCluster(c *ClusterCatalog) *GlobalState {
	out := &GlobalState{
		clusters:        make([]*ClusterCatalog, 0, len(s.clusters)+1),
		currentCluster:  s.currentCluster,
		currentDatabase: s.currentDatabase,
	}
	replaced := false
	for _, existing := range s.clusters {
		if existing.ID.Equal(c.ID) {
			out.clusters = append(out.clusters, c)
			replaced = true
			continue
		}
		out.clusters = append(out.clusters, existing)
	}
	if !replaced {
		out.clusters = append(out.clusters, c)
	}
	return out
}

// WithDatabase returns a snapshot in which db is added to, or replaces the
// database of the same name in, cluster id. The cluster is created if the
// snapshot does not know it yet.
func (s *GlobalState) WithDatabase(id kusto.ClusterIdentity, db *DatabaseCatalog) *GlobalState {
	c, err := s.Cluster(id)
	if err != nil {
		c = &ClusterCatalog{ID: id}
	}
	return s.WithCluster(c.WithDatabase(db))
}

// DatabaseUpdate is one add-or-update of a database catalog.
type DatabaseUpdate struct {
	Cluster  kusto.ClusterIdentity
	Database *DatabaseCatalog
}

// Apply folds updates into the snapshot in order.
func (s *GlobalState) Apply(updates []DatabaseUpdate) *GlobalState {
	out := s
	for _, u := range updates {
		out = out.WithDatabase(u.Cluster, u.Database)
	}
	return out
}

// Stats counts the clusters, databases and tables of the snapshot.
func (s *GlobalState) Stats() (clusters, databases, tables int) {
	for _, c := range s.clusters {
		clusters++
		for _, d := range c.Databases {
			databases++
			tables += len(d.Tables)
		}
	}
	return clusters, databases, tables
}
