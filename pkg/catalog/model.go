// Package catalog holds the cached schema hierarchy of every configured
// cluster as immutable snapshots, and the loader that fills it.
//
// Catalog values reachable from a published GlobalState are shared between
// goroutines and must never be modified. Updates always build new values.
package catalog

import (
	"sort"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// ColumnCatalog is a column and its Kusto type name.
type ColumnCatalog struct {
	Name string `msgpack:"name" json:"name"`
	Type string `msgpack:"type" json:"type"`
}

// TableCatalog is a table and its ordered columns.
type TableCatalog struct {
	Name          string          `msgpack:"name" json:"name"`
	AlternateName string          `msgpack:"alternate_name,omitempty" json:"alternate_name,omitempty"`
	Folder        string          `msgpack:"folder,omitempty" json:"folder,omitempty"`
	DocString     string          `msgpack:"doc_string,omitempty" json:"doc_string,omitempty"`
	Columns       []ColumnCatalog `msgpack:"columns" json:"columns"`
}

// Column returns the named column.
func (t *TableCatalog) Column(name string) (ColumnCatalog, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnCatalog{}, false
}

// DatabaseCatalog is a database and its tables, sorted by name.
// Loaded is false while only the database listing is known.
type DatabaseCatalog struct {
	Name          string          `msgpack:"name" json:"name"`
	AlternateName string          `msgpack:"alternate_name,omitempty" json:"alternate_name,omitempty"`
	Loaded        bool            `msgpack:"loaded" json:"loaded"`
	Tables        []*TableCatalog `msgpack:"tables" json:"tables"`
}

// NewDatabaseCatalog builds a loaded database catalog from discovered schema.
func NewDatabaseCatalog(info kusto.DatabaseInfo, tables []kusto.TableSchema) *DatabaseCatalog {
	db := &DatabaseCatalog{
		Name:          info.Name,
		AlternateName: info.AlternateName,
		Loaded:        true,
		Tables:        make([]*TableCatalog, 0, len(tables)),
	}
	seen := make(map[string]struct{}, len(tables))
	for _, ts := range tables {
		if _, dup := seen[ts.Name]; dup {
			continue
		}
		seen[ts.Name] = struct{}{}
		t := &TableCatalog{
			Name:          ts.Name,
			AlternateName: ts.AlternateName,
			Folder:        ts.Folder,
			DocString:     ts.DocString,
			Columns:       make([]ColumnCatalog, len(ts.Columns)),
		}
		for i, c := range ts.Columns {
			t.Columns[i] = ColumnCatalog{Name: c.Name, Type: c.Type}
		}
		db.Tables = append(db.Tables, t)
	}
	sort.Slice(db.Tables, func(i, j int) bool { return db.Tables[i].Name < db.Tables[j].Name })
	return db
}

// Table returns the named table, matching the name or alternate name.
func (d *DatabaseCatalog) Table(name string) (*TableCatalog, error) {
	for _, t := range d.Tables {
		if t.Name == name || (t.AlternateName != "" && t.AlternateName == name) {
			return t, nil
		}
	}
	return nil, &kusto.NotFoundError{
		Kind:         kusto.KindTable,
		Name:         name,
		Scope:        d.Name,
		Alternatives: d.TableNames(),
	}
}

// TableNames returns the table names in sorted order.
func (d *DatabaseCatalog) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}

// matches reports whether name refers to this database.
func (d *DatabaseCatalog) matches(name string) bool {
	return d.Name == name || (d.AlternateName != "" && d.AlternateName == name)
}

// ClusterCatalog is a cluster and its databases in discovery order.
type ClusterCatalog struct {
	ID        kusto.ClusterIdentity
	Databases []*DatabaseCatalog
}

// NewClusterCatalog builds a cluster catalog from a database listing. The
// databases are not loaded.
func NewClusterCatalog(id kusto.ClusterIdentity, infos []kusto.DatabaseInfo) *ClusterCatalog {
	c := &ClusterCatalog{ID: id, Databases: make([]*DatabaseCatalog, 0, len(infos))}
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if _, dup := seen[info.Name]; dup {
			continue
		}
		seen[info.Name] = struct{}{}
		c.Databases = append(c.Databases, &DatabaseCatalog{Name: info.Name, AlternateName: info.AlternateName})
	}
	return c
}

// Database returns the named database, matching the name or alternate name.
func (c *ClusterCatalog) Database(name string) (*DatabaseCatalog, error) {
	for _, d := range c.Databases {
		if d.matches(name) {
			return d, nil
		}
	}
	return nil, &kusto.NotFoundError{
		Kind:         kusto.KindDatabase,
		Name:         name,
		Scope:        c.ID.Host(),
		Alternatives: c.DatabaseNames(),
	}
}

// DatabaseNames returns the database names in discovery order.
func (c *ClusterCatalog) DatabaseNames() []string {
	names := make([]string, len(c.Databases))
	for i, d := range c.Databases {
		names[i] = d.Name
	}
	return names
}

// Infos returns the database listing this catalog was built from.
func (c *ClusterCatalog) Infos() []kusto.DatabaseInfo {
	infos := make([]kusto.DatabaseInfo, len(c.Databases))
	for i, d := range c.Databases {
		infos[i] = kusto.DatabaseInfo{Name: d.Name, AlternateName: d.AlternateName}
	}
	return infos
}

// WithDatabase returns a copy of the cluster in which db replaces the
// database of the same name, or is appended if there is none. Other
// databases are shared with the receiver.
func (c *ClusterCatalog) WithDatabase(db *DatabaseCatalog) *ClusterCatalog {
	out := &ClusterCatalog{ID: c.ID, Databases: make([]*DatabaseCatalog, 0, len(c.Databases)+1)}
	replaced := false
	for _, d := range c.Databases {
		if d.Name == db.Name {
			out.Databases = append(out.Databases, db)
			replaced = true
			continue
		}
		out.Databases = append(out.Databases, d)
	}
	if !replaced {
		out.Databases = append(out.Databases, db)
	}
	return out
}

// WithListing returns a copy of the cluster whose database set is infos.
// Databases already loaded in the receiver and still listed are kept.
func (c *ClusterCatalog) WithListing(infos []kusto.DatabaseInfo) *ClusterCatalog {
	out := NewClusterCatalog(c.ID, infos)
	for i, d := range out.Databases {
		for _, prev := range c.Databases {
			if prev.Name == d.Name && prev.Loaded {
				kept := *prev
				kept.AlternateName = d.AlternateName
				out.Databases[i] = &kept
				break
			}
		}
	}
	return out
}

// DatabaseSummary is a database listing entry.
type DatabaseSummary struct {
	Name          string `json:"name"`
	AlternateName string `json:"alternate_name,omitempty"`
	Tables        int    `json:"tables"`
	Loaded        bool   `json:"loaded"`
}

// TableSummary is a table listing entry.
type TableSummary struct {
	Name          string `json:"name"`
	AlternateName string `json:"alternate_name,omitempty"`
	Folder        string `json:"folder,omitempty"`
	Columns       int    `json:"columns"`
}

// ClusterSummary describes a whole cluster: every database with its tables.
type ClusterSummary struct {
	Cluster   string               `json:"cluster"`
	Databases []DatabaseWithTables `json:"databases"`
}

// DatabaseWithTables is a database and its table names.
type DatabaseWithTables struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}
