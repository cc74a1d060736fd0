// Package kustotest provides an in-memory cluster handle for tests.
package kustotest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Cluster is an in-memory ClusterHandle. Databases map to their tables.
type Cluster struct {
	ID kusto.ClusterIdentity

	mu          sync.Mutex
	databases   []kusto.DatabaseInfo
	schemas     map[string][]kusto.TableSchema
	results     map[string]*kusto.QueryResult
	failListing error
	failSchema  map[string]error
	calls       map[string]int
	closed      bool
}

// NewCluster creates an empty fake cluster.
func NewCluster(name string) *Cluster {
	return &Cluster{
		ID:         kusto.MustParseClusterIdentity(name),
		schemas:    make(map[string][]kusto.TableSchema),
		results:    make(map[string]*kusto.QueryResult),
		failSchema: make(map[string]error),
		calls:      make(map[string]int),
	}
}

// AddDatabase registers a database with the given tables.
func (c *Cluster) AddDatabase(name, alternate string, tables ...kusto.TableSchema) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databases = append(c.databases, kusto.DatabaseInfo{Name: name, AlternateName: alternate})
	c.schemas[name] = tables
	return c
}

// SetTables replaces the tables of an existing database.
func (c *Cluster) SetTables(database string, tables ...kusto.TableSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[database] = tables
}

// SetResult registers the result returned for a query text.
func (c *Cluster) SetResult(query string, result *kusto.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[query] = result
}

// FailListing makes DiscoverDatabases return err.
func (c *Cluster) FailListing(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failListing = err
}

// FailSchema makes DiscoverSchema for database return err.
func (c *Cluster) FailSchema(database string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSchema[database] = err
}

// Calls returns how many times an operation ran. Schema calls are keyed
// "schema:<database>".
func (c *Cluster) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Closed reports whether Close was called.
func (c *Cluster) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Identity implements kusto.ClusterHandle.
func (c *Cluster) Identity() kusto.ClusterIdentity {
	return c.ID
}

// DiscoverDatabases implements kusto.ClusterHandle.
func (c *Cluster) DiscoverDatabases(ctx context.Context) ([]kusto.DatabaseInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["databases"]++
	if c.failListing != nil {
		return nil, &kusto.TransportError{Cluster: c.ID, Op: "show databases", Err: c.failListing}
	}
	out := make([]kusto.DatabaseInfo, len(c.databases))
	copy(out, c.databases)
	return out, nil
}

// DiscoverSchema implements kusto.ClusterHandle.
func (c *Cluster) DiscoverSchema(ctx context.Context, database string) ([]kusto.TableSchema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["schema:"+database]++
	if err := c.failSchema[database]; err != nil {
		return nil, &kusto.TransportError{Cluster: c.ID, Op: "show database schema", Err: err}
	}
	tables, ok := c.schemas[database]
	if !ok {
		return nil, &kusto.TransportError{Cluster: c.ID, Op: "show database schema",
			Err: fmt.Errorf("database %q does not exist", database)}
	}
	out := make([]kusto.TableSchema, len(tables))
	copy(out, tables)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ExecuteQuery implements kusto.ClusterHandle.
func (c *Cluster) ExecuteQuery(ctx context.Context, database, query string, _ kusto.QueryOptions) (*kusto.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["query"]++
	if r, ok := c.results[query]; ok {
		return r, nil
	}
	return nil, &kusto.TransportError{Cluster: c.ID, Op: "query",
		Err: fmt.Errorf("no result registered for %q in %s", query, database)}
}

// Close implements kusto.ClusterHandle.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Factory returns a HandleFactory serving the given fake clusters.
func Factory(clusters ...*Cluster) kusto.HandleFactory {
	byID := make(map[string]*Cluster, len(clusters))
	for _, c := range clusters {
		byID[c.ID.String()] = c
	}
	return func(id kusto.ClusterIdentity, _ kusto.Credential) (kusto.ClusterHandle, error) {
		c, ok := byID[id.String()]
		if !ok {
			return nil, fmt.Errorf("no fake cluster for %s", id)
		}
		return c, nil
	}
}

// Table is a shorthand for building a TableSchema from name/type pairs.
func Table(name string, columns ...string) kusto.TableSchema {
	t := kusto.TableSchema{Name: name}
	for i := 0; i+1 < len(columns); i += 2 {
		t.Columns = append(t.Columns, kusto.ColumnSchema{Name: columns[i], Type: columns[i+1]})
	}
	return t
}

// Samples returns the help cluster used throughout the tests: database
// Samples with StormEvents, PopulationData and Events.
func Samples() *Cluster {
	return NewCluster("https://help.kusto.windows.net").
		AddDatabase("Samples", "",
			Table("StormEvents",
				"StartTime", "datetime",
				"State", "string",
			),
			Table("PopulationData",
				"State", "string",
				"Population", "long",
			),
			Table("Events",
				"Timestamp", "datetime",
				"Level", "string",
				"Source", "string",
				"Count", "long",
				"Duration", "timespan",
				"Score", "real",
				"Props", "dynamic",
			),
		)
}
