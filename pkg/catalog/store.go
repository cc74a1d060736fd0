package catalog

import (
	"context"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Store persists discovered catalogs keyed by cluster identity and
// database name. Missing entries return ErrCacheMiss; other failures
// return *CacheIOError. Saves replace entries atomically.
type Store interface {
	// LoadIndex returns the persisted database listing of a cluster.
	LoadIndex(ctx context.Context, cluster kusto.ClusterIdentity) ([]kusto.DatabaseInfo, error)

	// SaveIndex persists the database listing of a cluster.
	SaveIndex(ctx context.Context, cluster kusto.ClusterIdentity, infos []kusto.DatabaseInfo) error

	// LoadDatabase returns a persisted database catalog.
	LoadDatabase(ctx context.Context, cluster kusto.ClusterIdentity, database string) (*DatabaseCatalog, error)

	// SaveDatabase persists a database catalog.
	SaveDatabase(ctx context.Context, cluster kusto.ClusterIdentity, db *DatabaseCatalog) error

	// Close releases resources.
	Close() error
}

// NoopStore never holds anything. It is used when caching is disabled.
type NoopStore struct{}

// LoadIndex implements Store.
func (NoopStore) LoadIndex(context.Context, kusto.ClusterIdentity) ([]kusto.DatabaseInfo, error) {
	return nil, ErrCacheMiss
}

// SaveIndex implements Store.
func (NoopStore) SaveIndex(context.Context, kusto.ClusterIdentity, []kusto.DatabaseInfo) error {
	return nil
}

// LoadDatabase implements Store.
func (NoopStore) LoadDatabase(context.Context, kusto.ClusterIdentity, string) (*DatabaseCatalog, error) {
	return nil, ErrCacheMiss
}

// SaveDatabase implements Store.
func (NoopStore) SaveDatabase(context.Context, kusto.ClusterIdentity, *DatabaseCatalog) error {
	return nil
}

// Close implements Store.
func (NoopStore) Close() error { return nil }

// Verify interface compliance.
var _ Store = NoopStore{}
