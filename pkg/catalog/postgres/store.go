// Package postgres provides a PostgreSQL-backed catalog cache store.
//
// Records use the same zstd-compressed msgpack envelopes as the file store.
// Tables are created by pkg/database/migrate.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements catalog.Store using PostgreSQL.
type Store struct {
	db    *sql.DB
	codec *catalog.Codec
	now   func() time.Time
}

// New creates a store over db. The caller owns db.
func New(db *sql.DB) (*Store, error) {
	codec, err := catalog.NewCodec()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, codec: codec, now: time.Now}, nil
}

// LoadIndex implements catalog.Store.
func (s *Store) LoadIndex(ctx context.Context, cluster kusto.ClusterIdentity) ([]kusto.DatabaseInfo, error) {
	query, args, err := psq.Select("format_version", "payload").
		From("catalog_indexes").
		Where(sq.Eq{"cluster": cluster.String()}).
		ToSql()
	if err != nil {
		return nil, readErr(cluster.String(), fmt.Errorf("building index query: %w", err))
	}

	payload, err := s.loadPayload(ctx, query, args)
	if err != nil {
		return nil, wrapRead(cluster.String(), err)
	}
	infos, err := s.codec.DecodeIndex(cluster, payload)
	if err != nil {
		return nil, readErr(cluster.String(), err)
	}
	return infos, nil
}

// SaveIndex implements catalog.Store. Databases no longer listed are
// removed in the same transaction.
func (s *Store) SaveIndex(ctx context.Context, cluster kusto.ClusterIdentity, infos []kusto.DatabaseInfo) error {
	key := cluster.String()
	payload, err := s.codec.EncodeIndex(cluster, infos)
	if err != nil {
		return writeErr(key, err)
	}

	upsert, upsertArgs, err := psq.Insert("catalog_indexes").
		Columns("cluster", "format_version", "payload", "updated_at").
		Values(key, catalog.FormatVersion, payload, s.now()).
		Suffix("ON CONFLICT (cluster) DO UPDATE SET " +
			"format_version = EXCLUDED.format_version, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return writeErr(key, fmt.Errorf("building index upsert: %w", err))
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	prune, pruneArgs, err := psq.Delete("catalog_databases").
		Where(sq.Eq{"cluster": key}).
		Where(sq.NotEq{"database_name": names}).
		ToSql()
	if err != nil {
		return writeErr(key, fmt.Errorf("building prune statement: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr(key, fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsert, upsertArgs...); err != nil {
		return writeErr(key, fmt.Errorf("upserting index: %w", err))
	}
	if _, err := tx.ExecContext(ctx, prune, pruneArgs...); err != nil {
		return writeErr(key, fmt.Errorf("pruning databases: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return writeErr(key, fmt.Errorf("committing index: %w", err))
	}
	return nil
}

// LoadDatabase implements catalog.Store.
func (s *Store) LoadDatabase(ctx context.Context, cluster kusto.ClusterIdentity, database string) (*catalog.DatabaseCatalog, error) {
	key := cluster.String() + "/" + database
	query, args, err := psq.Select("format_version", "payload").
		From("catalog_databases").
		Where(sq.Eq{"cluster": cluster.String(), "database_name": database}).
		ToSql()
	if err != nil {
		return nil, readErr(key, fmt.Errorf("building database query: %w", err))
	}

	payload, err := s.loadPayload(ctx, query, args)
	if err != nil {
		return nil, wrapRead(key, err)
	}
	db, err := s.codec.DecodeDatabase(payload)
	if err != nil {
		return nil, readErr(key, err)
	}
	return db, nil
}

// SaveDatabase implements catalog.Store.
func (s *Store) SaveDatabase(ctx context.Context, cluster kusto.ClusterIdentity, db *catalog.DatabaseCatalog) error {
	key := cluster.String() + "/" + db.Name
	payload, fingerprint, err := s.codec.EncodeDatabase(db)
	if err != nil {
		return writeErr(key, err)
	}

	query, args, err := psq.Insert("catalog_databases").
		Columns("cluster", "database_name", "fingerprint", "format_version", "payload", "updated_at").
		Values(cluster.String(), db.Name, fingerprint, catalog.FormatVersion, payload, s.now()).
		Suffix("ON CONFLICT (cluster, database_name) DO UPDATE SET " +
			"fingerprint = EXCLUDED.fingerprint, format_version = EXCLUDED.format_version, " +
			"payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return writeErr(key, fmt.Errorf("building database upsert: %w", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr(key, fmt.Errorf("upserting database: %w", err))
	}
	return nil
}

// Fingerprints returns the stored fingerprint of every database of a
// cluster, keyed by database name.
func (s *Store) Fingerprints(ctx context.Context, cluster kusto.ClusterIdentity) (map[string]string, error) {
	query, args, err := psq.Select("database_name", "fingerprint").
		From("catalog_databases").
		Where(sq.Eq{"cluster": cluster.String()}).
		OrderBy("database_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building fingerprint query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, readErr(cluster.String(), fmt.Errorf("querying fingerprints: %w", err))
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var name, fp string
		if err := rows.Scan(&name, &fp); err != nil {
			return nil, readErr(cluster.String(), fmt.Errorf("scanning fingerprint: %w", err))
		}
		out[name] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, readErr(cluster.String(), fmt.Errorf("iterating fingerprints: %w", err))
	}
	return out, nil
}

// Close implements catalog.Store. It does not close the database.
func (s *Store) Close() error {
	return s.codec.Close()
}

func (s *Store) loadPayload(ctx context.Context, query string, args []any) ([]byte, error) {
	var (
		version int
		payload []byte
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version, &payload); err != nil {
		return nil, err
	}
	if version != catalog.FormatVersion {
		return nil, catalog.ErrCacheMiss
	}
	return payload, nil
}

func wrapRead(key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, catalog.ErrCacheMiss) {
		return catalog.ErrCacheMiss
	}
	return readErr(key, err)
}

func readErr(key string, err error) error {
	return &catalog.CacheIOError{Op: "read", Key: key, Err: err}
}

func writeErr(key string, err error) error {
	return &catalog.CacheIOError{Op: "write", Key: key, Err: err}
}

// Verify interface compliance.
var _ catalog.Store = (*Store)(nil)
