// Package filestore persists catalogs as files under a cache directory.
//
// Layout:
//
//	<root>/<cluster>/_index.bin                database listing
//	<root>/<cluster>/databases/<database>.bin  database catalog
//
// Database names are path-escaped and every upper-case letter is written
// as '!' followed by its lower-case form, so names that differ only in
// case stay distinct on case-insensitive filesystems.
//
// Every file is written to a temporary file in the same directory, synced
// and renamed over the target, so a crash never leaves a partial file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

const (
	indexFile    = "_index.bin"
	databasesDir = "databases"
	extension    = ".bin"
	dirPerm      = 0o700
	filePerm     = 0o600
)

// Store is a catalog.Store backed by a directory.
type Store struct {
	root  string
	codec *catalog.Codec
}

// New creates the cache directory if needed and returns a store over it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	codec, err := catalog.NewCodec()
	if err != nil {
		return nil, err
	}
	return &Store{root: root, codec: codec}, nil
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// LoadIndex implements catalog.Store.
func (s *Store) LoadIndex(_ context.Context, cluster kusto.ClusterIdentity) ([]kusto.DatabaseInfo, error) {
	path := s.indexPath(cluster)
	b, err := s.read(path)
	if err != nil {
		return nil, err
	}
	infos, err := s.codec.DecodeIndex(cluster, b)
	if err != nil {
		return nil, &catalog.CacheIOError{Op: "read", Key: path, Err: err}
	}
	return infos, nil
}

// SaveIndex implements catalog.Store.
func (s *Store) SaveIndex(_ context.Context, cluster kusto.ClusterIdentity, infos []kusto.DatabaseInfo) error {
	path := s.indexPath(cluster)
	b, err := s.codec.EncodeIndex(cluster, infos)
	if err != nil {
		return &catalog.CacheIOError{Op: "write", Key: path, Err: err}
	}
	return s.write(path, b)
}

// LoadDatabase implements catalog.Store.
func (s *Store) LoadDatabase(_ context.Context, cluster kusto.ClusterIdentity, database string) (*catalog.DatabaseCatalog, error) {
	path := s.databasePath(cluster, database)
	b, err := s.read(path)
	if err != nil {
		return nil, err
	}
	db, err := s.codec.DecodeDatabase(b)
	if err != nil {
		return nil, &catalog.CacheIOError{Op: "read", Key: path, Err: err}
	}
	if db.Name != database {
		return nil, &catalog.CacheIOError{Op: "read", Key: path,
			Err: fmt.Errorf("entry holds database %q", db.Name)}
	}
	return db, nil
}

// SaveDatabase implements catalog.Store.
func (s *Store) SaveDatabase(_ context.Context, cluster kusto.ClusterIdentity, db *catalog.DatabaseCatalog) error {
	path := s.databasePath(cluster, db.Name)
	b, _, err := s.codec.EncodeDatabase(db)
	if err != nil {
		return &catalog.CacheIOError{Op: "write", Key: path, Err: err}
	}
	return s.write(path, b)
}

// Close implements catalog.Store.
func (s *Store) Close() error {
	return s.codec.Close()
}

func (s *Store) clusterDir(cluster kusto.ClusterIdentity) string {
	name := strings.TrimPrefix(strings.TrimPrefix(cluster.String(), "https://"), "http://")
	return filepath.Join(s.root, url.PathEscape(name))
}

func (s *Store) indexPath(cluster kusto.ClusterIdentity) string {
	return filepath.Join(s.clusterDir(cluster), indexFile)
}

func (s *Store) databasePath(cluster kusto.ClusterIdentity, database string) string {
	return filepath.Join(s.clusterDir(cluster), databasesDir, escapeName(database)+extension)
}

// escapeName maps a database name to a file name. PathEscape never emits
// '!', which leaves it free to mark upper-case letters.
func escapeName(name string) string {
	escaped := url.PathEscape(name)
	var b strings.Builder
	b.Grow(len(escaped))
	for _, r := range escaped {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('!')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) read(path string) ([]byte, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is built from escaped names under root
	if errors.Is(err, fs.ErrNotExist) {
		return nil, catalog.ErrCacheMiss
	}
	if err != nil {
		return nil, &catalog.CacheIOError{Op: "read", Key: path, Err: err}
	}
	return b, nil
}

func (s *Store) write(path string, b []byte) error {
	if err := writeAtomic(path, b); err != nil {
		return &catalog.CacheIOError{Op: "write", Key: path, Err: err}
	}
	return nil
}

// writeAtomic replaces path with b via a synced temporary file.
func writeAtomic(path string, b []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(b); err != nil {
		return err
	}
	if err = tmp.Chmod(filePerm); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Verify interface compliance.
var _ catalog.Store = (*Store)(nil)
