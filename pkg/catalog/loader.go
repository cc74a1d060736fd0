package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// DefaultConcurrency bounds parallel schema discovery within one cluster.
const DefaultConcurrency = 4

// sharedDiscoveryTimeout bounds a schema discovery shared by several
// callers. It matches the server's default management command timeout.
const sharedDiscoveryTimeout = 10 * time.Minute

// HandleSource returns the handle of a registered cluster.
// *kusto.Registry implements it.
type HandleSource interface {
	Get(id kusto.ClusterIdentity) (kusto.ClusterHandle, error)
}

// Loader fills catalogs through cluster handles and persists what it
// discovers to a Store.
type Loader struct {
	handles     HandleSource
	store       Store
	concurrency int
	group       singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithStore sets the persistence store. The default is NoopStore.
func WithStore(s Store) LoaderOption {
	return func(l *Loader) {
		if s != nil {
			l.store = s
		}
	}
}

// WithConcurrency bounds parallel schema discovery within one cluster.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewLoader creates a loader over handles.
func NewLoader(handles HandleSource, opts ...LoaderOption) *Loader {
	l := &Loader{
		handles:     handles,
		store:       NoopStore{},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BootstrapOptions controls Bootstrap.
type BootstrapOptions struct {
	// UseCache serves a cluster from the store when its listing and every
	// one of its databases are present there.
	UseCache bool
}

// Bootstrap discovers every cluster concurrently and returns the complete
// snapshot. Any cluster failing fails the whole bootstrap.
func (l *Loader) Bootstrap(ctx context.Context, ids []kusto.ClusterIdentity, opts BootstrapOptions) (*GlobalState, error) {
	if len(ids) == 0 {
		return nil, errors.New("no clusters configured")
	}
	start := time.Now()

	clusters := make([]*ClusterCatalog, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			if opts.UseCache {
				if cc, ok := l.loadClusterFromStore(gctx, id); ok {
					clusters[i] = cc
					return nil
				}
			}
			cc, err := l.LoadCluster(gctx, id)
			if err != nil {
				return err
			}
			clusters[i] = cc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bootstrapping catalog: %w", err)
	}

	state := NewGlobalState(clusters...)
	nc, nd, nt := state.Stats()
	slog.Info("catalog bootstrapped",
		"clusters", nc,
		"databases", nd,
		"tables", nt,
		"duration", time.Since(start),
	)
	return state, nil
}

// LoadCluster discovers the databases of a cluster and then the schema of
// each of them.
func (l *Loader) LoadCluster(ctx context.Context, id kusto.ClusterIdentity) (*ClusterCatalog, error) {
	infos, err := l.DiscoverDatabases(ctx, id)
	if err != nil {
		return nil, err
	}

	cc := NewClusterCatalog(id, infos)
	dbs := make([]*DatabaseCatalog, len(cc.Databases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, d := range cc.Databases {
		info := kusto.DatabaseInfo{Name: d.Name, AlternateName: d.AlternateName}
		g.Go(func() error {
			db, err := l.LoadDatabase(gctx, id, info)
			if err != nil {
				return err
			}
			dbs[i] = db
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	cc.Databases = dbs
	return cc, nil
}

// DiscoverDatabases lists the databases of a cluster and persists the
// listing.
func (l *Loader) DiscoverDatabases(ctx context.Context, id kusto.ClusterIdentity) ([]kusto.DatabaseInfo, error) {
	h, err := l.handles.Get(id)
	if err != nil {
		return nil, err
	}
	infos, err := h.DiscoverDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering databases of %s: %w", id, err)
	}
	if err := l.store.SaveIndex(ctx, id, infos); err != nil {
		warnWrite(id.String(), err)
	}
	return infos, nil
}

// LoadDatabase discovers the schema of one database and persists it.
// Concurrent loads of the same database share one discovery request, which
// outlives any single caller's cancellation; each caller still returns as
// soon as its own ctx is done.
func (l *Loader) LoadDatabase(ctx context.Context, id kusto.ClusterIdentity, info kusto.DatabaseInfo) (*DatabaseCatalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := id.String() + "/" + info.Name
	ch := l.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedDiscoveryTimeout)
		defer cancel()
		h, err := l.handles.Get(id)
		if err != nil {
			return nil, err
		}
		tables, err := h.DiscoverSchema(shared, info.Name)
		if err != nil {
			return nil, fmt.Errorf("discovering schema of %s: %w", key, err)
		}
		db := NewDatabaseCatalog(info, tables)
		if err := l.store.SaveDatabase(shared, id, db); err != nil {
			warnWrite(key, err)
		}
		return db, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DatabaseCatalog), nil
	}
}

// AddOrUpdateCluster rediscovers a whole cluster and returns a snapshot in
// which it replaces the previous version.
func (l *Loader) AddOrUpdateCluster(ctx context.Context, state *GlobalState, id kusto.ClusterIdentity) (*GlobalState, error) {
	cc, err := l.LoadCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.WithCluster(cc), nil
}

// AddOrUpdateDatabase rediscovers one database and returns a snapshot in
// which it replaces the previous version wholesale.
func (l *Loader) AddOrUpdateDatabase(ctx context.Context, state *GlobalState, id kusto.ClusterIdentity, database string) (*GlobalState, error) {
	info := kusto.DatabaseInfo{Name: database}
	if existing, err := state.Database(id, database); err == nil {
		info = kusto.DatabaseInfo{Name: existing.Name, AlternateName: existing.AlternateName}
	}
	db, err := l.LoadDatabase(ctx, id, info)
	if err != nil {
		return nil, err
	}
	return state.WithDatabase(id, db), nil
}

// Refresh rediscovers the given clusters and publishes them to cache in a
// single update. Nothing is published if any cluster fails.
func (l *Loader) Refresh(ctx context.Context, cache *Cache, ids ...kusto.ClusterIdentity) error {
	clusters := make([]*ClusterCatalog, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			cc, err := l.LoadCluster(gctx, id)
			if err != nil {
				return err
			}
			clusters[i] = cc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}
	cache.Update(func(s *GlobalState) *GlobalState {
		for _, cc := range clusters {
			s = s.WithCluster(cc)
		}
		return s
	})
	return nil
}

// EnsureDatabase returns a loaded database catalog, discovering and
// publishing it first if the cache only knows its name.
func (l *Loader) EnsureDatabase(ctx context.Context, cache *Cache, id kusto.ClusterIdentity, database string) (*DatabaseCatalog, error) {
	db, err := cache.Snapshot().Database(id, database)
	if err != nil {
		return nil, err
	}
	if db.Loaded {
		return db, nil
	}
	loaded, err := l.LoadDatabase(ctx, id, kusto.DatabaseInfo{Name: db.Name, AlternateName: db.AlternateName})
	if err != nil {
		return nil, err
	}
	cache.Update(func(s *GlobalState) *GlobalState { return s.WithDatabase(id, loaded) })
	return loaded, nil
}

// loadClusterFromStore rebuilds a cluster from the store. It reports false
// on any miss or read failure so the caller falls back to discovery.
func (l *Loader) loadClusterFromStore(ctx context.Context, id kusto.ClusterIdentity) (*ClusterCatalog, bool) {
	infos, err := l.store.LoadIndex(ctx, id)
	if err != nil {
		logMiss(id.String(), err)
		return nil, false
	}
	cc := NewClusterCatalog(id, infos)
	for i, d := range cc.Databases {
		db, err := l.store.LoadDatabase(ctx, id, d.Name)
		if err != nil {
			logMiss(id.String()+"/"+d.Name, err)
			return nil, false
		}
		cc.Databases[i] = db
	}
	slog.Debug("catalog cache hit", "cluster", id.String(), "databases", len(cc.Databases))
	return cc, true
}

func logMiss(key string, err error) {
	if errors.Is(err, ErrCacheMiss) {
		slog.Debug("catalog cache miss", "key", key)
		return
	}
	slog.Warn("catalog cache read failed, falling back to discovery", "key", key, "error", err)
}

func warnWrite(key string, err error) {
	slog.Warn("catalog cache write failed", "key", key, "error", err)
}
