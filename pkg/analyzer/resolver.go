package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kql"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// DatabaseRef is a database named by a query through database('X') or
// cluster('C').database('X'). Cluster is empty for the current cluster.
type DatabaseRef struct {
	Cluster  string
	Database string
	Pos      kql.Pos
}

func (r DatabaseRef) String() string {
	if r.Cluster == "" {
		return fmt.Sprintf("database('%s')", r.Database)
	}
	return fmt.Sprintf("cluster('%s').database('%s')", r.Cluster, r.Database)
}

func (r DatabaseRef) key() string {
	return strings.ToLower(r.Cluster) + "/" + r.Database
}

// databaseRef extracts the reference from a database('X') call, optionally
// qualified as cluster('C').database('X').
func databaseRef(c *kql.Call) (DatabaseRef, bool) {
	var clusterCall *kql.Call
	switch fun := c.Fun.(type) {
	case *kql.Ident:
		if fun.Name != "database" {
			return DatabaseRef{}, false
		}
	case *kql.Member:
		cc, ok := fun.X.(*kql.Call)
		if !ok || fun.Name != "database" || kql.CallName(cc) != "cluster" {
			return DatabaseRef{}, false
		}
		clusterCall = cc
	default:
		return DatabaseRef{}, false
	}

	db, ok := stringArg(c)
	if !ok {
		return DatabaseRef{}, false
	}
	ref := DatabaseRef{Database: db, Pos: c.Position()}
	if clusterCall != nil {
		name, ok := stringArg(clusterCall)
		if !ok {
			return DatabaseRef{}, false
		}
		ref.Cluster = name
	}
	return ref, true
}

func stringArg(c *kql.Call) (string, bool) {
	if len(c.Args) != 1 {
		return "", false
	}
	lit, ok := c.Args[0].(*kql.Literal)
	if !ok || lit.Type != TypeString {
		return "", false
	}
	return lit.Value, true
}

// CrossReferences returns the databases a query names explicitly, in order
// of first appearance and without duplicates.
func CrossReferences(q *kql.Query) []DatabaseRef {
	var refs []DatabaseRef
	seen := make(map[string]bool)
	kql.InspectQuery(q, func(n kql.Node) bool {
		c, ok := n.(*kql.Call)
		if !ok {
			return true
		}
		ref, ok := databaseRef(c)
		if !ok {
			return true
		}
		if !seen[ref.key()] {
			seen[ref.key()] = true
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

// ResolutionError reports a database reference that could not be loaded.
type ResolutionError struct {
	Ref          DatabaseRef
	Alternatives []string
	Err          error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolution is a snapshot augmented with every database a query refers
// to. Updates lists the databases loaded along the way so they can be
// promoted into the shared cache.
type Resolution struct {
	State    *catalog.GlobalState
	Updates  []catalog.DatabaseUpdate
	Failures []*ResolutionError
}

func (r *Resolution) failed() map[string]bool {
	out := make(map[string]bool, len(r.Failures))
	for _, f := range r.Failures {
		out[f.Ref.key()] = true
	}
	return out
}

// ClusterSet is the set of registered clusters. *kusto.Registry
// implements it.
type ClusterSet interface {
	Has(id kusto.ClusterIdentity) bool
	Identities() []kusto.ClusterIdentity
}

// Resolver loads the databases a query references but the snapshot does
// not hold yet.
type Resolver struct {
	loader   *catalog.Loader
	clusters ClusterSet
}

// NewResolver creates a resolver that discovers through loader and only
// reaches the clusters in set.
func NewResolver(loader *catalog.Loader, set ClusterSet) *Resolver {
	return &Resolver{loader: loader, clusters: set}
}

// Resolve returns a copy of state augmented with the current database and
// every database named by q. It leaves state untouched. Unresolvable
// references are reported in Resolution.Failures; the returned error is
// only set when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, state *catalog.GlobalState, q *kql.Query) (*Resolution, error) {
	res := &Resolution{State: state}

	current := DatabaseRef{Database: state.CurrentDatabase(), Pos: kql.Pos{Line: 1, Column: 1}}
	refs := []DatabaseRef{current}
	for _, ref := range CrossReferences(q) {
		if ref.key() != current.key() {
			refs = append(refs, ref)
		}
	}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.resolveOne(ctx, res, ref); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Failures = append(res.Failures, err)
		}
	}
	return res, nil
}

func (r *Resolver) resolveOne(ctx context.Context, res *Resolution, ref DatabaseRef) *ResolutionError {
	id := res.State.CurrentCluster()
	if ref.Cluster != "" {
		parsed, err := kusto.ParseClusterIdentity(ref.Cluster)
		if err != nil {
			return r.unknownCluster(ref)
		}
		id = parsed
	}
	if !r.clusters.Has(id) {
		return r.unknownCluster(ref)
	}

	cluster, err := res.State.Cluster(id)
	if err != nil {
		next, err := r.loader.AddOrUpdateCluster(ctx, res.State, id)
		if err != nil {
			return &ResolutionError{Ref: ref, Err: err}
		}
		res.State = next
		cluster, _ = next.Cluster(id)
		for _, db := range cluster.Databases {
			res.Updates = append(res.Updates, catalog.DatabaseUpdate{Cluster: id, Database: db})
		}
		slog.Debug("resolver added cluster", "cluster", id.String())
	}

	db, err := cluster.Database(ref.Database)
	if err != nil {
		// The listing may be stale; look again before giving up.
		infos, derr := r.loader.DiscoverDatabases(ctx, id)
		if derr != nil {
			return &ResolutionError{Ref: ref, Err: derr}
		}
		cluster = cluster.WithListing(infos)
		if db, err = cluster.Database(ref.Database); err != nil {
			var nf *kusto.NotFoundError
			alts := cluster.DatabaseNames()
			if errors.As(err, &nf) {
				alts = nf.Alternatives
			}
			return &ResolutionError{Ref: ref, Alternatives: alts, Err: err}
		}
		res.State = res.State.WithCluster(cluster)
	}
	if db.Loaded {
		return nil
	}

	next, err := r.loader.AddOrUpdateDatabase(ctx, res.State, id, db.Name)
	if err != nil {
		return &ResolutionError{Ref: ref, Err: err}
	}
	loaded, _ := next.Database(id, db.Name)
	res.State = next
	res.Updates = append(res.Updates, catalog.DatabaseUpdate{Cluster: id, Database: loaded})
	slog.Debug("resolver loaded database", "cluster", id.String(), "database", db.Name)
	return nil
}

func (r *Resolver) unknownCluster(ref DatabaseRef) *ResolutionError {
	ids := r.clusters.Identities()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return &ResolutionError{
		Ref:          ref,
		Alternatives: names,
		Err: &kusto.NotFoundError{
			Kind:         kusto.KindCluster,
			Name:         ref.Cluster,
			Alternatives: names,
		},
	}
}
