package kusto

import (
	"errors"
	"fmt"
)

// Registry owns the handles for all configured clusters. It is built once
// at startup and is read-only afterwards, so lookups need no locking.
type Registry struct {
	order   []ClusterIdentity
	handles map[string]ClusterHandle
}

// NewRegistry builds one handle per identity. If any handle cannot be
// built, every handle created so far is closed and the error is returned.
func NewRegistry(ids []ClusterIdentity, cred Credential, factory HandleFactory) (_ *Registry, err error) {
	if factory == nil {
		return nil, fmt.Errorf("handle factory is required")
	}

	r := &Registry{
		order:   make([]ClusterIdentity, 0, len(ids)),
		handles: make(map[string]ClusterHandle, len(ids)),
	}
	defer func() {
		if err != nil {
			if closeErr := r.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}
	}()

	for _, id := range ids {
		if _, dup := r.handles[id.String()]; dup {
			return nil, fmt.Errorf("duplicate cluster %s", id)
		}
		h, err := factory(id, cred)
		if err != nil {
			return nil, fmt.Errorf("creating handle for %s: %w", id, err)
		}
		r.order = append(r.order, id)
		r.handles[id.String()] = h
	}
	return r, nil
}

// Get returns the handle for a cluster.
func (r *Registry) Get(id ClusterIdentity) (ClusterHandle, error) {
	if h, ok := r.handles[id.String()]; ok {
		return h, nil
	}
	return nil, &NotFoundError{
		Kind:         KindCluster,
		Name:         id.String(),
		Alternatives: r.names(),
	}
}

// Lookup parses a cluster name and returns its handle.
func (r *Registry) Lookup(name string) (ClusterHandle, error) {
	id, err := ParseClusterIdentity(name)
	if err != nil {
		return nil, &NotFoundError{Kind: KindCluster, Name: name, Alternatives: r.names()}
	}
	return r.Get(id)
}

// Has reports whether a cluster is registered.
func (r *Registry) Has(id ClusterIdentity) bool {
	_, ok := r.handles[id.String()]
	return ok
}

// All returns a copy of the identity → handle mapping.
func (r *Registry) All() map[string]ClusterHandle {
	out := make(map[string]ClusterHandle, len(r.handles))
	for k, v := range r.handles {
		out[k] = v
	}
	return out
}

// Identities returns the registered clusters in configuration order.
func (r *Registry) Identities() []ClusterIdentity {
	out := make([]ClusterIdentity, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) names() []string {
	names := make([]string, len(r.order))
	for i, id := range r.order {
		names[i] = id.String()
	}
	return names
}

// Close closes every handle and joins their errors.
func (r *Registry) Close() error {
	var errs []error
	for _, id := range r.order {
		if err := r.handles[id.String()].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
