// Package kusto provides cluster identities, connection handles and the
// connection registry for Kusto (Azure Data Explorer) clusters.
package kusto

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// defaultScheme is prepended to cluster names that carry no scheme.
	defaultScheme = "https"

	// defaultDomain completes short cluster names such as "help".
	defaultDomain = ".kusto.windows.net"
)

// ClusterIdentity is the normalized endpoint of a cluster.
// Two identities are equal iff their normalized URIs are equal.
type ClusterIdentity struct {
	uri  string
	host string
}

// ParseClusterIdentity normalizes a cluster name or URI.
//
// Accepted forms:
//
//	help                             -> https://help.kusto.windows.net
//	help.kusto.windows.net           -> https://help.kusto.windows.net
//	https://Help.Kusto.Windows.net/  -> https://help.kusto.windows.net
func ParseClusterIdentity(name string) (ClusterIdentity, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return ClusterIdentity{}, fmt.Errorf("cluster name is empty")
	}

	if lower := strings.ToLower(s); !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = defaultScheme + "://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ClusterIdentity{}, fmt.Errorf("invalid cluster uri %q: %w", name, err)
	}
	if u.Host == "" {
		return ClusterIdentity{}, fmt.Errorf("invalid cluster uri %q: missing host", name)
	}

	host := strings.ToLower(u.Host)
	if !strings.Contains(host, ".") && !strings.Contains(host, ":") && host != "localhost" {
		host += defaultDomain
	}

	path := strings.TrimRight(u.Path, "/")
	return ClusterIdentity{
		uri:  strings.ToLower(u.Scheme) + "://" + host + path,
		host: host,
	}, nil
}

// MustParseClusterIdentity is like ParseClusterIdentity but panics on error.
// Intended for constants in tests and defaults.
func MustParseClusterIdentity(name string) ClusterIdentity {
	id, err := ParseClusterIdentity(name)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the normalized URI.
func (c ClusterIdentity) String() string {
	return c.uri
}

// Host returns the lower-cased host, which is also the cluster's display name.
func (c ClusterIdentity) Host() string {
	return c.host
}

// IsZero reports whether the identity is unset.
func (c ClusterIdentity) IsZero() bool {
	return c.uri == ""
}

// Equal reports whether two identities denote the same cluster.
func (c ClusterIdentity) Equal(other ClusterIdentity) bool {
	return c.uri == other.uri
}

// ParseClusterIdentities normalizes a list of cluster names, rejecting duplicates.
func ParseClusterIdentities(names []string) ([]ClusterIdentity, error) {
	ids := make([]ClusterIdentity, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		id, err := ParseClusterIdentity(n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id.String()]; dup {
			return nil, fmt.Errorf("duplicate cluster %s", id)
		}
		seen[id.String()] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
