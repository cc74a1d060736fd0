package kusto

import (
	"fmt"
	"strings"
)

// NotFoundKind names the kind of catalog entity a lookup failed for.
type NotFoundKind string

// NotFoundKind values.
const (
	KindCluster  NotFoundKind = "Cluster"
	KindDatabase NotFoundKind = "Database"
	KindTable    NotFoundKind = "Table"
)

// NotFoundError is returned when a cluster, database or table does not
// exist. It always carries the valid alternatives so callers can discover
// what exists from the error alone.
type NotFoundError struct {
	Kind         NotFoundKind
	Name         string
	Scope        string // enclosing cluster or database, empty for clusters
	Alternatives []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s '%s' not found", e.Kind, e.Name)
	switch e.Kind {
	case KindDatabase:
		fmt.Fprintf(&b, " in cluster '%s'", e.Scope)
	case KindTable:
		fmt.Fprintf(&b, " in database '%s'", e.Scope)
	}
	fmt.Fprintf(&b, ". Valid %s are:", pluralKind(e.Kind))
	for _, alt := range e.Alternatives {
		b.WriteString("\n- ")
		b.WriteString(alt)
	}
	return b.String()
}

func pluralKind(k NotFoundKind) string {
	switch k {
	case KindCluster:
		return "clusters"
	case KindDatabase:
		return "databases"
	default:
		return "tables"
	}
}

// TransportError is returned when talking to a cluster fails at the
// network or credential level.
type TransportError struct {
	Cluster ClusterIdentity
	Op      string
	Auth    bool
	Err     error
}

func (e *TransportError) Error() string {
	kind := "transport"
	if e.Auth {
		kind = "authentication"
	}
	return fmt.Sprintf("%s error talking to %s (%s): %v", kind, e.Cluster, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
