package kusto

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultDatabase is the database used when a request does not name one.
const DefaultDatabase = "NetDefaultDB"

// DatabaseInfo is one row of a cluster's database listing.
type DatabaseInfo struct {
	Name          string
	AlternateName string
}

// ColumnSchema describes a column returned by schema discovery.
type ColumnSchema struct {
	Name string
	Type string
}

// TableSchema describes a table returned by schema discovery.
type TableSchema struct {
	Name          string
	AlternateName string
	Folder        string
	DocString     string
	Columns       []ColumnSchema
}

// QueryOptions tunes a query request.
type QueryOptions struct {
	// ClientRequestID overrides the generated request id.
	ClientRequestID string

	// Timeout bounds the request on the server side. Zero keeps the
	// service default.
	Timeout time.Duration
}

// ResultColumn is a named, typed column of a result table.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultTable is one result set of a query.
type ResultTable struct {
	Name    string         `json:"name"`
	Columns []ResultColumn `json:"columns"`
	Rows    [][]any        `json:"rows"`
}

// QueryResult is the complete tabular outcome of a remote query.
type QueryResult struct {
	Tables []ResultTable `json:"tables"`
}

// ClusterHandle is one authenticated connection to a single cluster.
type ClusterHandle interface {
	// Identity returns the cluster this handle talks to.
	Identity() ClusterIdentity

	// DiscoverDatabases lists the databases visible to the credential.
	DiscoverDatabases(ctx context.Context) ([]DatabaseInfo, error)

	// DiscoverSchema lists the tables and columns of one database.
	DiscoverSchema(ctx context.Context, database string) ([]TableSchema, error)

	// ExecuteQuery runs a query and returns its result sets.
	ExecuteQuery(ctx context.Context, database, query string, opts QueryOptions) (*QueryResult, error)

	// Close releases the underlying clients.
	Close() error
}

// Credential selects how handles authenticate.
type Credential string

// Credential kinds.
const (
	CredentialDefault         Credential = "default"
	CredentialCLI             Credential = "cli"
	CredentialManagedIdentity Credential = "managedidentity"
)

// ParseCredential maps a configured credential name to a Credential.
// Unknown or empty names fall back to CredentialDefault.
func ParseCredential(s string) Credential {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cli":
		return CredentialCLI
	case "managedidentity":
		return CredentialManagedIdentity
	default:
		return CredentialDefault
	}
}

// HandleFactory builds a handle for one cluster. Construction must be local:
// it may not require a network round trip.
type HandleFactory func(id ClusterIdentity, cred Credential) (ClusterHandle, error)

// ClientRequestID builds the request id attached to queries, in the form
// "<app>;<database>;<id>".
func ClientRequestID(app, database, id string) string {
	return fmt.Sprintf("%s;%s;%s", app, database, id)
}
