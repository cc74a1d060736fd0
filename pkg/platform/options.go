package platform

import (
	"database/sql"

	"github.com/txn2/mcp-kusto/pkg/audit"
	"github.com/txn2/mcp-kusto/pkg/auth"
	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Options configures the platform.
type Options struct {
	// Config is the server configuration.
	Config *Config

	// DB is the PostgreSQL connection (optional, opened from
	// database.dsn when not provided). A provided DB is not closed by
	// the platform.
	DB *sql.DB

	// HandleFactory builds cluster handles (optional, defaults to the
	// Azure Data Explorer SDK).
	HandleFactory kusto.HandleFactory

	// Store persists catalogs (optional, created from cache.backend).
	Store catalog.Store

	// AuditLogger records tool calls (optional, created from config when
	// audit is enabled).
	AuditLogger audit.Logger

	// Authenticator gates the HTTP transport (optional, created from
	// auth.api_keys).
	Authenticator auth.Authenticator
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithHandleFactory sets the cluster handle factory.
func WithHandleFactory(f kusto.HandleFactory) Option {
	return func(o *Options) {
		o.HandleFactory = f
	}
}

// WithStore sets the catalog store.
func WithStore(s catalog.Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l audit.Logger) Option {
	return func(o *Options) {
		o.AuditLogger = l
	}
}

// WithAuthenticator sets the HTTP authenticator.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *Options) {
		o.Authenticator = a
	}
}
