package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/analyzer"
	"github.com/txn2/mcp-kusto/pkg/audit"
	auditpg "github.com/txn2/mcp-kusto/pkg/audit/postgres"
	"github.com/txn2/mcp-kusto/pkg/auth"
	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/catalog/filestore"
	catalogpg "github.com/txn2/mcp-kusto/pkg/catalog/postgres"
	"github.com/txn2/mcp-kusto/pkg/database/migrate"
	"github.com/txn2/mcp-kusto/pkg/health"
	"github.com/txn2/mcp-kusto/pkg/kusto"
	"github.com/txn2/mcp-kusto/pkg/kusto/adx"
	"github.com/txn2/mcp-kusto/pkg/middleware"
)

// ErrReadOnly is returned when a management command is sent to a server
// configured as read-only.
var ErrReadOnly = errors.New("management commands are disabled on a read-only server")

const (
	auditCleanupInterval = 24 * time.Hour
	memoryAuditCapacity  = 10000
)

const serverInstructions = `Tools for exploring and querying Azure Data Explorer (Kusto) clusters.
Use kusto_list_databases and kusto_list_tables to discover what exists, kusto_describe_table
for column types, and kusto_validate_query to check a query against the catalog before
running it with kusto_query.`

// Platform is the Kusto MCP server with its catalog and analyzer.
type Platform struct {
	config *Config

	mcpServer *mcp.Server
	lifecycle *Lifecycle
	health    *health.Checker

	clusters []kusto.ClusterIdentity
	registry *kusto.Registry
	store    catalog.Store
	loader   *catalog.Loader
	cache    *catalog.Cache
	analyzer *analyzer.Analyzer

	db     *sql.DB
	ownsDB bool

	auditLogger   audit.Logger
	authenticator auth.Authenticator
}

// New creates a platform. No cluster is contacted until Start.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
	}

	if err := p.initializeComponents(options); err != nil {
		if closeErr := p.Close(); closeErr != nil {
			slog.Warn("closing partially initialized platform", "error", closeErr)
		}
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return p, nil
}

func (p *Platform) initializeComponents(opts *Options) error {
	if err := p.initDatabase(opts); err != nil {
		return err
	}
	if err := p.initClusters(opts); err != nil {
		return err
	}
	if err := p.initCatalog(opts); err != nil {
		return err
	}
	p.initAudit(opts)
	p.initAuth(opts)
	return p.finalizeSetup()
}

// initDatabase opens the PostgreSQL connection when one is needed and
// brings its schema up to date.
func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
	} else if p.config.Database.DSN != "" {
		db, err := sql.Open("postgres", p.config.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(p.config.Database.MaxOpenConns)
		p.db = db
		p.ownsDB = true
	}
	if p.db == nil {
		return nil
	}
	if err := migrate.Run(p.db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (p *Platform) initClusters(opts *Options) error {
	ids, err := p.config.ClusterIdentities()
	if err != nil {
		return err
	}
	factory := opts.HandleFactory
	if factory == nil {
		factory = adx.Factory(p.config.Server.Name)
	}
	registry, err := kusto.NewRegistry(ids, kusto.ParseCredential(p.config.Credential), factory)
	if err != nil {
		return fmt.Errorf("creating cluster registry: %w", err)
	}
	p.clusters = ids
	p.registry = registry
	return nil
}

func (p *Platform) initCatalog(opts *Options) error {
	if opts.Store != nil {
		p.store = opts.Store
	} else {
		store, err := p.createStore()
		if err != nil {
			return fmt.Errorf("creating catalog store: %w", err)
		}
		p.store = store
	}

	p.loader = catalog.NewLoader(p.registry,
		catalog.WithStore(p.store),
		catalog.WithConcurrency(p.config.Cache.Concurrency),
	)
	p.cache = catalog.NewCache(nil)
	p.analyzer = analyzer.New(
		analyzer.NewResolver(p.loader, p.registry),
		analyzer.WithPromotion(p.cache),
	)
	return nil
}

func (p *Platform) createStore() (catalog.Store, error) {
	switch p.config.Cache.Backend {
	case BackendNone:
		return catalog.NoopStore{}, nil
	case BackendPostgres:
		if p.db == nil {
			return nil, errors.New("postgres cache backend requires a database connection")
		}
		store, err := catalogpg.New(p.db)
		if err != nil {
			return nil, fmt.Errorf("opening postgres catalog store: %w", err)
		}
		return store, nil
	default:
		store, err := filestore.New(p.config.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening file catalog store: %w", err)
		}
		return store, nil
	}
}

func (p *Platform) initAudit(opts *Options) {
	switch {
	case opts.AuditLogger != nil:
		p.auditLogger = opts.AuditLogger
	case !p.config.Audit.Enabled:
		return
	case p.db != nil:
		store := auditpg.New(p.db, auditpg.Config{RetentionDays: p.config.Audit.RetentionDays})
		store.StartCleanupRoutine(auditCleanupInterval)
		p.auditLogger = store
	default:
		p.auditLogger = audit.NewMemoryLogger(memoryAuditCapacity, p.config.Audit.RetentionDays)
	}
}

func (p *Platform) initAuth(opts *Options) {
	if opts.Authenticator != nil {
		p.authenticator = opts.Authenticator
		return
	}
	if p.config.Auth.APIKeys.Enabled {
		p.authenticator = auth.NewAPIKeyAuthenticator(p.config.Auth.APIKeys.Keys)
	}
}

func (p *Platform) finalizeSetup() error {
	p.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    p.config.Server.Name,
		Version: p.config.Server.Version,
	}, &mcp.ServerOptions{Instructions: serverInstructions})

	p.registerTools()
	p.registerResources()
	if err := p.registerPrompts(); err != nil {
		return err
	}

	// The first middleware runs outermost: the tool call is attached to
	// the context before logging and audit observe it.
	chain := []mcp.Middleware{
		middleware.MCPToolCallMiddleware(p.config.Server.Transport),
		middleware.MCPLoggingMiddleware(),
	}
	if p.auditLogger != nil {
		chain = append(chain, middleware.MCPAuditMiddleware(p.auditLogger))
	}
	p.mcpServer.AddReceivingMiddleware(chain...)

	p.lifecycle.Append(Hook{Name: "catalog", Start: p.bootstrap})
	p.lifecycle.OnStop("health", func(context.Context) error {
		p.health.SetDraining()
		return nil
	})
	return nil
}

// bootstrap discovers every configured cluster and publishes the result.
func (p *Platform) bootstrap(ctx context.Context) error {
	useCache := p.config.Cache.Backend != BackendNone && !p.config.Cache.RefreshOnStart
	state, err := p.loader.Bootstrap(ctx, p.clusters, catalog.BootstrapOptions{UseCache: useCache})
	if err != nil {
		return err
	}
	p.cache.Publish(state)
	p.health.SetDetail(p.catalogStats)
	p.health.SetReady()
	return nil
}

func (p *Platform) catalogStats() map[string]int {
	clusters, databases, tables := p.cache.Snapshot().Stats()
	return map[string]int{"clusters": clusters, "databases": databases, "tables": tables}
}

// Start loads the catalog. Tools answer from an empty catalog until it
// returns.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	return nil
}

// Stop marks the server as draining.
func (p *Platform) Stop(ctx context.Context) error {
	if err := p.lifecycle.Stop(ctx); err != nil {
		return fmt.Errorf("stopping platform: %w", err)
	}
	return nil
}

// Close releases cluster handles, the catalog store, the audit logger and
// the database connection opened by the platform.
func (p *Platform) Close() error {
	var errs []error
	closeResource := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	if p.auditLogger != nil {
		closeResource("audit logger", p.auditLogger)
	}
	if p.store != nil {
		closeResource("catalog store", p.store)
	}
	if p.registry != nil {
		closeResource("cluster registry", p.registry)
	}
	if p.db != nil && p.ownsDB {
		closeResource("database", p.db)
	}
	return errors.Join(errs...)
}

// MCPServer returns the MCP server.
func (p *Platform) MCPServer() *mcp.Server {
	return p.mcpServer
}

// Health returns the readiness tracker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// Authenticator returns the HTTP authenticator, or nil when the HTTP
// transport is open.
func (p *Platform) Authenticator() auth.Authenticator {
	return p.authenticator
}

// Cache returns the catalog cache.
func (p *Platform) Cache() *catalog.Cache {
	return p.cache
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}
