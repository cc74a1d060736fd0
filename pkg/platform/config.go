// Package platform wires the cluster registry, the catalog and the query
// analyzer into an MCP server.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-kusto/pkg/auth"
	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Cache backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

const (
	defaultServerName    = "mcp-kusto"
	defaultServerVersion = "1.0.0"
	defaultAddress       = ":8080"
	defaultMaxOpenConns  = 10
	defaultRetentionDays = 90

	// DefaultSampleSize is the row count of a sample when none is given.
	DefaultSampleSize = 10

	// DefaultSampleMaxRows caps sample sizes.
	DefaultSampleMaxRows = 1000
)

// Config holds the complete server configuration.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Clusters   []string       `yaml:"clusters"`
	Credential string         `yaml:"credential"`
	Cache      CacheConfig    `yaml:"cache"`
	Query      QueryConfig    `yaml:"query"`
	Database   DatabaseConfig `yaml:"database"`
	Auth       AuthConfig     `yaml:"auth"`
	Audit      AuditConfig    `yaml:"audit"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"`
	Address   string `yaml:"address"`

	// ReadOnly rejects management commands in kusto_query.
	ReadOnly bool `yaml:"read_only"`

	// Prompts are served as MCP prompts together with the .md and .txt
	// files found in PromptsDir.
	Prompts    []PromptConfig `yaml:"prompts"`
	PromptsDir string         `yaml:"prompts_dir"`
}

// PromptConfig is a static MCP prompt.
type PromptConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
}

// CacheConfig configures catalog persistence.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`

	// RefreshOnStart ignores persisted catalogs during bootstrap and
	// rediscovers every cluster. The result is still written back.
	RefreshOnStart bool `yaml:"refresh_on_start"`

	Concurrency int `yaml:"concurrency"`
}

// QueryConfig configures query execution.
type QueryConfig struct {
	DefaultDatabase       string        `yaml:"default_database"`
	ValidateBeforeExecute bool          `yaml:"validate_before_execute"`
	SampleMaxRows         int           `yaml:"sample_max_rows"`
	Timeout               time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the PostgreSQL connection shared by the catalog
// store and the audit log.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuthConfig configures HTTP authentication.
type AuthConfig struct {
	APIKeys APIKeyAuthConfig `yaml:"api_keys"`
}

// APIKeyAuthConfig configures API key authentication.
type APIKeyAuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Keys    []auth.APIKey `yaml:"keys"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = defaultServerName
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = defaultServerVersion
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportStdio
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultAddress
	}
	if cfg.Credential == "" {
		cfg.Credential = string(kusto.CredentialDefault)
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = BackendFile
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath()
	}
	if cfg.Cache.Concurrency == 0 {
		cfg.Cache.Concurrency = catalog.DefaultConcurrency
	}
	if cfg.Query.DefaultDatabase == "" {
		cfg.Query.DefaultDatabase = kusto.DefaultDatabase
	}
	if cfg.Query.SampleMaxRows == 0 {
		cfg.Query.SampleMaxRows = DefaultSampleMaxRows
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = defaultRetentionDays
	}
}

// DefaultCachePath returns the per-user catalog cache directory, falling
// back to the temp directory when the user has none.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mcp-kusto", "cache")
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Clusters) == 0 {
		errs = append(errs, "at least one cluster is required")
	} else if _, err := kusto.ParseClusterIdentities(c.Clusters); err != nil {
		errs = append(errs, fmt.Sprintf("clusters: %v", err))
	}

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Sprintf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport))
	}

	switch strings.ToLower(c.Credential) {
	case string(kusto.CredentialDefault), string(kusto.CredentialCLI), string(kusto.CredentialManagedIdentity):
	default:
		errs = append(errs, fmt.Sprintf("credential must be default, cli or managedidentity, got %q", c.Credential))
	}

	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the postgres cache backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be file, postgres or none, got %q", c.Cache.Backend))
	}

	if c.Cache.Concurrency < 0 {
		errs = append(errs, "cache.concurrency must not be negative")
	}
	if c.Query.SampleMaxRows < 1 {
		errs = append(errs, "query.sample_max_rows must be positive")
	}
	if c.Query.Timeout < 0 {
		errs = append(errs, "query.timeout must not be negative")
	}

	for i, pr := range c.Server.Prompts {
		if pr.Name == "" || pr.Content == "" {
			errs = append(errs, fmt.Sprintf("server.prompts[%d]: name and content are required", i))
		}
	}

	if c.Auth.APIKeys.Enabled {
		if len(c.Auth.APIKeys.Keys) == 0 {
			errs = append(errs, "auth.api_keys.keys is required when API keys are enabled")
		}
		for i, k := range c.Auth.APIKeys.Keys {
			if err := k.Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("auth.api_keys.keys[%d]: %v", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ClusterIdentities returns the normalized configured clusters.
func (c *Config) ClusterIdentities() ([]kusto.ClusterIdentity, error) {
	ids, err := kusto.ParseClusterIdentities(c.Clusters)
	if err != nil {
		return nil, fmt.Errorf("parsing clusters: %w", err)
	}
	return ids, nil
}
