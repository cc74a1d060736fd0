package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// Tool names.
const (
	ToolListClusters   = "kusto_list_clusters"
	ToolListDatabases  = "kusto_list_databases"
	ToolListTables     = "kusto_list_tables"
	ToolDescribeTable  = "kusto_describe_table"
	ToolCatalogSummary = "kusto_catalog_summary"
	ToolValidateQuery  = "kusto_validate_query"
	ToolQuery          = "kusto_query"
	ToolTableSample    = "kusto_table_sample"
	ToolRefreshCatalog = "kusto_refresh_catalog"
)

func (p *Platform) registerTools() {
	p.registerCatalogTools()
	p.registerQueryTools()
}

func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{ReadOnlyHint: true}
}

// errorResult reports a tool failure to the client.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encoding result: %w", err))
	}
	return textResult(string(data))
}

// target resolves the cluster and database named by a tool input. An empty
// cluster selects the first configured one; an empty database selects
// query.default_database.
func (p *Platform) target(cluster, database string) (kusto.ClusterIdentity, string, error) {
	if cluster == "" {
		if len(p.clusters) == 0 {
			return kusto.ClusterIdentity{}, "", fmt.Errorf("no clusters configured")
		}
		cluster = p.clusters[0].String()
	}
	id, err := p.cache.ResolveCluster(cluster)
	if err != nil {
		return kusto.ClusterIdentity{}, "", err
	}
	if database == "" {
		database = p.config.Query.DefaultDatabase
	}
	return id, database, nil
}

// loadedDatabase returns a database whose tables are known, discovering
// them first if only the listing was cached.
func (p *Platform) loadedDatabase(ctx context.Context, cluster, database string) (kusto.ClusterIdentity, *catalog.DatabaseCatalog, error) {
	id, database, err := p.target(cluster, database)
	if err != nil {
		return kusto.ClusterIdentity{}, nil, err
	}
	db, err := p.loader.EnsureDatabase(ctx, p.cache, id, database)
	if err != nil {
		return kusto.ClusterIdentity{}, nil, err
	}
	return id, db, nil
}
