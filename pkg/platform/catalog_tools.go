package platform

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

type listClustersInput struct{}

type listDatabasesInput struct {
	Cluster string `json:"cluster,omitempty" jsonschema:"cluster name or URI; defaults to the first configured cluster"`
}

type listTablesInput struct {
	Cluster  string `json:"cluster,omitempty" jsonschema:"cluster name or URI; defaults to the first configured cluster"`
	Database string `json:"database,omitempty" jsonschema:"database name or alternate name"`
}

type describeTableInput struct {
	Cluster  string `json:"cluster,omitempty" jsonschema:"cluster name or URI; defaults to the first configured cluster"`
	Database string `json:"database,omitempty" jsonschema:"database name or alternate name"`
	Table    string `json:"table,omitempty" jsonschema:"table name"`
}

type refreshCatalogInput struct {
	Cluster string `json:"cluster,omitempty" jsonschema:"cluster to rediscover; all clusters when empty"`
}

type clusterListing struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type databaseListing struct {
	Name          string   `json:"name"`
	AlternateName string   `json:"alternate_name,omitempty"`
	Loaded        bool     `json:"loaded"`
	Tables        []string `json:"tables"`
}

type refreshOutput struct {
	Refreshed []string `json:"refreshed"`
	Clusters  int      `json:"clusters"`
	Databases int      `json:"databases"`
	Tables    int      `json:"tables"`
}

func (p *Platform) registerCatalogTools() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolListClusters,
		Description: "List the configured Kusto clusters.",
		Annotations: readOnlyAnnotations(),
	}, p.handleListClusters)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolListDatabases,
		Description: "List the databases of a cluster along with their table names.",
		Annotations: readOnlyAnnotations(),
	}, p.handleListDatabases)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolListTables,
		Description: "List the tables of a database with their folders and column counts.",
		Annotations: readOnlyAnnotations(),
	}, p.handleListTables)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolDescribeTable,
		Description: "Describe a table: its columns and their Kusto types.",
		Annotations: readOnlyAnnotations(),
	}, p.handleDescribeTable)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolCatalogSummary,
		Description: "List every cluster, database and table known to the server in one call.",
		Annotations: readOnlyAnnotations(),
	}, p.handleCatalogSummary)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolRefreshCatalog,
		Description: "Rediscover the databases and tables of one cluster, or of every cluster, and replace the cached catalog.",
	}, p.handleRefreshCatalog)
}

func (p *Platform) handleListClusters(_ context.Context, _ *mcp.CallToolRequest, _ listClustersInput) (*mcp.CallToolResult, any, error) {
	clusters := p.cache.Snapshot().Clusters()
	out := make([]clusterListing, len(clusters))
	for i, cc := range clusters {
		out[i] = clusterListing{Name: cc.ID.Host(), URI: cc.ID.String()}
	}
	return jsonResult(out), nil, nil
}

func (p *Platform) handleListDatabases(_ context.Context, _ *mcp.CallToolRequest, in listDatabasesInput) (*mcp.CallToolResult, any, error) {
	id, _, err := p.target(in.Cluster, "")
	if err != nil {
		return errorResult(err), nil, nil
	}
	cc, err := p.cache.Snapshot().Cluster(id)
	if err != nil {
		return errorResult(err), nil, nil
	}
	out := make([]databaseListing, len(cc.Databases))
	for i, d := range cc.Databases {
		out[i] = databaseListing{
			Name:          d.Name,
			AlternateName: d.AlternateName,
			Loaded:        d.Loaded,
			Tables:        d.TableNames(),
		}
	}
	return jsonResult(out), nil, nil
}

func (p *Platform) handleListTables(ctx context.Context, _ *mcp.CallToolRequest, in listTablesInput) (*mcp.CallToolResult, any, error) {
	id, db, err := p.loadedDatabase(ctx, in.Cluster, in.Database)
	if err != nil {
		return errorResult(err), nil, nil
	}
	tables, err := p.cache.ListTables(id.String(), db.Name)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(tables), nil, nil
}

func (p *Platform) handleDescribeTable(ctx context.Context, _ *mcp.CallToolRequest, in describeTableInput) (*mcp.CallToolResult, any, error) {
	if in.Table == "" {
		return errorResult(fmt.Errorf("table is required")), nil, nil
	}
	_, db, err := p.loadedDatabase(ctx, in.Cluster, in.Database)
	if err != nil {
		return errorResult(err), nil, nil
	}
	table, err := db.Table(in.Table)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(table), nil, nil
}

func (p *Platform) handleCatalogSummary(_ context.Context, _ *mcp.CallToolRequest, _ listClustersInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(p.cache.Summary()), nil, nil
}

func (p *Platform) handleRefreshCatalog(ctx context.Context, _ *mcp.CallToolRequest, in refreshCatalogInput) (*mcp.CallToolResult, any, error) {
	ids := p.clusters
	if in.Cluster != "" {
		id, err := p.cache.ResolveCluster(in.Cluster)
		if err != nil {
			return errorResult(err), nil, nil
		}
		ids = []kusto.ClusterIdentity{id}
	}
	if err := p.loader.Refresh(ctx, p.cache, ids...); err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(refreshSummary(ids, p.cache.Snapshot())), nil, nil
}

func refreshSummary(ids []kusto.ClusterIdentity, state *catalog.GlobalState) refreshOutput {
	out := refreshOutput{Refreshed: make([]string, len(ids))}
	for i, id := range ids {
		out.Refreshed[i] = id.String()
	}
	out.Clusters, out.Databases, out.Tables = state.Stats()
	return out
}
