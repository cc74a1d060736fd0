package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/mcp-kusto/pkg/catalog"
)

// tableTemplateURI addresses one table schema. The cluster segment accepts
// a short name such as "help" or a full host.
const tableTemplateURI = "kusto://{cluster}/{database}/{table}"

type tableResource struct {
	Cluster  string                `json:"cluster"`
	Database string                `json:"database"`
	Table    *catalog.TableCatalog `json:"table"`
}

func (p *Platform) registerResources() {
	p.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: tableTemplateURI,
		Name:        "Kusto Table Schema",
		Description: "Columns and Kusto types of a table",
		MIMEType:    "application/json",
	}, p.handleTableResource)
}

// parseTemplateVars extracts named variables from a URI using a URI template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}
	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}
	vars := make(map[string]string, len(tmpl.Varnames()))
	for _, name := range tmpl.Varnames() {
		vars[name] = match.Get(name).String()
	}
	return vars, nil
}

func (p *Platform) handleTableResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(tableTemplateURI, uri)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}
	cluster, database, table := vars["cluster"], vars["database"], vars["table"]
	if cluster == "" || database == "" || table == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	id, db, err := p.loadedDatabase(ctx, cluster, database)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}
	t, err := db.Table(table)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	data, err := json.MarshalIndent(tableResource{Cluster: id.String(), Database: db.Name, Table: t}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding table resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
