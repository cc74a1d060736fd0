package platform

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/analyzer"
	"github.com/txn2/mcp-kusto/pkg/kusto"
	"github.com/txn2/mcp-kusto/pkg/kusto/adx"
)

type validateQueryInput struct {
	Cluster  string `json:"cluster,omitempty" jsonschema:"cluster name or URI; defaults to the first configured cluster"`
	Database string `json:"database,omitempty" jsonschema:"database the query runs in"`
	Query    string `json:"query,omitempty" jsonschema:"KQL query text"`
}

type queryInput struct {
	Cluster  string `json:"cluster,omitempty" jsonschema:"cluster name or URI; defaults to the first configured cluster"`
	Database string `json:"database,omitempty" jsonschema:"database the query runs in"`
	Query    string `json:"query,omitempty" jsonschema:"KQL query or management command"`
}

type tableSampleInput struct {
	Cluster  string `json:"cluster,omitempty" jsonschema:"cluster name or URI; defaults to the first configured cluster"`
	Database string `json:"database,omitempty" jsonschema:"database holding the table"`
	Table    string `json:"table,omitempty" jsonschema:"table to sample"`
	Size     int    `json:"size,omitempty" jsonschema:"number of rows, 10 by default"`
}

type validateOutput struct {
	Valid            bool                       `json:"valid"`
	OutputSchema     []analyzer.Column          `json:"output_schema,omitempty"`
	Errors           []analyzer.Diagnostic      `json:"errors,omitempty"`
	Warnings         []analyzer.Diagnostic      `json:"warnings,omitempty"`
	ReferencedTables []analyzer.ReferencedTable `json:"referenced_tables"`
}

func (p *Platform) registerQueryTools() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name: ToolValidateQuery,
		Description: "Check a KQL query against the cached catalog without running it. " +
			"Reports unknown tables, columns and functions, type errors, the referenced tables " +
			"and, when the query is valid, the schema of its result.",
		Annotations: readOnlyAnnotations(),
	}, p.handleValidateQuery)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolQuery,
		Description: "Execute a KQL query on a cluster and database. Results are returned as CSV with a header row; multiple result sets are separated by a blank line.",
	}, p.handleQuery)

	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        ToolTableSample,
		Description: "Fetch a sample of rows from a table as CSV.",
		Annotations: readOnlyAnnotations(),
	}, p.handleTableSample)
}

func (p *Platform) handleValidateQuery(ctx context.Context, _ *mcp.CallToolRequest, in validateQueryInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Query) == "" {
		return errorResult(errors.New("query is required")), nil, nil
	}
	res, err := p.validate(ctx, in.Cluster, in.Database, in.Query)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(validateOutput{
		Valid:            res.OK(),
		OutputSchema:     res.OutputSchema,
		Errors:           res.Errors(),
		Warnings:         res.Warnings(),
		ReferencedTables: res.ReferencedTables,
	}), nil, nil
}

// validate analyzes text in the given database. The database is loaded
// first so the analysis sees its tables.
func (p *Platform) validate(ctx context.Context, cluster, database, text string) (*analyzer.AnalysisResult, error) {
	id, db, err := p.loadedDatabase(ctx, cluster, database)
	if err != nil {
		return nil, err
	}
	res, err := p.analyzer.Validate(ctx, p.cache.Snapshot(), id.String(), db.Name, text)
	if err != nil {
		return nil, fmt.Errorf("validating query: %w", err)
	}
	return res, nil
}

func (p *Platform) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Query) == "" {
		return errorResult(errors.New("query is required")), nil, nil
	}
	control := adx.IsControlCommand(in.Query)
	if control && p.config.Server.ReadOnly {
		return errorResult(ErrReadOnly), nil, nil
	}
	if p.config.Query.ValidateBeforeExecute && !control {
		res, err := p.validate(ctx, in.Cluster, in.Database, in.Query)
		if err != nil {
			return errorResult(err), nil, nil
		}
		if !res.OK() {
			return errorResult(validationError(res)), nil, nil
		}
	}
	out, err := p.execute(ctx, in.Cluster, in.Database, in.Query)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(out), nil, nil
}

func (p *Platform) handleTableSample(ctx context.Context, _ *mcp.CallToolRequest, in tableSampleInput) (*mcp.CallToolResult, any, error) {
	if in.Table == "" {
		return errorResult(errors.New("table is required")), nil, nil
	}
	query := SampleQuery(in.Table, ClampSampleSize(in.Size, p.config.Query.SampleMaxRows))
	out, err := p.execute(ctx, in.Cluster, in.Database, query)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(out), nil, nil
}

// execute runs text on the cluster and renders the result as CSV.
func (p *Platform) execute(ctx context.Context, cluster, database, text string) (string, error) {
	id, database, err := p.target(cluster, database)
	if err != nil {
		return "", err
	}
	handle, err := p.registry.Get(id)
	if err != nil {
		return "", err
	}
	res, err := handle.ExecuteQuery(ctx, database, text, kusto.QueryOptions{Timeout: p.config.Query.Timeout})
	if err != nil {
		return "", err
	}
	return FormatCSV(res)
}

// ClampSampleSize bounds a requested sample size to [1, maxRows]. Zero or a
// negative size selects DefaultSampleSize.
func ClampSampleSize(size, maxRows int) int {
	if size <= 0 {
		size = DefaultSampleSize
	}
	if maxRows > 0 && size > maxRows {
		size = maxRows
	}
	return size
}

// SampleQuery returns the query fetching n rows of table.
func SampleQuery(table string, n int) string {
	return fmt.Sprintf("table('%s') | limit %d", strings.ReplaceAll(table, "'", `\'`), n)
}

// FormatCSV renders every result table as CSV with a header row. Tables are
// separated by an empty line.
func FormatCSV(res *kusto.QueryResult) (string, error) {
	var buf bytes.Buffer
	for i, t := range res.Tables {
		if i > 0 {
			buf.WriteString("\n")
		}
		w := csv.NewWriter(&buf)
		header := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			header[j] = c.Name
		}
		if err := w.Write(header); err != nil {
			return "", fmt.Errorf("writing csv header: %w", err)
		}
		record := make([]string, len(t.Columns))
		for _, row := range t.Rows {
			for j := range record {
				record[j] = ""
				if j < len(row) && row[j] != nil {
					record[j] = fmt.Sprint(row[j])
				}
			}
			if err := w.Write(record); err != nil {
				return "", fmt.Errorf("writing csv row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", fmt.Errorf("writing csv: %w", err)
		}
	}
	return buf.String(), nil
}

func validationError(res *analyzer.AnalysisResult) error {
	errs := res.Errors()
	msgs := make([]string, len(errs))
	for i, d := range errs {
		msgs[i] = d.String()
	}
	return fmt.Errorf("query failed validation:\n%s", strings.Join(msgs, "\n"))
}
