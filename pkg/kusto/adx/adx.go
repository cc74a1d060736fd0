// Package adx implements kusto.ClusterHandle over the Azure Data Explorer
// Go SDK.
package adx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	azkusto "github.com/Azure/azure-kusto-go/kusto"
	kerrors "github.com/Azure/azure-kusto-go/kusto/data/errors"
	"github.com/Azure/azure-kusto-go/kusto/data/table"
	"github.com/Azure/azure-kusto-go/kusto/kql"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/google/uuid"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// DefaultApplication prefixes client request ids.
const DefaultApplication = "mcp-kusto"

// maxMemory is the per-iterator and per-node memory ceiling requested for
// every query (64 GiB).
const maxMemory = 68719476736

// Handle is a ClusterHandle backed by one SDK client.
type Handle struct {
	id     kusto.ClusterIdentity
	app    string
	client *azkusto.Client
}

// Factory returns a HandleFactory building SDK handles. app prefixes the
// client request id of every query.
func Factory(app string) kusto.HandleFactory {
	if app == "" {
		app = DefaultApplication
	}
	return func(id kusto.ClusterIdentity, cred kusto.Credential) (kusto.ClusterHandle, error) {
		return New(id, cred, app)
	}
}

// New creates a handle for one cluster. No request is sent; credentials
// are acquired on first use.
func New(id kusto.ClusterIdentity, cred kusto.Credential, app string) (*Handle, error) {
	kcsb := azkusto.NewConnectionStringBuilder(id.String())
	switch cred {
	case kusto.CredentialCLI:
		kcsb = kcsb.WithAzCli()
	case kusto.CredentialManagedIdentity:
		kcsb = kcsb.WithSystemManagedIdentity()
	default:
		kcsb = kcsb.WithDefaultAzureCredential()
	}
	client, err := azkusto.New(kcsb)
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %w", id, err)
	}
	return &Handle{id: id, app: app, client: client}, nil
}

// Identity implements kusto.ClusterHandle.
func (h *Handle) Identity() kusto.ClusterIdentity {
	return h.id
}

// DiscoverDatabases implements kusto.ClusterHandle with .show databases.
func (h *Handle) DiscoverDatabases(ctx context.Context) ([]kusto.DatabaseInfo, error) {
	const op = "show databases"
	iter, err := h.client.Mgmt(ctx, kusto.DefaultDatabase, kql.New(".show databases"))
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	defer iter.Stop()

	var infos []kusto.DatabaseInfo
	err = iter.DoOnRowOrError(func(row *table.Row, rowErr *kerrors.Error) error {
		if rowErr != nil {
			return rowErr
		}
		fields := rowFields(row)
		infos = append(infos, kusto.DatabaseInfo{
			Name:          fields["DatabaseName"],
			AlternateName: fields["PrettyName"],
		})
		return nil
	})
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	return infos, nil
}

// DiscoverSchema implements kusto.ClusterHandle with
// .show database schema as json.
func (h *Handle) DiscoverSchema(ctx context.Context, database string) ([]kusto.TableSchema, error) {
	const op = "show database schema"
	cmd := kql.New("").AddUnsafe(".show database " + QuoteName(database) + " schema as json")
	iter, err := h.client.Mgmt(ctx, database, cmd)
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	defer iter.Stop()

	var doc string
	err = iter.DoOnRowOrError(func(row *table.Row, rowErr *kerrors.Error) error {
		if rowErr != nil {
			return rowErr
		}
		doc = rowFields(row)["DatabaseSchema"]
		return nil
	})
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	tables, err := ParseSchema(database, []byte(doc))
	if err != nil {
		return nil, fmt.Errorf("decoding schema of %s/%s: %w", h.id, database, err)
	}
	return tables, nil
}

// ExecuteQuery implements kusto.ClusterHandle. Text starting with '.' is
// sent as a management command.
func (h *Handle) ExecuteQuery(ctx context.Context, database, query string, opts kusto.QueryOptions) (*kusto.QueryResult, error) {
	if database == "" {
		database = kusto.DefaultDatabase
	}
	reqID := opts.ClientRequestID
	if reqID == "" {
		reqID = kusto.ClientRequestID(h.app, database, uuid.NewString())
	}
	options := []azkusto.QueryOption{
		azkusto.ClientRequestID(reqID),
		azkusto.NoTruncation(),
		azkusto.MaxMemoryConsumptionPerIterator(maxMemory),
		azkusto.MaxMemoryConsumptionPerQueryPerNode(maxMemory),
	}
	if opts.Timeout > 0 {
		options = append(options, azkusto.ServerTimeout(opts.Timeout))
	}

	stmt := kql.New("").AddUnsafe(query)
	if IsControlCommand(query) {
		return h.executeCommand(ctx, database, stmt, options)
	}
	data, err := h.client.QueryToJson(ctx, database, stmt, options...)
	if err != nil {
		return nil, h.transportError(ctx, "query", err)
	}
	res, err := decodeFrames([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("query on %s/%s: %w", h.id, database, err)
	}
	return res, nil
}

// executeCommand runs a management command. The v1 response reaches us
// row by row, so a command returning no rows has no columns either.
func (h *Handle) executeCommand(ctx context.Context, database string, stmt azkusto.Statement, options []azkusto.QueryOption) (*kusto.QueryResult, error) {
	iter, err := h.client.Mgmt(ctx, database, stmt, options...)
	if err != nil {
		return nil, h.transportError(ctx, "command", err)
	}
	defer iter.Stop()

	result := kusto.ResultTable{Name: kindPrimaryResult}
	err = iter.DoOnRowOrError(func(row *table.Row, rowErr *kerrors.Error) error {
		if rowErr != nil {
			return rowErr
		}
		if result.Columns == nil {
			result.Columns = make([]kusto.ResultColumn, len(row.ColumnTypes))
			for i, c := range row.ColumnTypes {
				result.Columns[i] = kusto.ResultColumn{Name: c.Name, Type: string(c.Type)}
			}
		}
		values := make([]any, len(row.Values))
		for i, v := range row.Values {
			values[i] = v.String()
		}
		result.Rows = append(result.Rows, values)
		return nil
	})
	if err != nil {
		return nil, h.transportError(ctx, "command", err)
	}
	return &kusto.QueryResult{Tables: []kusto.ResultTable{result}}, nil
}

// Close implements kusto.ClusterHandle.
func (h *Handle) Close() error {
	return h.client.Close()
}

func (h *Handle) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &kusto.TransportError{Cluster: h.id, Op: op, Auth: isAuthError(err), Err: err}
}

func isAuthError(err error) bool {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "Unauthorized")
}

func rowFields(row *table.Row) map[string]string {
	out := make(map[string]string, len(row.ColumnTypes))
	for i, c := range row.ColumnTypes {
		if i < len(row.Values) {
			out[c.Name] = row.Values[i].String()
		}
	}
	return out
}

// IsControlCommand reports whether text is a management command.
func IsControlCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), ".")
}

// QuoteName quotes an entity name for use in a command: ['name'].
func QuoteName(name string) string {
	return "['" + strings.ReplaceAll(name, "'", `\'`) + "']"
}
