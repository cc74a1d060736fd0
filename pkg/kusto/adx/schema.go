package adx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

type schemaDocument struct {
	Databases map[string]databaseDocument `json:"Databases"`
}

type databaseDocument struct {
	Name              string                   `json:"Name"`
	Tables            map[string]tableDocument `json:"Tables"`
	MaterializedViews map[string]tableDocument `json:"MaterializedViews"`
}

type tableDocument struct {
	Name           string           `json:"Name"`
	Folder         string           `json:"Folder"`
	DocString      string           `json:"DocString"`
	OrderedColumns []columnDocument `json:"OrderedColumns"`
}

type columnDocument struct {
	Name    string `json:"Name"`
	Type    string `json:"Type"`
	CslType string `json:"CslType"`
}

// ParseSchema decodes the output of ".show database schema as json" into
// table schemas sorted by name. Materialized views are included as tables.
func ParseSchema(database string, doc []byte) ([]kusto.TableSchema, error) {
	if len(strings.TrimSpace(string(doc))) == 0 {
		return nil, fmt.Errorf("empty schema document for %q", database)
	}
	var parsed schemaDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("parsing schema document: %w", err)
	}

	db, ok := pickDatabase(parsed.Databases, database)
	if !ok {
		return nil, fmt.Errorf("schema document has no entry for %q", database)
	}

	tables := make([]kusto.TableSchema, 0, len(db.Tables)+len(db.MaterializedViews))
	for _, group := range []map[string]tableDocument{db.Tables, db.MaterializedViews} {
		for key, t := range group {
			name := t.Name
			if name == "" {
				name = key
			}
			ts := kusto.TableSchema{
				Name:      name,
				Folder:    t.Folder,
				DocString: t.DocString,
				Columns:   make([]kusto.ColumnSchema, len(t.OrderedColumns)),
			}
			for i, c := range t.OrderedColumns {
				typ := c.CslType
				if typ == "" {
					typ = c.Type
				}
				ts.Columns[i] = kusto.ColumnSchema{Name: c.Name, Type: typ}
			}
			tables = append(tables, ts)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func pickDatabase(dbs map[string]databaseDocument, name string) (databaseDocument, bool) {
	if db, ok := dbs[name]; ok {
		return db, true
	}
	for key, db := range dbs {
		if strings.EqualFold(key, name) || strings.EqualFold(db.Name, name) {
			return db, true
		}
	}
	if len(dbs) == 1 {
		for _, db := range dbs {
			return db, true
		}
	}
	return databaseDocument{}, false
}
