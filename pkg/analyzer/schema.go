package analyzer

import (
	"strconv"
	"strings"

	"github.com/txn2/mcp-kusto/pkg/catalog"
)

// Column is one column of a tabular result.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is the ordered column list of a tabular expression. An open schema
// comes from an operator whose output is not modeled; its columns are a
// lower bound and unknown names are not reported against it.
type Schema struct {
	Columns []Column
	Open    bool
}

func tableSchema(t *catalog.TableCatalog) *Schema {
	s := &Schema{Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		s.Columns[i] = Column{Name: c.Name, Type: NormalizeType(c.Type)}
	}
	return s
}

func openSchema() *Schema {
	return &Schema{Open: true}
}

func (s *Schema) lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s *Schema) index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) clone() *Schema {
	out := &Schema{Columns: make([]Column, len(s.Columns)), Open: s.Open}
	copy(out.Columns, s.Columns)
	return out
}

// set replaces the column of the same name, or appends it.
func (s *Schema) set(c Column) {
	if i := s.index(c.Name); i >= 0 {
		s.Columns[i] = c
		return
	}
	s.Columns = append(s.Columns, c)
}

// matching returns the columns whose names match a pattern that may contain
// '*' wildcards.
func (s *Schema) matching(pattern string) []Column {
	var out []Column
	for _, c := range s.Columns {
		if matchWildcard(pattern, c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// matchWildcard matches name against pattern, where '*' matches any run of
// characters.
func matchWildcard(pattern, name string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, p)
		if i < 0 {
			return false
		}
		rest = rest[i+len(p):]
	}
	return strings.HasSuffix(rest, last)
}

// uniqueName returns name, or name with the smallest numeric suffix that
// does not collide with an existing column.
func uniqueName(s *Schema, name string) string {
	if s.index(name) < 0 {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if s.index(candidate) < 0 {
			return candidate
		}
	}
}
