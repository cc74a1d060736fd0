package analyzer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/txn2/mcp-kusto/pkg/catalog"
	"github.com/txn2/mcp-kusto/pkg/kql"
	"github.com/txn2/mcp-kusto/pkg/kusto"
)

const (
	msgUnknownTable     = "The name '%s' does not refer to any known table, tabular variable or function."
	msgUnknownColumn    = "The name '%s' does not refer to any known column, table, variable or function."
	msgUnknownFunction  = "The name '%s' does not refer to any known function."
	msgNotTabular       = "The expression does not produce a table."
	msgDuplicateColumn  = "The column '%s' is specified more than once."
	msgUnknownType      = "The name '%s' is not a known scalar type."
	msgNumericRequired  = "The expression must have a numeric type."
	msgNoAggregate      = "The expression must contain an aggregate function."
	msgOpaqueOperator   = "The output schema of operator '%s' is not checked; column references after it are not validated."
	msgNoTabularResult  = "The query does not contain a tabular expression."
	msgJoinKeyMissing   = "The join key '%s' must exist on both sides of the join."
	msgUnionNoMatch     = "The pattern '%s' does not match any table in database '%s'."
	msgPreferHas        = "Prefer 'has' over 'contains' when looking for whole terms; it uses the term index."
	msgPredicateNotBool = "The expression must have the type bool."
)

// ReferencedTable is a catalog table a query reads.
type ReferencedTable struct {
	Cluster  string                `json:"cluster"`
	Database string                `json:"database"`
	Table    *catalog.TableCatalog `json:"table"`
}

// binder walks a parsed query against a catalog snapshot, inferring the
// schema of every tabular expression and collecting diagnostics.
type binder struct {
	state    *catalog.GlobalState
	cluster  kusto.ClusterIdentity
	database string

	// failed holds database references the resolver already reported.
	failed map[string]bool

	scalars map[string]string
	tables  map[string]*Schema

	diags   []Diagnostic
	refs    []ReferencedTable
	refSeen map[string]bool
}

func newBinder(state *catalog.GlobalState, failed map[string]bool) *binder {
	return &binder{
		state:    state,
		cluster:  state.CurrentCluster(),
		database: state.CurrentDatabase(),
		failed:   failed,
		scalars:  make(map[string]string),
		tables:   make(map[string]*Schema),
		refSeen:  make(map[string]bool),
	}
}

func (b *binder) report(sev Severity, code string, pos kql.Pos, format string, args ...any) {
	b.diags = append(b.diags, Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
	})
}

func (b *binder) errorf(code string, pos kql.Pos, format string, args ...any) {
	b.report(SeverityError, code, pos, format, args...)
}

// bindQuery binds every statement and returns the schema of the query
// result, or nil when the query has no tabular expression statement.
func (b *binder) bindQuery(q *kql.Query) *Schema {
	var result *Schema
	for _, stmt := range q.Statements {
		switch s := stmt.(type) {
		case *kql.SetStmt:
		case *kql.DeclareStmt:
			for _, p := range s.Params {
				b.scalars[p.Name] = b.declaredType(p)
				if p.Default != nil {
					b.bindExpr(p.Default, &scope{})
				}
			}
		case *kql.LetStmt:
			if b.isTabular(s.X) {
				b.tables[s.Name] = b.bindTabular(s.X)
				delete(b.scalars, s.Name)
				continue
			}
			b.scalars[s.Name] = b.bindExpr(s.X, &scope{})
			delete(b.tables, s.Name)
		case *kql.ExprStmt:
			result = b.bindTabular(s.X)
		}
	}
	if result == nil {
		pos := kql.Pos{Line: 1, Column: 1}
		if n := len(q.Statements); n > 0 {
			pos = q.Statements[n-1].Position()
		}
		b.errorf(CodeSyntax, pos, msgNoTabularResult)
	}
	return result
}

func (b *binder) declaredType(d *kql.ColumnDecl) string {
	t := NormalizeType(d.Type)
	if t == TypeUnknown {
		b.errorf(CodeTypeMismatch, d.At, msgUnknownType, d.Type)
	}
	return t
}

// isTabular decides whether a let value is a table or a scalar.
func (b *binder) isTabular(e kql.Expr) bool {
	switch x := e.(type) {
	case *kql.Pipeline, *kql.UnionOp, *kql.PrintExpr, *kql.RangeExpr, *kql.DataTableExpr:
		return true
	case *kql.Paren:
		return b.isTabular(x.X)
	case *kql.Ident:
		if _, ok := b.tables[x.Name]; ok {
			return true
		}
		if _, ok := b.scalars[x.Name]; ok {
			return false
		}
		_, err := b.currentTable(x.Name)
		return err == nil
	case *kql.Call:
		switch kql.CallName(x) {
		case "table", "materialize":
			return true
		}
	case *kql.Member:
		if call, ok := x.X.(*kql.Call); ok {
			_, isDB := databaseRef(call)
			return isDB
		}
	}
	return false
}

func (b *binder) currentTable(name string) (*catalog.TableCatalog, error) {
	db, err := b.state.Database(b.cluster, b.database)
	if err != nil {
		return nil, err
	}
	return db.Table(name)
}

func (b *binder) reference(id kusto.ClusterIdentity, database string, t *catalog.TableCatalog) {
	key := id.String() + "/" + database + "/" + t.Name
	if b.refSeen[key] {
		return
	}
	b.refSeen[key] = true
	b.refs = append(b.refs, ReferencedTable{Cluster: id.String(), Database: database, Table: t})
}

// bindTabular returns the schema of a tabular expression. It never returns
// nil; unresolvable inputs produce an open schema so that one error does
// not cascade through the rest of the pipeline.
func (b *binder) bindTabular(e kql.Expr) *Schema {
	switch x := e.(type) {
	case *kql.Ident:
		return b.bindTableName(x.Name, x.At)
	case *kql.Paren:
		return b.bindTabular(x.X)
	case *kql.Pipeline:
		s := b.bindTabular(x.Source)
		for _, op := range x.Ops {
			s = b.bindOperator(s, op)
		}
		return s
	case *kql.UnionOp:
		return b.bindUnion(nil, x)
	case *kql.PrintExpr:
		return b.bindPrint(x)
	case *kql.RangeExpr:
		t := b.bindExpr(x.From, &scope{})
		b.bindExpr(x.To, &scope{})
		b.bindExpr(x.Step, &scope{})
		return &Schema{Columns: []Column{{Name: x.Name, Type: t}}}
	case *kql.DataTableExpr:
		s := &Schema{}
		for _, c := range x.Columns {
			if s.index(c.Name) >= 0 {
				b.errorf(CodeDuplicateColumn, c.At, msgDuplicateColumn, c.Name)
				continue
			}
			s.Columns = append(s.Columns, Column{Name: c.Name, Type: b.declaredType(c)})
		}
		for _, v := range x.Values {
			b.bindExpr(v, &scope{})
		}
		return s
	case *kql.Call:
		return b.bindTabularCall(x)
	case *kql.Member:
		if call, ok := x.X.(*kql.Call); ok {
			if ref, ok := databaseRef(call); ok {
				return b.bindQualifiedTable(ref, x.Name)
			}
		}
	}
	b.errorf(CodeTypeMismatch, e.Position(), msgNotTabular)
	return openSchema()
}

func (b *binder) bindTableName(name string, pos kql.Pos) *Schema {
	if s, ok := b.tables[name]; ok {
		return s.clone()
	}
	if b.failed[DatabaseRef{Database: b.database}.key()] {
		return openSchema()
	}
	t, err := b.currentTable(name)
	if err != nil {
		b.errorf(CodeUnknownTable, pos, msgUnknownTable, name)
		return openSchema()
	}
	b.reference(b.cluster, b.database, t)
	return tableSchema(t)
}

func (b *binder) bindTabularCall(c *kql.Call) *Schema {
	name := kql.CallName(c)
	switch name {
	case "table":
		if len(c.Args) < 1 || len(c.Args) > 2 {
			b.errorf(CodeArity, c.Position(), "The function 'table' expects 1 or 2 arguments, but received %d.", len(c.Args))
			return openSchema()
		}
		lit, ok := c.Args[0].(*kql.Literal)
		if !ok || lit.Type != TypeString {
			b.errorf(CodeTypeMismatch, c.Args[0].Position(), "The table name must be a constant string.")
			return openSchema()
		}
		return b.bindTableName(lit.Value, lit.At)
	case "materialize":
		if len(c.Args) != 1 {
			b.errorf(CodeArity, c.Position(), "The function 'materialize' expects 1 argument, but received %d.", len(c.Args))
			return openSchema()
		}
		return b.bindTabular(c.Args[0])
	}
	if name == "" {
		b.errorf(CodeTypeMismatch, c.Position(), msgNotTabular)
	} else {
		b.errorf(CodeUnknownFunction, c.Position(), msgUnknownTable, name)
	}
	for _, a := range c.Args {
		b.bindExpr(a, &scope{})
	}
	return openSchema()
}

func (b *binder) bindQualifiedTable(ref DatabaseRef, table string) *Schema {
	if b.failed[ref.key()] {
		return openSchema()
	}
	id := b.cluster
	if ref.Cluster != "" {
		parsed, err := kusto.ParseClusterIdentity(ref.Cluster)
		if err != nil {
			b.errorf(CodeResolution, ref.Pos, "%v", err)
			return openSchema()
		}
		id = parsed
	}
	db, err := b.state.Database(id, ref.Database)
	if err != nil {
		b.errorf(CodeResolution, ref.Pos, "%v", err)
		return openSchema()
	}
	if !db.Loaded {
		b.errorf(CodeResolution, ref.Pos, "The schema of %s is not available.", ref)
		return openSchema()
	}
	t, err := db.Table(table)
	if err != nil {
		var nf *kusto.NotFoundError
		if errors.As(err, &nf) {
			b.errorf(CodeUnknownTable, ref.Pos, "%v", nf)
		} else {
			b.errorf(CodeUnknownTable, ref.Pos, msgUnknownTable, table)
		}
		return openSchema()
	}
	b.reference(id, db.Name, t)
	return tableSchema(t)
}

func (b *binder) bindPrint(p *kql.PrintExpr) *Schema {
	s := &Schema{}
	for i, col := range p.Columns {
		t := b.bindExpr(col, &scope{})
		name, explicit := columnName(col)
		if !explicit {
			name = "print_" + strconv.Itoa(i)
		}
		b.addColumn(s, Column{Name: name, Type: t}, col.Position())
	}
	return s
}

// addColumn appends c to s, reporting a duplicate name.
func (b *binder) addColumn(s *Schema, c Column, pos kql.Pos) {
	if s.index(c.Name) >= 0 {
		b.errorf(CodeDuplicateColumn, pos, msgDuplicateColumn, c.Name)
		return
	}
	s.Columns = append(s.Columns, c)
}

// columnName infers the name of a computed column. explicit is false when
// the expression has no natural name and the caller must generate one.
func columnName(e kql.Expr) (name string, explicit bool) {
	switch x := e.(type) {
	case *kql.NamedExpr:
		return x.Name, true
	case *kql.Ident:
		if x.Wildcard {
			return "", false
		}
		return x.Name, true
	case *kql.Member:
		if id, ok := x.X.(*kql.Ident); ok {
			if id.Name == "$left" || id.Name == "$right" {
				return x.Name, true
			}
			return id.Name + "_" + x.Name, true
		}
	case *kql.Index:
		if lit, ok := x.Index.(*kql.Literal); ok && lit.Type == TypeString {
			if base, ok := columnName(x.X); ok {
				return base + "_" + lit.Value, true
			}
		}
	case *kql.Call:
		switch kql.CallName(x) {
		case "bin", "floor", "bin_at":
			if len(x.Args) > 0 {
				return columnName(x.Args[0])
			}
		}
	case *kql.Paren:
		return columnName(x.X)
	}
	return "", false
}

// nextColumnName returns the first ColumnN name not used by s.
func nextColumnName(s *Schema) string {
	for i := 1; ; i++ {
		name := "Column" + strconv.Itoa(i)
		if s.index(name) < 0 {
			return name
		}
	}
}

func (b *binder) bindOperator(in *Schema, op kql.Operator) *Schema {
	row := &scope{row: in}
	switch o := op.(type) {
	case *kql.WhereOp:
		b.requireBool(o.Predicate, b.bindExpr(o.Predicate, row))
		return in

	case *kql.ProjectOp:
		return b.bindProject(in, o.Columns)

	case *kql.ProjectAwayOp:
		out := &Schema{Open: in.Open}
		drop := make(map[string]bool)
		for _, id := range o.Columns {
			for _, c := range b.matchColumns(in, id) {
				drop[c.Name] = true
			}
		}
		for _, c := range in.Columns {
			if !drop[c.Name] {
				out.Columns = append(out.Columns, c)
			}
		}
		return out

	case *kql.ProjectKeepOp:
		out := &Schema{Open: in.Open}
		keep := make(map[string]bool)
		for _, id := range o.Columns {
			for _, c := range b.matchColumns(in, id) {
				keep[c.Name] = true
			}
		}
		for _, c := range in.Columns {
			if keep[c.Name] {
				out.Columns = append(out.Columns, c)
			}
		}
		return out

	case *kql.ProjectReorderOp:
		out := &Schema{Open: in.Open}
		moved := make(map[string]bool)
		for _, id := range o.Columns {
			for _, c := range b.matchColumns(in, id) {
				if !moved[c.Name] {
					moved[c.Name] = true
					out.Columns = append(out.Columns, c)
				}
			}
		}
		for _, c := range in.Columns {
			if !moved[c.Name] {
				out.Columns = append(out.Columns, c)
			}
		}
		return out

	case *kql.ProjectRenameOp:
		out := in.clone()
		for _, r := range o.Renames {
			old := r.X.(*kql.Ident)
			i := out.index(old.Name)
			if i < 0 {
				if !in.Open {
					b.errorf(CodeUnknownColumn, old.At, msgUnknownColumn, old.Name)
				}
				continue
			}
			if j := out.index(r.Name); j >= 0 && j != i {
				b.errorf(CodeDuplicateColumn, r.At, msgDuplicateColumn, r.Name)
				continue
			}
			out.Columns[i].Name = r.Name
		}
		return out

	case *kql.ExtendOp:
		return b.bindExtend(in, o.Columns)

	case *kql.SerializeOp:
		return b.bindExtend(in, o.Columns)

	case *kql.SummarizeOp:
		return b.bindSummarize(in, o)

	case *kql.CountOp:
		return &Schema{Columns: []Column{{Name: "Count", Type: TypeLong}}}

	case *kql.TakeOp:
		b.requireNumeric(o.Count)
		return in

	case *kql.SampleOp:
		b.requireNumeric(o.Count)
		return in

	case *kql.TopOp:
		b.requireNumeric(o.Count)
		for _, k := range o.By {
			b.bindExpr(k.X, row)
		}
		return in

	case *kql.SortOp:
		for _, k := range o.Keys {
			b.bindExpr(k.X, row)
		}
		return in

	case *kql.DistinctOp:
		if len(o.Columns) == 1 {
			if _, ok := o.Columns[0].(*kql.Star); ok {
				return in
			}
		}
		return b.bindProject(in, o.Columns)

	case *kql.JoinOp:
		return b.bindJoin(in, o)

	case *kql.UnionOp:
		return b.bindUnion(in, o)

	case *kql.AsOp:
		b.tables[o.Name] = in.clone()
		return in

	case *kql.GetSchemaOp:
		return &Schema{Columns: []Column{
			{Name: "ColumnName", Type: TypeString},
			{Name: "ColumnOrdinal", Type: TypeInt},
			{Name: "DataType", Type: TypeString},
			{Name: "ColumnType", Type: TypeString},
		}}

	case *kql.RenderOp:
		return in

	case *kql.MvExpandOp:
		out := in.clone()
		for i, col := range o.Columns {
			b.bindExpr(col, row)
			name, ok := columnName(col)
			if !ok {
				name = nextColumnName(out)
			}
			t := TypeDynamic
			if i < len(o.ToTypes) && o.ToTypes[i] != "" {
				if t = NormalizeType(o.ToTypes[i]); t == TypeUnknown {
					b.errorf(CodeTypeMismatch, col.Position(), msgUnknownType, o.ToTypes[i])
				}
			}
			out.set(Column{Name: name, Type: t})
		}
		return out

	case *kql.OpaqueOp:
		b.report(SeverityWarning, CodeOpaqueOperator, o.At, msgOpaqueOperator, o.Name)
		out := in.clone()
		out.Open = true
		return out
	}
	return in
}

// matchColumns resolves a column name or wildcard pattern against in,
// reporting names that match nothing.
func (b *binder) matchColumns(in *Schema, id *kql.Ident) []Column {
	cols := in.matching(id.Name)
	if len(cols) == 0 && !in.Open && !id.Wildcard {
		b.errorf(CodeUnknownColumn, id.At, msgUnknownColumn, id.Name)
	}
	return cols
}

func (b *binder) bindProject(in *Schema, cols []kql.Expr) *Schema {
	out := &Schema{Open: in.Open}
	row := &scope{row: in}
	for _, col := range cols {
		if id, ok := col.(*kql.Ident); ok && id.Wildcard {
			for _, c := range in.matching(id.Name) {
				b.addColumn(out, c, id.At)
			}
			continue
		}
		t := b.bindExpr(col, row)
		name, ok := columnName(col)
		if !ok {
			name = nextColumnName(out)
		}
		b.addColumn(out, Column{Name: name, Type: t}, col.Position())
	}
	return out
}

func (b *binder) bindExtend(in *Schema, cols []kql.Expr) *Schema {
	out := in.clone()
	row := &scope{row: in}
	assigned := make(map[string]bool)
	for _, col := range cols {
		t := b.bindExpr(col, row)
		name, ok := columnName(col)
		if !ok {
			name = nextColumnName(out)
		}
		if assigned[name] {
			b.errorf(CodeDuplicateColumn, col.Position(), msgDuplicateColumn, name)
			continue
		}
		assigned[name] = true
		out.set(Column{Name: name, Type: t})
	}
	return out
}

func (b *binder) bindSummarize(in *Schema, o *kql.SummarizeOp) *Schema {
	out := &Schema{Open: in.Open}
	row := &scope{row: in}
	for _, by := range o.By {
		t := b.bindExpr(by, row)
		name, ok := columnName(by)
		if !ok {
			name = nextColumnName(out)
		}
		b.addColumn(out, Column{Name: name, Type: t}, by.Position())
	}

	agg := &scope{row: in, aggregates: true}
	for _, e := range o.Aggregates {
		target := e
		named, isNamed := e.(*kql.NamedExpr)
		if isNamed {
			target = named.X
		}
		if !containsAggregate(target) {
			b.errorf(CodeAggregate, e.Position(), msgNoAggregate)
		}

		if call, ok := target.(*kql.Call); ok && isArgExtreme(call) {
			b.bindArgExtreme(in, out, call, named, agg)
			continue
		}

		t := b.bindExpr(target, agg)
		if isNamed {
			b.addColumn(out, Column{Name: named.Name, Type: t}, e.Position())
			continue
		}
		out.Columns = append(out.Columns, Column{Name: uniqueName(out, aggregateName(target, out)), Type: t})
	}
	return out
}

// aggregateName names an unnamed summarize aggregate: prefix_Column for an
// aggregate over a plain column, prefix_ otherwise.
func aggregateName(e kql.Expr, out *Schema) string {
	call, ok := e.(*kql.Call)
	if !ok {
		return nextColumnName(out)
	}
	f, ok := lookupFunction(kql.CallName(call))
	if !ok || !f.aggregate {
		return nextColumnName(out)
	}
	if len(call.Args) > 0 {
		if id, ok := call.Args[0].(*kql.Ident); ok && !id.Wildcard {
			return f.prefix + "_" + id.Name
		}
	}
	return f.prefix + "_"
}

func isArgExtreme(c *kql.Call) bool {
	switch kql.CallName(c) {
	case "arg_max", "arg_min":
		return true
	}
	return false
}

// bindArgExtreme adds the columns of arg_max(X, cols...) and arg_min: X
// followed by the listed columns, where * means every input column not
// already in the output.
func (b *binder) bindArgExtreme(in, out *Schema, call *kql.Call, named *kql.NamedExpr, agg *scope) {
	name := kql.CallName(call)
	if len(call.Args) < 2 {
		b.errorf(CodeArity, call.Position(), "The function '%s' expects at least 2 arguments, but received %d.", name, len(call.Args))
		return
	}
	extreme := call.Args[0]
	t := b.bindExpr(extreme, &scope{row: in})
	colName, ok := columnName(extreme)
	if !ok {
		colName = name[4:] + "_"
	}
	if named != nil {
		colName = named.Name
	}
	b.addColumn(out, Column{Name: colName, Type: t}, extreme.Position())

	for _, a := range call.Args[1:] {
		if _, ok := a.(*kql.Star); ok {
			for _, c := range in.Columns {
				if out.index(c.Name) < 0 {
					out.Columns = append(out.Columns, c)
				}
			}
			continue
		}
		at := b.bindExpr(a, agg)
		n, ok := columnName(a)
		if !ok {
			n = nextColumnName(out)
		}
		b.addColumn(out, Column{Name: n, Type: at}, a.Position())
	}
}

func containsAggregate(e kql.Expr) bool {
	found := false
	kql.Inspect(e, func(n kql.Node) bool {
		if c, ok := n.(*kql.Call); ok {
			if f, ok := lookupFunction(kql.CallName(c)); ok && f.aggregate {
				found = true
			}
		}
		return !found
	})
	return found
}

func (b *binder) bindJoin(left *Schema, o *kql.JoinOp) *Schema {
	right := b.bindTabular(o.Right)
	kind := o.Kind
	if kind == "" {
		kind = "innerunique"
		if o.Keyword == "lookup" {
			kind = "leftouter"
		}
	}

	keys := make(map[string]bool)
	sides := &scope{left: left, right: right}
	for _, cond := range o.On {
		if id, ok := cond.(*kql.Ident); ok {
			_, inLeft := left.lookup(id.Name)
			_, inRight := right.lookup(id.Name)
			if (!inLeft && !left.Open) || (!inRight && !right.Open) {
				b.errorf(CodeUnknownColumn, id.At, msgJoinKeyMissing, id.Name)
			}
			keys[id.Name] = true
			continue
		}
		b.requireBool(cond, b.bindExpr(cond, sides))
		if l, r, ok := sideKeys(cond); ok && l == r {
			keys[l] = true
		}
	}

	switch kind {
	case "leftsemi", "leftanti", "leftantisemi", "anti":
		return left
	case "rightsemi", "rightanti", "rightantisemi":
		return right
	}

	out := left.clone()
	out.Open = left.Open || right.Open
	for _, c := range right.Columns {
		if o.Keyword == "lookup" && keys[c.Name] {
			continue
		}
		out.Columns = append(out.Columns, Column{Name: uniqueName(out, c.Name), Type: c.Type})
	}
	return out
}

// sideKeys returns the column names of a $left.a == $right.b condition.
func sideKeys(e kql.Expr) (left, right string, ok bool) {
	bin, isBin := e.(*kql.Binary)
	if !isBin || bin.Op != "==" {
		return "", "", false
	}
	side := func(x kql.Expr) (string, string) {
		m, ok := x.(*kql.Member)
		if !ok {
			return "", ""
		}
		id, ok := m.X.(*kql.Ident)
		if !ok {
			return "", ""
		}
		return id.Name, m.Name
	}
	ls, lc := side(bin.X)
	rs, rc := side(bin.Y)
	switch {
	case ls == "$left" && rs == "$right":
		return lc, rc, true
	case ls == "$right" && rs == "$left":
		return rc, lc, true
	}
	return "", "", false
}

func (b *binder) bindUnion(in *Schema, u *kql.UnionOp) *Schema {
	var inputs []*Schema
	if in != nil {
		inputs = append(inputs, in)
	}
	for _, t := range u.Tables {
		if id, ok := t.(*kql.Ident); ok && id.Wildcard {
			inputs = append(inputs, b.expandWildcard(id)...)
			continue
		}
		inputs = append(inputs, b.bindTabular(t))
	}

	out := &Schema{}
	for _, s := range inputs {
		out.Open = out.Open || s.Open
	}
	if u.WithSource != "" {
		out.Columns = append(out.Columns, Column{Name: u.WithSource, Type: TypeString})
	}

	if u.Kind == "inner" {
		for _, c := range inputs[0].Columns {
			common := true
			for _, s := range inputs[1:] {
				if other, ok := s.lookup(c.Name); !ok || other.Type != c.Type {
					common = false
					break
				}
			}
			if common {
				out.Columns = append(out.Columns, c)
			}
		}
		return out
	}

	// Outer union: columns in order of first appearance. A name seen with
	// several types becomes one column per type, suffixed with the type.
	types := make(map[string][]string)
	var order []string
	for _, s := range inputs {
		for _, c := range s.Columns {
			seen, ok := types[c.Name]
			if !ok {
				order = append(order, c.Name)
			}
			dup := false
			for _, t := range seen {
				dup = dup || t == c.Type
			}
			if !dup {
				types[c.Name] = append(seen, c.Type)
			}
		}
	}
	for _, name := range order {
		ts := types[name]
		if len(ts) == 1 {
			out.Columns = append(out.Columns, Column{Name: name, Type: ts[0]})
			continue
		}
		for _, t := range ts {
			out.Columns = append(out.Columns, Column{Name: name + "_" + t, Type: t})
		}
	}
	return out
}

// expandWildcard returns the schemas of the current database tables that
// match a union pattern such as Storm*.
func (b *binder) expandWildcard(id *kql.Ident) []*Schema {
	db, err := b.state.Database(b.cluster, b.database)
	if err != nil {
		b.errorf(CodeResolution, id.At, "%v", err)
		return []*Schema{openSchema()}
	}
	var out []*Schema
	for _, t := range db.Tables {
		if matchWildcard(id.Name, t.Name) {
			b.reference(b.cluster, db.Name, t)
			out = append(out, tableSchema(t))
		}
	}
	if len(out) == 0 {
		b.errorf(CodeUnknownTable, id.At, msgUnionNoMatch, id.Name, db.Name)
		return []*Schema{openSchema()}
	}
	return out
}

func (b *binder) requireBool(e kql.Expr, t string) {
	if !isLoose(t) && t != TypeBool {
		b.errorf(CodePredicateType, e.Position(), msgPredicateNotBool)
	}
}

func (b *binder) requireNumeric(e kql.Expr) {
	if e == nil {
		return
	}
	if t := b.bindExpr(e, &scope{}); !isLoose(t) && !isNumeric(t) {
		b.errorf(CodeTypeMismatch, e.Position(), msgNumericRequired)
	}
}
