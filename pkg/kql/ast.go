package kql

// Node is implemented by every AST node.
type Node interface {
	Position() Pos
}

// Expr is a scalar or tabular expression.
type Expr interface {
	Node
	exprNode()
}

// Operator is a tabular operator following a pipe.
type Operator interface {
	Node
	operatorNode()
}

// Statement is a top-level query statement.
type Statement interface {
	Node
	stmtNode()
}

// Query is a parsed query: statements separated by semicolons.
type Query struct {
	Statements []Statement
}

// Body returns the final expression statement, the one that produces the
// query result, or nil when the query only declares things.
func (q *Query) Body() Expr {
	for i := len(q.Statements) - 1; i >= 0; i-- {
		if s, ok := q.Statements[i].(*ExprStmt); ok {
			return s.X
		}
	}
	return nil
}

// ---------- Statements ----------

// LetStmt binds a name to a scalar or tabular expression.
type LetStmt struct {
	At   Pos
	Name string
	X    Expr
}

// SetStmt sets a request option: set notruncation; set x = 1.
type SetStmt struct {
	At    Pos
	Name  string
	Value Expr
}

// DeclareStmt declares query parameters.
type DeclareStmt struct {
	At     Pos
	Params []*ColumnDecl
}

// ExprStmt is a tabular expression statement.
type ExprStmt struct {
	X Expr
}

// ColumnDecl is a name:type pair as used by datatable and declare.
type ColumnDecl struct {
	At      Pos
	Name    string
	Type    string
	Default Expr
}

func (s *LetStmt) Position() Pos     { return s.At }
func (s *SetStmt) Position() Pos     { return s.At }
func (s *DeclareStmt) Position() Pos { return s.At }
func (s *ExprStmt) Position() Pos    { return s.X.Position() }
func (c *ColumnDecl) Position() Pos  { return c.At }

func (*LetStmt) stmtNode()     {}
func (*SetStmt) stmtNode()     {}
func (*DeclareStmt) stmtNode() {}
func (*ExprStmt) stmtNode()    {}

// ---------- Expressions ----------

// Ident is a name. Wildcard is set for patterns such as Storm* or Col*.
type Ident struct {
	At       Pos
	Name     string
	Wildcard bool
}

// Literal is a constant. Type is the Kusto scalar type of the value.
type Literal struct {
	At    Pos
	Type  string
	Value string
}

// Binary is a binary operation. Op is the operator as written, lower-cased
// for word operators (and, has, !contains, matches regex).
type Binary struct {
	X  Expr
	Op string
	Y  Expr
}

// Unary is a prefix operation.
type Unary struct {
	At Pos
	Op string
	X  Expr
}

// Call is a function call.
type Call struct {
	Fun  Expr
	Args []Expr
}

// Member is a dotted access: X.Name.
type Member struct {
	X    Expr
	Name string
}

// Index is a bracketed access: X[Index].
type Index struct {
	X     Expr
	Index Expr
}

// Paren is a parenthesized expression.
type Paren struct {
	At Pos
	X  Expr
}

// In is X in (List) and its negated and case-insensitive forms.
type In struct {
	X               Expr
	List            []Expr
	Not             bool
	CaseInsensitive bool
}

// Between is X between (Lo .. Hi).
type Between struct {
	X   Expr
	Lo  Expr
	Hi  Expr
	Not bool
}

// ListExpr is a parenthesized list, the right operand of has_any and has_all.
type ListExpr struct {
	At    Pos
	Items []Expr
}

// Star is a bare *.
type Star struct {
	At Pos
}

// NamedExpr is Name = X, used for column assignments and named arguments.
type NamedExpr struct {
	At   Pos
	Name string
	X    Expr
}

// Pipeline is Source | Ops[0] | Ops[1] ...
type Pipeline struct {
	Source Expr
	Ops    []Operator
}

// PrintExpr is the print source.
type PrintExpr struct {
	At      Pos
	Columns []Expr
}

// RangeExpr is the range source: range Name from From to To step Step.
type RangeExpr struct {
	At   Pos
	Name string
	From Expr
	To   Expr
	Step Expr
}

// DataTableExpr is an inline table.
type DataTableExpr struct {
	At      Pos
	Columns []*ColumnDecl
	Values  []Expr
}

func (e *Ident) Position() Pos         { return e.At }
func (e *Literal) Position() Pos       { return e.At }
func (e *Binary) Position() Pos        { return e.X.Position() }
func (e *Unary) Position() Pos         { return e.At }
func (e *Call) Position() Pos          { return e.Fun.Position() }
func (e *Member) Position() Pos        { return e.X.Position() }
func (e *Index) Position() Pos         { return e.X.Position() }
func (e *Paren) Position() Pos         { return e.At }
func (e *In) Position() Pos            { return e.X.Position() }
func (e *Between) Position() Pos       { return e.X.Position() }
func (e *ListExpr) Position() Pos      { return e.At }
func (e *Star) Position() Pos          { return e.At }
func (e *NamedExpr) Position() Pos     { return e.At }
func (e *Pipeline) Position() Pos      { return e.Source.Position() }
func (e *PrintExpr) Position() Pos     { return e.At }
func (e *RangeExpr) Position() Pos     { return e.At }
func (e *DataTableExpr) Position() Pos { return e.At }

func (*Ident) exprNode()         {}
func (*Literal) exprNode()       {}
func (*Binary) exprNode()        {}
func (*Unary) exprNode()         {}
func (*Call) exprNode()          {}
func (*Member) exprNode()        {}
func (*Index) exprNode()         {}
func (*Paren) exprNode()         {}
func (*In) exprNode()            {}
func (*Between) exprNode()       {}
func (*ListExpr) exprNode()      {}
func (*Star) exprNode()          {}
func (*NamedExpr) exprNode()     {}
func (*Pipeline) exprNode()      {}
func (*PrintExpr) exprNode()     {}
func (*RangeExpr) exprNode()     {}
func (*DataTableExpr) exprNode() {}
func (*UnionOp) exprNode()       {}

// CallName returns the function name of a call whose callee is a plain
// identifier, or "".
func CallName(c *Call) string {
	if id, ok := c.Fun.(*Ident); ok {
		return id.Name
	}
	return ""
}

// ---------- Operators ----------

// WhereOp filters rows (where, filter).
type WhereOp struct {
	At        Pos
	Predicate Expr
}

// ProjectOp selects and computes columns.
type ProjectOp struct {
	At      Pos
	Columns []Expr
}

// ProjectAwayOp removes columns. Columns may be wildcards.
type ProjectAwayOp struct {
	At      Pos
	Columns []*Ident
}

// ProjectKeepOp keeps only the named columns. Columns may be wildcards.
type ProjectKeepOp struct {
	At      Pos
	Columns []*Ident
}

// ProjectRenameOp renames columns: new = old.
type ProjectRenameOp struct {
	At      Pos
	Renames []*NamedExpr
}

// ProjectReorderOp moves the named columns to the front.
type ProjectReorderOp struct {
	At      Pos
	Columns []*Ident
}

// ExtendOp appends computed columns.
type ExtendOp struct {
	At      Pos
	Columns []Expr
}

// SummarizeOp aggregates rows, optionally grouped.
type SummarizeOp struct {
	At         Pos
	Aggregates []Expr
	By         []Expr
}

// CountOp counts rows.
type CountOp struct {
	At Pos
}

// TakeOp returns up to Count rows (take, limit).
type TakeOp struct {
	At    Pos
	Count Expr
}

// SortKey is one sort criterion. Kusto sorts descending unless asc is given.
type SortKey struct {
	X    Expr
	Desc bool
}

// TopOp returns the first Count rows by the sort keys.
type TopOp struct {
	At    Pos
	Count Expr
	By    []*SortKey
}

// SortOp sorts rows (sort by, order by).
type SortOp struct {
	At   Pos
	Keys []*SortKey
}

// DistinctOp returns distinct combinations of the columns; a Star column
// means every column.
type DistinctOp struct {
	At      Pos
	Columns []Expr
}

// JoinOp merges with Right on the given conditions. Keyword is join or
// lookup; Kind is the join flavor (innerunique when omitted).
type JoinOp struct {
	At      Pos
	Keyword string
	Kind    string
	Hints   []*NamedExpr
	Right   Expr
	On      []Expr
}

// UnionOp concatenates tables. It is both a source and an operator.
type UnionOp struct {
	At         Pos
	Kind       string
	WithSource string
	Tables     []Expr
}

// AsOp names the piped result.
type AsOp struct {
	At   Pos
	Name string
}

// GetSchemaOp returns the input schema as rows.
type GetSchemaOp struct {
	At Pos
}

// RenderOp is a presentation hint.
type RenderOp struct {
	At            Pos
	Visualization string
}

// SampleOp returns Count random rows.
type SampleOp struct {
	At    Pos
	Count Expr
}

// SerializeOp marks the row order as serialized, optionally adding columns.
type SerializeOp struct {
	At      Pos
	Columns []Expr
}

// MvExpandOp expands dynamic arrays into rows.
type MvExpandOp struct {
	At      Pos
	Columns []Expr
	ToTypes []string
}

// OpaqueOp is an operator the front end recognizes but does not model.
// Its output schema is unknown.
type OpaqueOp struct {
	At   Pos
	Name string
}

func (o *WhereOp) Position() Pos          { return o.At }
func (o *ProjectOp) Position() Pos        { return o.At }
func (o *ProjectAwayOp) Position() Pos    { return o.At }
func (o *ProjectKeepOp) Position() Pos    { return o.At }
func (o *ProjectRenameOp) Position() Pos  { return o.At }
func (o *ProjectReorderOp) Position() Pos { return o.At }
func (o *ExtendOp) Position() Pos         { return o.At }
func (o *SummarizeOp) Position() Pos      { return o.At }
func (o *CountOp) Position() Pos          { return o.At }
func (o *TakeOp) Position() Pos           { return o.At }
func (o *TopOp) Position() Pos            { return o.At }
func (o *SortOp) Position() Pos           { return o.At }
func (o *DistinctOp) Position() Pos       { return o.At }
func (o *JoinOp) Position() Pos           { return o.At }
func (o *UnionOp) Position() Pos          { return o.At }
func (o *AsOp) Position() Pos             { return o.At }
func (o *GetSchemaOp) Position() Pos      { return o.At }
func (o *RenderOp) Position() Pos         { return o.At }
func (o *SampleOp) Position() Pos         { return o.At }
func (o *SerializeOp) Position() Pos      { return o.At }
func (o *MvExpandOp) Position() Pos       { return o.At }
func (o *OpaqueOp) Position() Pos         { return o.At }

func (*WhereOp) operatorNode()          {}
func (*ProjectOp) operatorNode()        {}
func (*ProjectAwayOp) operatorNode()    {}
func (*ProjectKeepOp) operatorNode()    {}
func (*ProjectRenameOp) operatorNode()  {}
func (*ProjectReorderOp) operatorNode() {}
func (*ExtendOp) operatorNode()         {}
func (*SummarizeOp) operatorNode()      {}
func (*CountOp) operatorNode()          {}
func (*TakeOp) operatorNode()           {}
func (*TopOp) operatorNode()            {}
func (*SortOp) operatorNode()           {}
func (*DistinctOp) operatorNode()       {}
func (*JoinOp) operatorNode()           {}
func (*UnionOp) operatorNode()          {}
func (*AsOp) operatorNode()             {}
func (*GetSchemaOp) operatorNode()      {}
func (*RenderOp) operatorNode()         {}
func (*SampleOp) operatorNode()         {}
func (*SerializeOp) operatorNode()      {}
func (*MvExpandOp) operatorNode()       {}
func (*OpaqueOp) operatorNode()         {}
