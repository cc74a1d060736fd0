package kql

// Inspect traverses the tree rooted at node in depth-first order. It calls
// f(node) for each node; if f returns false the children of that node are
// skipped. Nil nodes are ignored.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	for _, c := range children(node) {
		Inspect(c, f)
	}
}

// InspectQuery calls Inspect on every statement of q.
func InspectQuery(q *Query, f func(Node) bool) {
	for _, s := range q.Statements {
		Inspect(s, f)
	}
}

func exprs(list ...Expr) []Node {
	out := make([]Node, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func idents(list []*Ident) []Node {
	out := make([]Node, len(list))
	for i, id := range list {
		out[i] = id
	}
	return out
}

func named(list []*NamedExpr) []Node {
	out := make([]Node, len(list))
	for i, n := range list {
		out[i] = n
	}
	return out
}

func sortKeys(keys []*SortKey) []Node {
	out := make([]Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.X)
	}
	return out
}

func children(node Node) []Node {
	switch n := node.(type) {
	// statements
	case *LetStmt:
		return exprs(n.X)
	case *SetStmt:
		return exprs(n.Value)
	case *DeclareStmt:
		out := make([]Node, len(n.Params))
		for i, d := range n.Params {
			out[i] = d
		}
		return out
	case *ExprStmt:
		return exprs(n.X)
	case *ColumnDecl:
		return exprs(n.Default)

	// expressions
	case *Binary:
		return exprs(n.X, n.Y)
	case *Unary:
		return exprs(n.X)
	case *Call:
		return append(exprs(n.Fun), exprs(n.Args...)...)
	case *Member:
		return exprs(n.X)
	case *Index:
		return exprs(n.X, n.Index)
	case *Paren:
		return exprs(n.X)
	case *In:
		return append(exprs(n.X), exprs(n.List...)...)
	case *Between:
		return exprs(n.X, n.Lo, n.Hi)
	case *ListExpr:
		return exprs(n.Items...)
	case *NamedExpr:
		return exprs(n.X)
	case *Pipeline:
		out := exprs(n.Source)
		for _, op := range n.Ops {
			out = append(out, op)
		}
		return out
	case *PrintExpr:
		return exprs(n.Columns...)
	case *RangeExpr:
		return exprs(n.From, n.To, n.Step)
	case *DataTableExpr:
		out := make([]Node, 0, len(n.Columns)+len(n.Values))
		for _, c := range n.Columns {
			out = append(out, c)
		}
		return append(out, exprs(n.Values...)...)

	// operators
	case *WhereOp:
		return exprs(n.Predicate)
	case *ProjectOp:
		return exprs(n.Columns...)
	case *ProjectAwayOp:
		return idents(n.Columns)
	case *ProjectKeepOp:
		return idents(n.Columns)
	case *ProjectReorderOp:
		return idents(n.Columns)
	case *ProjectRenameOp:
		return named(n.Renames)
	case *ExtendOp:
		return exprs(n.Columns...)
	case *SummarizeOp:
		return append(exprs(n.Aggregates...), exprs(n.By...)...)
	case *TakeOp:
		return exprs(n.Count)
	case *TopOp:
		return append(exprs(n.Count), sortKeys(n.By)...)
	case *SortOp:
		return sortKeys(n.Keys)
	case *DistinctOp:
		return exprs(n.Columns...)
	case *JoinOp:
		return append(append(named(n.Hints), exprs(n.Right)...), exprs(n.On...)...)
	case *UnionOp:
		return exprs(n.Tables...)
	case *SampleOp:
		return exprs(n.Count)
	case *SerializeOp:
		return exprs(n.Columns...)
	case *MvExpandOp:
		return exprs(n.Columns...)
	}
	return nil
}
