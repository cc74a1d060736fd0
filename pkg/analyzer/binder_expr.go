package analyzer

import (
	"github.com/txn2/mcp-kusto/pkg/kql"
)

// scope is what a scalar expression can see: the columns of the current row,
// the two sides of a join condition, and whether aggregates are allowed.
type scope struct {
	row        *Schema
	left       *Schema
	right      *Schema
	aggregates bool
}

// bindExpr returns the type of a scalar expression.
func (b *binder) bindExpr(e kql.Expr, sc *scope) string {
	switch x := e.(type) {
	case *kql.Literal:
		return NormalizeType(x.Type)

	case *kql.Ident:
		return b.bindName(x, sc)

	case *kql.Paren:
		if b.isTabular(x.X) {
			b.bindTabular(x.X)
			return TypeUnknown
		}
		return b.bindExpr(x.X, sc)

	case *kql.NamedExpr:
		return b.bindExpr(x.X, sc)

	case *kql.Unary:
		t := b.bindExpr(x.X, sc)
		if !isLoose(t) && !isNumeric(t) && t != TypeTimespan {
			b.errorf(CodeTypeMismatch, x.At, "The operator '%s' cannot be applied to an operand of type '%s'.", x.Op, t)
			return TypeUnknown
		}
		return t

	case *kql.Binary:
		return b.bindBinary(x, sc)

	case *kql.In:
		b.bindExpr(x.X, sc)
		for _, item := range x.List {
			if b.isTabular(item) {
				b.bindTabular(item)
				continue
			}
			b.bindExpr(item, sc)
		}
		return TypeBool

	case *kql.Between:
		b.bindExpr(x.X, sc)
		b.bindExpr(x.Lo, sc)
		b.bindExpr(x.Hi, sc)
		return TypeBool

	case *kql.ListExpr:
		for _, item := range x.Items {
			b.bindExpr(item, sc)
		}
		return TypeDynamic

	case *kql.Call:
		return b.bindCall(x, sc)

	case *kql.Member:
		return b.bindMember(x, sc)

	case *kql.Index:
		t := b.bindExpr(x.X, sc)
		b.bindExpr(x.Index, sc)
		if t == TypeDynamic {
			return TypeDynamic
		}
		return TypeUnknown

	case *kql.Star:
		return TypeUnknown

	case *kql.Pipeline, *kql.UnionOp, *kql.PrintExpr, *kql.RangeExpr, *kql.DataTableExpr:
		b.bindTabular(e)
		return TypeUnknown
	}
	return TypeUnknown
}

// bindName resolves an identifier in scalar position: a column of the row,
// then a scalar let or query parameter.
func (b *binder) bindName(id *kql.Ident, sc *scope) string {
	if sc.row != nil {
		if c, ok := sc.row.lookup(id.Name); ok {
			return c.Type
		}
	}
	if t, ok := b.scalars[id.Name]; ok {
		return t
	}
	if _, ok := b.tables[id.Name]; ok {
		return TypeUnknown
	}
	if sc.row != nil && sc.row.Open {
		return TypeUnknown
	}
	if sc.left != nil && sc.right != nil {
		_, inLeft := sc.left.lookup(id.Name)
		_, inRight := sc.right.lookup(id.Name)
		if inLeft || inRight || sc.left.Open || sc.right.Open {
			return TypeUnknown
		}
	}
	b.errorf(CodeUnknownColumn, id.At, msgUnknownColumn, id.Name)
	return TypeUnknown
}

func (b *binder) bindMember(m *kql.Member, sc *scope) string {
	if id, ok := m.X.(*kql.Ident); ok && (id.Name == "$left" || id.Name == "$right") {
		side := sc.left
		if id.Name == "$right" {
			side = sc.right
		}
		if side == nil {
			b.errorf(CodeUnknownColumn, id.At, msgUnknownColumn, id.Name)
			return TypeUnknown
		}
		if c, ok := side.lookup(m.Name); ok {
			return c.Type
		}
		if !side.Open {
			b.errorf(CodeUnknownColumn, m.Position(), msgUnknownColumn, m.Name)
		}
		return TypeUnknown
	}

	t := b.bindExpr(m.X, sc)
	switch {
	case t == TypeDynamic:
		return TypeDynamic
	case t == TypeUnknown:
		return TypeUnknown
	}
	b.errorf(CodeTypeMismatch, m.Position(), "The expression of type '%s' has no member '%s'.", t, m.Name)
	return TypeUnknown
}

func (b *binder) bindBinary(x *kql.Binary, sc *scope) string {
	lt := b.bindExpr(x.X, sc)
	rt := b.bindExpr(x.Y, sc)

	switch op := x.Op; {
	case op == "and" || op == "or":
		b.requireBool(x.X, lt)
		b.requireBool(x.Y, rt)
		return TypeBool

	case op == "==" || op == "!=" || op == "<>" || op == "<" || op == "<=" || op == ">" || op == ">=":
		if !canCompare(lt, rt) {
			b.errorf(CodeTypeMismatch, x.Position(), "Cannot compare values of types %s and %s. Try adding explicit casts.", lt, rt)
		}
		return TypeBool

	case op == "=~" || op == "!~":
		b.requireString(x, op, lt, rt)
		return TypeBool

	case kql.IsStringOperator(op):
		if op == "contains" || op == "!contains" {
			if lit, ok := x.Y.(*kql.Literal); ok && lit.Type == TypeString && isTerm(lit.Value) {
				b.report(SeveritySuggestion, CodePreferHas, x.Position(), msgPreferHas)
			}
		}
		return TypeBool

	case op == "+" || op == "-" || op == "*" || op == "/" || op == "%":
		t, ok := arithmetic(op, lt, rt)
		if !ok {
			b.errorf(CodeTypeMismatch, x.Position(), "The operator '%s' cannot be applied to operands of type '%s' and '%s'.", op, lt, rt)
			return TypeUnknown
		}
		return t
	}
	return TypeUnknown
}

func (b *binder) requireString(x *kql.Binary, op, lt, rt string) {
	for _, t := range []string{lt, rt} {
		if !isLoose(t) && t != TypeString {
			b.errorf(CodeTypeMismatch, x.Position(), "The operator '%s' cannot be applied to operands of type '%s' and '%s'.", op, lt, rt)
			return
		}
	}
}

// isTerm reports whether s is a single alphanumeric term of at least three
// characters, the shape the term index can answer with has.
func isTerm(s string) bool {
	if len(s) < 3 {
		return false
	}
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}

func (b *binder) bindCall(c *kql.Call, sc *scope) string {
	name := kql.CallName(c)
	if name == "" {
		b.bindExpr(c.Fun, sc)
		for _, a := range c.Args {
			b.bindExpr(a, sc)
		}
		return TypeUnknown
	}

	switch name {
	case "toscalar":
		if len(c.Args) == 1 && b.isTabular(c.Args[0]) {
			s := b.bindTabular(c.Args[0])
			if len(s.Columns) > 0 && !s.Open {
				return s.Columns[0].Type
			}
			return TypeUnknown
		}
	case "table", "materialize":
		b.bindTabularCall(c)
		return TypeUnknown
	}

	f, ok := lookupFunction(name)
	if !ok {
		b.errorf(CodeUnknownFunction, c.Position(), msgUnknownFunction, name)
		for _, a := range c.Args {
			b.bindExpr(a, sc)
		}
		return TypeUnknown
	}

	inner := sc
	if f.aggregate {
		if !sc.aggregates {
			b.errorf(CodeAggregate, c.Position(), "Aggregate function '%s' can only be used in summarize.", name)
		}
		// Aggregates do not nest.
		inner = &scope{row: sc.row, left: sc.left, right: sc.right}
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = b.bindExpr(a, inner)
	}
	if !f.accepts(len(c.Args)) {
		b.errorf(CodeArity, c.Position(), "The function '%s' expects %s, but received %d.", name, f.arity(), len(c.Args))
		return TypeUnknown
	}
	return f.result(args)
}
