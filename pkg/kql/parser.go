package kql

import (
	"fmt"
	"slices"
	"strings"
)

// Grammar overview:
//
//	query      → statement (';' statement)* [';']
//	statement  → let name '=' pipeline
//	           | set name ['=' expr]
//	           | declare query_parameters '(' decl (',' decl)* ')'
//	           | pipeline
//	pipeline   → source ('|' operator)*
//	source     → union ... | print ... | range ... | datatable ... | expr
//
// Scalar expressions are in parser_expr.go.

// Parser is a recursive descent parser over a token slice.
type Parser struct {
	tokens []Token
	i      int
	err    *ParseError
}

// bailout unwinds the parser on the first error.
type bailout struct{}

// Parse parses query text.
func Parse(text string) (q *Query, err error) {
	p := &Parser{tokens: Tokenize(text)}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			q, err = nil, p.err
		}
	}()
	return p.parseQuery(), nil
}

// ---------- Token Helpers ----------

func (p *Parser) cur() Token {
	return p.tokens[p.i]
}

// peek returns the token n positions ahead of the current one.
func (p *Parser) peek(n int) Token {
	if p.i+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.i+n]
}

func (p *Parser) next() Token {
	t := p.cur()
	if t.Kind == Illegal {
		p.failAt(t.Pos, t.Text)
	}
	if p.i < len(p.tokens)-1 {
		p.i++
	}
	if c := p.cur(); c.Kind == Illegal {
		p.failAt(c.Pos, c.Text)
	}
	return t
}

func (p *Parser) check(k Kind) bool {
	return p.cur().Kind == k
}

// checkWord reports whether the current token is the identifier word.
func (p *Parser) checkWord(word string) bool {
	t := p.cur()
	return t.Kind == Identifier && t.Text == word
}

func (p *Parser) match(k Kind) bool {
	if p.check(k) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) matchWord(word string) bool {
	if p.checkWord(word) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(k Kind) Token {
	if !p.check(k) {
		p.fail(fmt.Sprintf(errUnexpectedToken, p.cur(), k))
	}
	return p.next()
}

func (p *Parser) expectWord(word string) Token {
	if !p.checkWord(word) {
		p.fail(fmt.Sprintf(errUnexpectedToken, p.cur(), "'"+word+"'"))
	}
	return p.next()
}

func (p *Parser) fail(msg string) {
	p.failAt(p.cur().Pos, msg)
}

func (p *Parser) failAt(pos Pos, msg string) {
	p.err = &ParseError{Pos: pos, Message: msg}
	panic(bailout{})
}

// atBoundary reports whether the current token ends an operator.
func (p *Parser) atBoundary() bool {
	switch p.cur().Kind {
	case EOF, Pipe, Semicolon, RParen:
		return true
	}
	return false
}

// ---------- Statements ----------

func (p *Parser) parseQuery() *Query {
	if t := p.cur(); t.Kind == Illegal {
		p.failAt(t.Pos, t.Text)
	}
	q := &Query{}
	for !p.check(EOF) {
		if p.match(Semicolon) {
			continue
		}
		q.Statements = append(q.Statements, p.parseStatement())
		if !p.check(EOF) {
			p.expect(Semicolon)
		}
	}
	if len(q.Statements) == 0 {
		p.fail(errEmptyQuery)
	}
	return q
}

func (p *Parser) parseStatement() Statement {
	switch {
	case p.checkWord("let"):
		return p.parseLet()
	case p.checkWord("set"):
		return p.parseSet()
	case p.checkWord("declare"):
		return p.parseDeclare()
	}
	return &ExprStmt{X: p.parsePipeline()}
}

func (p *Parser) parseLet() *LetStmt {
	at := p.next().Pos
	name := p.parseName()
	p.expect(Assign)

	// let f = (x:long) { ... } and let v = view () { ... }
	if p.check(LParen) && (p.peek(1).Kind == RParen || (p.peek(1).Kind == Identifier && p.peek(2).Kind == Colon)) {
		p.fail(errUserFunction)
	}
	if p.checkWord("view") && p.peek(1).Kind == LParen {
		p.fail(errUserFunction)
	}
	return &LetStmt{At: at, Name: name, X: p.parsePipeline()}
}

func (p *Parser) parseSet() *SetStmt {
	at := p.next().Pos
	s := &SetStmt{At: at, Name: p.parseDottedName()}
	if p.match(Assign) {
		s.Value = p.parseExpr()
	}
	return s
}

func (p *Parser) parseDeclare() *DeclareStmt {
	at := p.next().Pos
	p.expectWord("query_parameters")
	p.expect(LParen)
	d := &DeclareStmt{At: at}
	for !p.check(RParen) {
		decl := p.parseColumnDecl()
		if p.match(Assign) {
			decl.Default = p.parseExpr()
		}
		d.Params = append(d.Params, decl)
		if !p.match(Comma) {
			break
		}
	}
	p.expect(RParen)
	return d
}

func (p *Parser) parseColumnDecl() *ColumnDecl {
	at := p.cur().Pos
	name := p.parseName()
	p.expect(Colon)
	typ := p.expect(Identifier)
	return &ColumnDecl{At: at, Name: name, Type: typ.Text}
}

// parseName reads an identifier or a ['quoted'] name.
func (p *Parser) parseName() string {
	if p.check(LBracket) {
		p.next()
		name := p.expect(String).Text
		p.expect(RBracket)
		return name
	}
	return p.expect(Identifier).Text
}

func (p *Parser) parseDottedName() string {
	parts := []string{p.expect(Identifier).Text}
	for p.check(Dot) && p.peek(1).Kind == Identifier {
		p.next()
		parts = append(parts, p.next().Text)
	}
	return strings.Join(parts, ".")
}

// parseParams reads name=value pairs such as kind=inner or
// hint.strategy=shuffle that precede an operator's arguments. Dotted names
// are always parameters; plain names only when listed in plain.
func (p *Parser) parseParams(plain ...string) []*NamedExpr {
	var params []*NamedExpr
	for p.check(Identifier) {
		save := p.i
		at := p.cur().Pos
		name := p.parseDottedName()
		if !p.check(Assign) || (!strings.Contains(name, ".") && !slices.Contains(plain, name)) {
			p.i = save
			break
		}
		p.next()
		params = append(params, &NamedExpr{At: at, Name: name, X: p.parsePrimary()})
	}
	return params
}

// ---------- Pipelines and sources ----------

func (p *Parser) parsePipeline() Expr {
	src := p.parseSource()
	if !p.check(Pipe) {
		return src
	}
	pl := &Pipeline{Source: src}
	for p.match(Pipe) {
		pl.Ops = append(pl.Ops, p.parseOperator())
	}
	return pl
}

func (p *Parser) parseSource() Expr {
	switch {
	case p.checkWord("union"):
		return p.parseUnion()
	case p.checkWord("print"):
		at := p.next().Pos
		return &PrintExpr{At: at, Columns: p.parseColumnList()}
	case p.checkWord("range") && p.peek(1).Kind == Identifier:
		return p.parseRange()
	case p.checkWord("datatable") && p.peek(1).Kind == LParen:
		return p.parseDataTable()
	}
	return p.parseExpr()
}

func (p *Parser) parseRange() *RangeExpr {
	at := p.next().Pos
	r := &RangeExpr{At: at, Name: p.parseName()}
	p.expectWord("from")
	r.From = p.parseExpr()
	p.expectWord("to")
	r.To = p.parseExpr()
	p.expectWord("step")
	r.Step = p.parseExpr()
	return r
}

func (p *Parser) parseDataTable() *DataTableExpr {
	at := p.next().Pos
	d := &DataTableExpr{At: at}
	p.expect(LParen)
	for !p.check(RParen) {
		d.Columns = append(d.Columns, p.parseColumnDecl())
		if !p.match(Comma) {
			break
		}
	}
	p.expect(RParen)
	p.expect(LBracket)
	for !p.check(RBracket) {
		d.Values = append(d.Values, p.parseExpr())
		if !p.match(Comma) {
			break
		}
	}
	p.expect(RBracket)
	return d
}

func (p *Parser) parseUnion() *UnionOp {
	at := p.next().Pos
	u := &UnionOp{At: at}
	for _, param := range p.parseParams("kind", "withsource", "isfuzzy") {
		switch param.Name {
		case "kind":
			u.Kind = exprText(param.X)
		case "withsource":
			u.WithSource = exprText(param.X)
		}
	}
	for {
		u.Tables = append(u.Tables, p.parseTableRef())
		if !p.match(Comma) {
			break
		}
	}
	return u
}

// parseTableRef reads a union or join operand: a table name or wildcard
// pattern, or any primary expression such as (T | where x) or
// database('D').T.
func (p *Parser) parseTableRef() Expr {
	if p.check(Identifier) || p.check(Asterisk) {
		if id, ok := p.tryWildcard(); ok {
			return id
		}
	}
	return p.parsePostfix(p.parsePrimary())
}

// tryWildcard reads a name pattern made of adjacent identifier and star
// tokens, such as Storm* or *Events.
func (p *Parser) tryWildcard() (*Ident, bool) {
	start := p.cur()
	var b strings.Builder
	end := start.Pos.Offset
	j := p.i
	for {
		t := p.tokens[j]
		if (t.Kind != Identifier && t.Kind != Asterisk) || t.Pos.Offset != end {
			break
		}
		b.WriteString(t.Text)
		end += len(t.Text)
		j++
	}
	name := b.String()
	if !strings.Contains(name, "*") {
		return nil, false
	}
	for p.i < j {
		p.next()
	}
	return &Ident{At: start.Pos, Name: name, Wildcard: true}, true
}

func exprText(e Expr) string {
	switch v := e.(type) {
	case *Ident:
		return v.Name
	case *Literal:
		return v.Value
	}
	return ""
}

// parseColumnList reads a comma-separated list of column expressions.
func (p *Parser) parseColumnList() []Expr {
	var cols []Expr
	for {
		cols = append(cols, p.parseColumnExpr())
		if !p.match(Comma) {
			return cols
		}
	}
}

// parseColumnExpr reads an expression optionally named with Name = expr.
func (p *Parser) parseColumnExpr() Expr {
	t := p.cur()
	switch {
	case t.Kind == Identifier && p.peek(1).Kind == Assign:
		p.next()
		p.next()
		return &NamedExpr{At: t.Pos, Name: t.Text, X: p.parseExpr()}
	case t.Kind == LBracket && p.peek(1).Kind == String && p.peek(2).Kind == RBracket && p.peek(3).Kind == Assign:
		name := p.parseName()
		p.next()
		return &NamedExpr{At: t.Pos, Name: name, X: p.parseExpr()}
	}
	return p.parseExpr()
}

func (p *Parser) parseIdentList() []*Ident {
	var ids []*Ident
	for {
		if id, ok := p.tryWildcard(); ok {
			ids = append(ids, id)
		} else {
			at := p.cur().Pos
			ids = append(ids, &Ident{At: at, Name: p.parseName()})
		}
		// project-reorder accepts a sort direction per column
		if p.checkWord("asc") || p.checkWord("desc") || p.checkWord("granny-asc") {
			p.next()
		}
		if !p.match(Comma) {
			return ids
		}
	}
}

func (p *Parser) parseSortKeys() []*SortKey {
	var keys []*SortKey
	for {
		k := &SortKey{X: p.parseExpr(), Desc: true}
		switch {
		case p.matchWord("asc"):
			k.Desc = false
		case p.matchWord("desc"):
		}
		if p.matchWord("nulls") {
			if !p.matchWord("first") {
				p.expectWord("last")
			}
		}
		keys = append(keys, k)
		if !p.match(Comma) {
			return keys
		}
	}
}

// ---------- Operators ----------

// opaqueOperators are operators accepted without a model of their output.
var opaqueOperators = map[string]bool{
	"evaluate":    true,
	"facet":       true,
	"find":        true,
	"fork":        true,
	"invoke":      true,
	"make-series": true,
	"mv-apply":    true,
	"parse":       true,
	"parse-where": true,
	"partition":   true,
	"reduce":      true,
	"scan":        true,
	"search":      true,
	"top-hitters": true,
	"top-nested":  true,
}

func (p *Parser) parseOperator() Operator {
	t := p.cur()
	if t.Kind != Identifier {
		p.fail(errMissingOperator)
	}
	at := t.Pos

	switch t.Text {
	case "where", "filter":
		p.next()
		return &WhereOp{At: at, Predicate: p.parseExpr()}
	case "project":
		p.next()
		return &ProjectOp{At: at, Columns: p.parseColumnList()}
	case "project-away":
		p.next()
		return &ProjectAwayOp{At: at, Columns: p.parseIdentList()}
	case "project-keep":
		p.next()
		return &ProjectKeepOp{At: at, Columns: p.parseIdentList()}
	case "project-reorder":
		p.next()
		return &ProjectReorderOp{At: at, Columns: p.parseIdentList()}
	case "project-rename":
		p.next()
		return p.parseRename(at)
	case "extend":
		p.next()
		return &ExtendOp{At: at, Columns: p.parseColumnList()}
	case "summarize":
		p.next()
		return p.parseSummarize(at)
	case "count":
		p.next()
		return &CountOp{At: at}
	case "take", "limit":
		p.next()
		return &TakeOp{At: at, Count: p.parseExpr()}
	case "top":
		p.next()
		op := &TopOp{At: at, Count: p.parseExpr()}
		p.expectWord("by")
		op.By = p.parseSortKeys()
		return op
	case "sort", "order":
		p.next()
		p.expectWord("by")
		return &SortOp{At: at, Keys: p.parseSortKeys()}
	case "distinct":
		p.next()
		if p.check(Asterisk) {
			return &DistinctOp{At: at, Columns: []Expr{&Star{At: p.next().Pos}}}
		}
		return &DistinctOp{At: at, Columns: p.parseColumnList()}
	case "join", "lookup":
		p.next()
		return p.parseJoin(at, t.Text)
	case "union":
		return p.parseUnion()
	case "as":
		p.next()
		p.parseParams()
		return &AsOp{At: at, Name: p.parseName()}
	case "getschema":
		p.next()
		return &GetSchemaOp{At: at}
	case "render":
		p.next()
		op := &RenderOp{At: at, Visualization: p.expect(Identifier).Text}
		p.skipOperator()
		return op
	case "sample":
		p.next()
		return &SampleOp{At: at, Count: p.parseExpr()}
	case "serialize":
		p.next()
		op := &SerializeOp{At: at}
		if !p.atBoundary() {
			op.Columns = p.parseColumnList()
		}
		return op
	case "mv-expand":
		p.next()
		return p.parseMvExpand(at)
	}

	if opaqueOperators[t.Text] {
		p.next()
		p.skipOperator()
		return &OpaqueOp{At: at, Name: t.Text}
	}
	p.fail(fmt.Sprintf(errUnknownOperator, t))
	return nil
}

// skipOperator consumes tokens up to the end of the current operator,
// honoring nested brackets.
func (p *Parser) skipOperator() {
	depth := 0
	for {
		switch p.cur().Kind {
		case EOF:
			return
		case LParen, LBracket, LBrace:
			depth++
		case RParen, RBracket, RBrace:
			if depth == 0 {
				return
			}
			depth--
		case Pipe, Semicolon:
			if depth == 0 {
				return
			}
		}
		p.next()
	}
}

func (p *Parser) parseRename(at Pos) *ProjectRenameOp {
	op := &ProjectRenameOp{At: at}
	for {
		nat := p.cur().Pos
		name := p.parseName()
		p.expect(Assign)
		oldAt := p.cur().Pos
		old := p.parseName()
		op.Renames = append(op.Renames, &NamedExpr{At: nat, Name: name, X: &Ident{At: oldAt, Name: old}})
		if !p.match(Comma) {
			return op
		}
	}
}

func (p *Parser) parseSummarize(at Pos) *SummarizeOp {
	p.parseParams()
	op := &SummarizeOp{At: at}
	if !p.checkWord("by") && !p.atBoundary() {
		op.Aggregates = p.parseColumnList()
	}
	if p.matchWord("by") {
		op.By = p.parseColumnList()
	}
	return op
}

func (p *Parser) parseJoin(at Pos, keyword string) *JoinOp {
	op := &JoinOp{At: at, Keyword: keyword}
	for _, param := range p.parseParams("kind") {
		if param.Name == "kind" {
			op.Kind = exprText(param.X)
			continue
		}
		op.Hints = append(op.Hints, param)
	}
	op.Right = p.parseTableRef()
	if p.matchWord("on") {
		op.On = p.parseColumnList()
	}
	return op
}

func (p *Parser) parseMvExpand(at Pos) *MvExpandOp {
	p.parseParams("bagexpansion", "with_itemindex")
	op := &MvExpandOp{At: at}
	for {
		op.Columns = append(op.Columns, p.parseColumnExpr())
		typ := ""
		if p.matchWord("to") {
			p.expectWord("typeof")
			p.expect(LParen)
			typ = p.expect(Identifier).Text
			p.expect(RParen)
		}
		op.ToTypes = append(op.ToTypes, typ)
		if !p.match(Comma) {
			break
		}
	}
	if p.matchWord("limit") {
		p.parseExpr()
	}
	return op
}
