package kql

import "fmt"

// Expression grammar, lowest precedence first:
//
//	or
//	and
//	comparison   == != < <= > >= =~ !~ has contains in between ...
//	additive     + -
//	multiplicative * / %
//	unary        - +
//	postfix      call, member, index

const (
	precNone = iota
	precOr
	precAnd
	precCompare
	precAdd
	precMul
)

// stringOperators are the word operators that compare strings.
var stringOperators = map[string]bool{}

func init() {
	for _, base := range []string{"has", "hasprefix", "hassuffix", "contains", "startswith", "endswith"} {
		stringOperators[base] = true
		stringOperators["!"+base] = true
		stringOperators[base+"_cs"] = true
		stringOperators["!"+base+"_cs"] = true
	}
	stringOperators["matches regex"] = true
	stringOperators["has_any"] = true
	stringOperators["has_all"] = true
}

// IsStringOperator reports whether op is a string predicate operator such
// as has, !contains or matches regex.
func IsStringOperator(op string) bool {
	return stringOperators[op]
}

func (p *Parser) parseExpr() Expr {
	return p.parseBinary(precOr)
}

func (p *Parser) infixPrec() int {
	t := p.cur()
	switch t.Kind {
	case Eq, Ne, Lt, Le, Gt, Ge, EqTilde, NeTilde:
		return precCompare
	case Plus, Minus:
		return precAdd
	case Asterisk, Slash, Percent:
		return precMul
	case Identifier:
		switch t.Text {
		case "or":
			return precOr
		case "and":
			return precAnd
		case "in", "!in", "in~", "!in~", "between", "!between", "matches":
			return precCompare
		}
		if stringOperators[t.Text] {
			return precCompare
		}
	}
	return precNone
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		prec := p.infixPrec()
		if prec == precNone || prec < minPrec {
			return left
		}
		op := p.next()
		switch op.Text {
		case "in", "!in", "in~", "!in~":
			left = &In{
				X:               left,
				List:            p.parseParenList(),
				Not:             op.Text[0] == '!',
				CaseInsensitive: op.Text[len(op.Text)-1] == '~',
			}
			continue
		case "between", "!between":
			left = p.parseBetween(left, op.Text == "!between")
			continue
		case "has_any", "has_all":
			at := p.cur().Pos
			left = &Binary{X: left, Op: op.Text, Y: &ListExpr{At: at, Items: p.parseParenList()}}
			continue
		case "matches":
			p.expectWord("regex")
			left = &Binary{X: left, Op: "matches regex", Y: p.parseBinary(prec + 1)}
			continue
		}
		left = &Binary{X: left, Op: op.Text, Y: p.parseBinary(prec + 1)}
	}
}

// parseParenList reads '(' item (',' item)* ')' where items may be
// tabular, as in x in (T | project y).
func (p *Parser) parseParenList() []Expr {
	p.expect(LParen)
	var items []Expr
	for !p.check(RParen) {
		items = append(items, p.parsePipeline())
		if !p.match(Comma) {
			break
		}
	}
	p.expect(RParen)
	return items
}

func (p *Parser) parseBetween(x Expr, not bool) Expr {
	p.expect(LParen)
	lo := p.parseBinary(precAdd)
	p.expect(DotDot)
	hi := p.parseBinary(precAdd)
	p.expect(RParen)
	return &Between{X: x, Lo: lo, Hi: hi, Not: not}
}

func (p *Parser) parseUnary() Expr {
	if t := p.cur(); t.Kind == Minus || t.Kind == Plus {
		p.next()
		return &Unary{At: t.Pos, Op: t.Text, X: p.parseUnary()}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(x Expr) Expr {
	for {
		switch p.cur().Kind {
		case LParen:
			switch x.(type) {
			case *Ident, *Member:
			default:
				return x
			}
			x = &Call{Fun: x, Args: p.parseCallArgs()}
		case Dot:
			p.next()
			x = &Member{X: x, Name: p.parseName()}
		case LBracket:
			p.next()
			idx := p.parseExpr()
			p.expect(RBracket)
			x = &Index{X: x, Index: idx}
		default:
			return x
		}
	}
}

func (p *Parser) parseCallArgs() []Expr {
	p.expect(LParen)
	var args []Expr
	for !p.check(RParen) {
		if p.check(Asterisk) && (p.peek(1).Kind == RParen || p.peek(1).Kind == Comma) {
			args = append(args, &Star{At: p.next().Pos})
		} else if p.check(Identifier) && p.peek(1).Kind == Assign {
			t := p.next()
			p.next()
			args = append(args, &NamedExpr{At: t.Pos, Name: t.Text, X: p.parsePipeline()})
		} else {
			args = append(args, p.parsePipeline())
		}
		if !p.match(Comma) {
			break
		}
	}
	p.expect(RParen)
	return args
}

func (p *Parser) parsePrimary() Expr {
	t := p.cur()
	switch t.Kind {
	case Identifier:
		p.next()
		switch t.Text {
		case "true", "false":
			return &Literal{At: t.Pos, Type: "bool", Value: t.Text}
		}
		return &Ident{At: t.Pos, Name: t.Text}
	case String:
		p.next()
		return &Literal{At: t.Pos, Type: "string", Value: t.Text}
	case Long:
		p.next()
		return &Literal{At: t.Pos, Type: "long", Value: t.Text}
	case Real:
		p.next()
		return &Literal{At: t.Pos, Type: "real", Value: t.Text}
	case Timespan:
		p.next()
		return &Literal{At: t.Pos, Type: "timespan", Value: t.Text}
	case TypedLiteral:
		p.next()
		return &Literal{At: t.Pos, Type: t.Text, Value: t.Value}
	case LBracket:
		return &Ident{At: t.Pos, Name: p.parseName()}
	case LParen:
		p.next()
		x := p.parsePipeline()
		p.expect(RParen)
		return &Paren{At: t.Pos, X: x}
	case Asterisk:
		p.next()
		return &Star{At: t.Pos}
	}
	p.fail(fmt.Sprintf(errUnexpectedToken, t, "an expression"))
	return nil
}
