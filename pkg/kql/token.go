// Package kql is a front end for the Kusto Query Language: a lexer, an AST
// and a recursive descent parser covering the statements, tabular operators
// and scalar expressions used in everyday queries.
package kql

import "fmt"

// Kind classifies a token.
type Kind int

// Token kinds.
const (
	EOF Kind = iota
	Illegal

	Identifier   // StormEvents, project-away, !has, $left
	String       // 'text', "text", @'verbatim'
	Long         // 42
	Real         // 4.2, 1e3
	Timespan     // 1d, 30m, 100ms
	TypedLiteral // datetime(2024-01-01), dynamic({...}); Text is the type, Value the raw body

	Pipe      // |
	Comma     // ,
	Dot       // .
	DotDot    // ..
	Semicolon // ;
	Colon     // :
	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	LBrace    // {
	RBrace    // }

	Assign   // =
	Eq       // ==
	Ne       // != or <>
	Lt       // <
	Le       // <=
	Gt       // >
	Ge       // >=
	EqTilde  // =~
	NeTilde  // !~
	Arrow    // =>
	Plus     // +
	Minus    // -
	Asterisk // *
	Slash    // /
	Percent  // %
)

var kindNames = map[Kind]string{
	EOF:          "end of query",
	Illegal:      "illegal character",
	Identifier:   "identifier",
	String:       "string",
	Long:         "number",
	Real:         "number",
	Timespan:     "timespan",
	TypedLiteral: "literal",
	Pipe:         "'|'",
	Comma:        "','",
	Dot:          "'.'",
	DotDot:       "'..'",
	Semicolon:    "';'",
	Colon:        "':'",
	LParen:       "'('",
	RParen:       "')'",
	LBracket:     "'['",
	RBracket:     "']'",
	LBrace:       "'{'",
	RBrace:       "'}'",
	Assign:       "'='",
	Eq:           "'=='",
	Ne:           "'!='",
	Lt:           "'<'",
	Le:           "'<='",
	Gt:           "'>'",
	Ge:           "'>='",
	EqTilde:      "'=~'",
	NeTilde:      "'!~'",
	Arrow:        "'=>'",
	Plus:         "'+'",
	Minus:        "'-'",
	Asterisk:     "'*'",
	Slash:        "'/'",
	Percent:      "'%'",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a position in the query text. Line and Column are 1-based.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token.
type Token struct {
	Kind  Kind
	Text  string // source text; decoded contents for strings
	Value string // raw body of a TypedLiteral
	Pos   Pos
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case String:
		return fmt.Sprintf("string %q", t.Text)
	default:
		return fmt.Sprintf("'%s'", t.Text)
	}
}

// hyphenated lists the operator keywords that contain a hyphen.
var hyphenated = map[string]bool{
	"project-away":    true,
	"project-keep":    true,
	"project-rename":  true,
	"project-reorder": true,
	"mv-expand":       true,
	"mv-apply":        true,
	"make-series":     true,
	"parse-where":     true,
	"top-nested":      true,
	"top-hitters":     true,
}

// typedLiterals are the type names that introduce a literal when followed
// by a parenthesized body, e.g. datetime(2024-01-01).
var typedLiterals = map[string]bool{
	"bool":     true,
	"boolean":  true,
	"date":     true,
	"datetime": true,
	"decimal":  true,
	"double":   true,
	"dynamic":  true,
	"guid":     true,
	"int":      true,
	"long":     true,
	"real":     true,
	"time":     true,
	"timespan": true,
}

// timespanUnits maps literal suffixes to their unit.
var timespanUnits = map[string]bool{
	"d": true, "day": true, "days": true,
	"h": true, "hr": true, "hrs": true, "hour": true, "hours": true,
	"m": true, "min": true, "minute": true, "minutes": true,
	"s": true, "sec": true, "second": true, "seconds": true,
	"ms": true, "milli": true, "millis": true, "millisecond": true, "milliseconds": true,
	"microsecond": true, "microseconds": true,
	"tick": true, "ticks": true,
}
