package kql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kinds []Kind
		texts []string
	}{
		{
			name:  "pipeline",
			input: "StormEvents | count",
			kinds: []Kind{Identifier, Pipe, Identifier, EOF},
			texts: []string{"StormEvents", "|", "count", ""},
		},
		{
			name:  "hyphenated operator",
			input: "T | project-away A",
			kinds: []Kind{Identifier, Pipe, Identifier, Identifier, EOF},
			texts: []string{"T", "|", "project-away", "A", ""},
		},
		{
			name:  "subtraction is not hyphenated",
			input: "a-b",
			kinds: []Kind{Identifier, Minus, Identifier, EOF},
			texts: []string{"a", "-", "b", ""},
		},
		{
			name:  "negated string operator",
			input: "x !has 'y'",
			kinds: []Kind{Identifier, Identifier, String, EOF},
			texts: []string{"x", "!has", "y", ""},
		},
		{
			name:  "case-insensitive in",
			input: "x !in~ (1)",
			kinds: []Kind{Identifier, Identifier, LParen, Long, RParen, EOF},
			texts: []string{"x", "!in~", "(", "1", ")", ""},
		},
		{
			name:  "comparison operators",
			input: "== != <> <= >= =~ !~ => = < >",
			kinds: []Kind{Eq, Ne, Ne, Le, Ge, EqTilde, NeTilde, Arrow, Assign, Lt, Gt, EOF},
		},
		{
			name:  "numbers",
			input: "42 4.2 1e3 0x1F .5",
			kinds: []Kind{Long, Real, Real, Long, Real, EOF},
			texts: []string{"42", "4.2", "1e3", "0x1F", ".5", ""},
		},
		{
			name:  "timespans",
			input: "1d 30m 100ms 1.5h",
			kinds: []Kind{Timespan, Timespan, Timespan, Timespan, EOF},
			texts: []string{"1d", "30m", "100ms", "1.5h", ""},
		},
		{
			name:  "range dots",
			input: "1..10",
			kinds: []Kind{Long, DotDot, Long, EOF},
		},
		{
			name:  "strings",
			input: `'a\'b' "c\nd" @'e\f' @'g''h' h'secret'`,
			kinds: []Kind{String, String, String, String, String, EOF},
			texts: []string{"a'b", "c\nd", `e\f`, "g'h", "secret", ""},
		},
		{
			name:  "typed literals",
			input: "datetime(2024-01-01) dynamic({\"a\": [1, 2]}) long (null)",
			kinds: []Kind{TypedLiteral, TypedLiteral, TypedLiteral, EOF},
			texts: []string{"datetime", "dynamic", "long", ""},
		},
		{
			name:  "type name without body",
			input: "x:long)",
			kinds: []Kind{Identifier, Colon, Identifier, RParen, EOF},
		},
		{
			name:  "comments",
			input: "T // trailing\n| take 1",
			kinds: []Kind{Identifier, Pipe, Identifier, Long, EOF},
		},
		{
			name:  "join sides",
			input: "$left.a",
			kinds: []Kind{Identifier, Dot, Identifier, EOF},
			texts: []string{"$left", ".", "a", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := Tokenize(tt.input)
			assert.Equal(t, tt.kinds, kinds(toks))
			if tt.texts != nil {
				require.Len(t, toks, len(tt.texts))
				for i, want := range tt.texts {
					assert.Equal(t, want, toks[i].Text, "token %d", i)
				}
			}
		})
	}
}

func TestLexer_TypedLiteralBody(t *testing.T) {
	toks := Tokenize(`dynamic({"k": "v)"})`)
	require.Len(t, toks, 2)
	assert.Equal(t, TypedLiteral, toks[0].Kind)
	assert.Equal(t, `{"k": "v)"}`, toks[0].Value)
}

func TestLexer_Positions(t *testing.T) {
	toks := Tokenize("T\n| where x")
	require.Len(t, toks, 5)
	assert.Equal(t, Pos{Line: 1, Column: 1, Offset: 0}, toks[0].Pos)
	assert.Equal(t, Pos{Line: 2, Column: 1, Offset: 2}, toks[1].Pos)
	assert.Equal(t, Pos{Line: 2, Column: 3, Offset: 4}, toks[2].Pos)
	assert.Equal(t, "2:9", toks[3].Pos.String())
}

func TestLexer_Illegal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"unterminated string", "'abc", "unterminated string literal"},
		{"newline in string", "'ab\nc'", "unterminated string literal"},
		{"bad number suffix", "10xyz", "invalid number literal '10xyz'"},
		{"stray character", "T | where x # 1", "unexpected character '#'"},
		{"unterminated literal", "datetime(2024", "unterminated datetime literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := Tokenize(tt.input)
			last := toks[len(toks)-1]
			assert.Equal(t, Illegal, last.Kind)
			assert.Equal(t, tt.msg, last.Text)
		})
	}
}
