package kql

import (
	"strings"
)

// Lexer tokenizes query text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int
	col     int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// Tokenize returns every token of input, ending with EOF or the first
// Illegal token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == EOF || tok.Kind == Illegal {
			return toks
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.pos > 0 && l.pos <= len(l.input) && l.input[l.pos-1] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	return l.peekAt(0)
}

func (l *Lexer) peekAt(n int) byte {
	if l.readPos+n >= len(l.input) {
		return 0
	}
	return l.input[l.readPos+n]
}

func (l *Lexer) currentPos() Pos {
	return Pos{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	pos := l.currentPos()

	if l.atEOF() {
		return Token{Kind: EOF, Pos: pos}
	}

	single := func(k Kind) Token {
		t := Token{Kind: k, Text: string(l.ch), Pos: pos}
		l.readChar()
		return t
	}
	double := func(k Kind) Token {
		t := Token{Kind: k, Text: l.input[l.pos : l.pos+2], Pos: pos}
		l.readChar()
		l.readChar()
		return t
	}

	switch l.ch {
	case '|':
		return single(Pipe)
	case ',':
		return single(Comma)
	case ';':
		return single(Semicolon)
	case ':':
		return single(Colon)
	case '(':
		return single(LParen)
	case ')':
		return single(RParen)
	case '[':
		return single(LBracket)
	case ']':
		return single(RBracket)
	case '{':
		return single(LBrace)
	case '}':
		return single(RBrace)
	case '+':
		return single(Plus)
	case '-':
		return single(Minus)
	case '*':
		return single(Asterisk)
	case '/':
		return single(Slash)
	case '%':
		return single(Percent)
	case '.':
		if l.peekChar() == '.' {
			return double(DotDot)
		}
		if isDigit(l.peekChar()) {
			return l.readNumber(pos)
		}
		return single(Dot)
	case '=':
		switch l.peekChar() {
		case '=':
			return double(Eq)
		case '~':
			return double(EqTilde)
		case '>':
			return double(Arrow)
		}
		return single(Assign)
	case '!':
		switch {
		case l.peekChar() == '=':
			return double(Ne)
		case l.peekChar() == '~':
			return double(NeTilde)
		case isLetter(l.peekChar()):
			l.readChar()
			word := l.readIdentifier()
			return Token{Kind: Identifier, Text: "!" + l.extendWord(word), Pos: pos}
		}
		return l.illegal(pos, "unexpected character '!'")
	case '<':
		switch l.peekChar() {
		case '=':
			return double(Le)
		case '>':
			return double(Ne)
		}
		return single(Lt)
	case '>':
		if l.peekChar() == '=' {
			return double(Ge)
		}
		return single(Gt)
	case '\'', '"':
		return l.readString(pos, false)
	case '@':
		if q := l.peekChar(); q == '\'' || q == '"' {
			l.readChar()
			return l.readString(pos, true)
		}
		return l.illegal(pos, "unexpected character '@'")
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(pos)
	case isLetter(l.ch) || l.ch == '_' || l.ch == '$':
		// h'...' and H"..." are obfuscated strings
		if (l.ch == 'h' || l.ch == 'H') && (l.peekChar() == '\'' || l.peekChar() == '"') {
			l.readChar()
			return l.readString(pos, false)
		}
		word := l.extendWord(l.readIdentifier())
		if typedLiterals[word] && l.nextNonSpace() == '(' {
			return l.readTypedLiteral(pos, word)
		}
		return Token{Kind: Identifier, Text: word, Pos: pos}
	}
	return l.illegal(pos, "unexpected character '"+string(l.ch)+"'")
}

func (l *Lexer) illegal(pos Pos, msg string) Token {
	l.readChar()
	return Token{Kind: Illegal, Text: msg, Pos: pos}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// extendWord completes hyphenated keywords and the in~ operator.
func (l *Lexer) extendWord(word string) string {
	if l.ch == '-' && isLetter(l.peekChar()) {
		end := l.readPos
		for end < len(l.input) && (isLetter(l.input[end]) || l.input[end] == '_') {
			end++
		}
		if candidate := word + "-" + l.input[l.readPos:end]; hyphenated[candidate] {
			for l.pos < end {
				l.readChar()
			}
			return candidate
		}
	}
	if word == "in" && l.ch == '~' {
		l.readChar()
		return "in~"
	}
	return word
}

func (l *Lexer) nextNonSpace() byte {
	for i := l.pos; i < len(l.input); i++ {
		switch l.input[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return l.input[i]
		}
	}
	return 0
}

// readTypedLiteral reads a parenthesized literal body, honoring nesting and
// quoted strings, and returns it verbatim.
func (l *Lexer) readTypedLiteral(pos Pos, typ string) Token {
	for l.ch != '(' {
		l.readChar()
	}
	l.readChar()
	start := l.pos
	depth := 1
	for !l.atEOF() {
		switch l.ch {
		case '\'', '"':
			q := l.ch
			l.readChar()
			for !l.atEOF() && l.ch != q {
				if l.ch == '\\' {
					l.readChar()
				}
				l.readChar()
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				body := strings.TrimSpace(l.input[start:l.pos])
				l.readChar()
				return Token{Kind: TypedLiteral, Text: typ, Value: body, Pos: pos}
			}
		}
		l.readChar()
	}
	return Token{Kind: Illegal, Text: "unterminated " + typ + " literal", Pos: pos}
}

func (l *Lexer) readString(pos Pos, verbatim bool) Token {
	quote := l.ch
	l.readChar()
	var b strings.Builder
	for {
		if l.atEOF() || (!verbatim && l.ch == '\n') {
			return Token{Kind: Illegal, Text: "unterminated string literal", Pos: pos}
		}
		switch {
		case l.ch == quote && verbatim && l.peekChar() == quote:
			b.WriteByte(quote)
			l.readChar()
		case l.ch == quote:
			l.readChar()
			return Token{Kind: String, Text: b.String(), Pos: pos}
		case l.ch == '\\' && !verbatim:
			l.readChar()
			b.WriteByte(unescape(l.ch))
		default:
			b.WriteByte(l.ch)
		}
		l.readChar()
	}
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (l *Lexer) readNumber(pos Pos) Token {
	start := l.pos
	kind := Long
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHex(l.ch) {
			l.readChar()
		}
		return Token{Kind: Long, Text: l.input[start:l.pos], Pos: pos}
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		kind = Real
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) ||
		((l.peekChar() == '+' || l.peekChar() == '-') && isDigit(l.peekAt(1)))) {
		kind = Real
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	number := l.input[start:l.pos]

	if isLetter(l.ch) {
		unitStart := l.pos
		for isLetter(l.ch) {
			l.readChar()
		}
		unit := l.input[unitStart:l.pos]
		if !timespanUnits[strings.ToLower(unit)] {
			return Token{Kind: Illegal, Text: "invalid number literal '" + number + unit + "'", Pos: pos}
		}
		return Token{Kind: Timespan, Text: number + unit, Pos: pos}
	}
	return Token{Kind: kind, Text: number, Pos: pos}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
