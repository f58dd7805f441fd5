package parser

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// Lexer tokenizes SQL input for one dialect.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	dialect *dialect.Dialect
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string, d *dialect.Dialect) *Lexer {
	l := &Lexer{
		input:   input,
		line:    1,
		col:     0,
		dialect: d,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	tok := l.next()
	tok.End = l.currentPos()
	return tok
}

func (l *Lexer) next() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	single := func(t token.TokenType) token.Token {
		lit := string(l.ch)
		l.readChar()
		return token.Token{Type: t, Literal: lit, Pos: pos}
	}
	double := func(t token.TokenType) token.Token {
		lit := l.input[l.pos : l.pos+2]
		l.readChar()
		l.readChar()
		return token.Token{Type: t, Literal: lit, Pos: pos}
	}

	switch l.ch {
	case 0:
		if l.pos < len(l.input) {
			return single(token.ILLEGAL)
		}
		return token.Token{Type: token.EOF, Pos: pos}
	case '+':
		return single(token.PLUS)
	case '-':
		return single(token.MINUS)
	case '*':
		return single(token.STAR)
	case '/':
		return single(token.SLASH)
	case '%':
		return single(token.PERCENT)
	case '&':
		return single(token.AMP)
	case '^':
		return single(token.CARET)
	case '~':
		return single(token.TILDE)
	case '=':
		if l.peekChar() == '=' {
			return double(token.EQ)
		}
		return single(token.EQ)
	case '<':
		switch l.peekChar() {
		case '=':
			return double(token.LE)
		case '>':
			return double(token.NE)
		}
		return single(token.LT)
	case '>':
		if l.peekChar() == '=' {
			return double(token.GE)
		}
		return single(token.GT)
	case '!':
		if l.peekChar() == '=' {
			return double(token.NE)
		}
		return single(token.ILLEGAL)
	case '|':
		if l.peekChar() == '|' {
			return double(token.DPIPE)
		}
		return single(token.PIPE)
	case ':':
		if l.peekChar() == ':' {
			return double(token.DCOLON)
		}
		if isIdentStart(l.peekChar()) {
			l.readChar()
			return token.Token{Type: token.PARAM, Literal: ":" + l.readIdentifier(), Pos: pos}
		}
		return single(token.ILLEGAL)
	case '.':
		if isDigit(l.peekChar()) {
			return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		return single(token.DOT)
	case ',':
		return single(token.COMMA)
	case ';':
		return single(token.SEMICOLON)
	case '(':
		return single(token.LPAREN)
	case ')':
		return single(token.RPAREN)
	case '?':
		return single(token.PARAM)
	case '@':
		start := l.pos
		l.readChar()
		if l.ch == '@' {
			l.readChar()
		}
		l.readIdentifier()
		return token.Token{Type: token.PARAM, Literal: l.input[start:l.pos], Pos: pos}
	case '$':
		if isDigit(l.peekChar()) {
			start := l.pos
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
			return token.Token{Type: token.PARAM, Literal: l.input[start:l.pos], Pos: pos}
		}
		return single(token.ILLEGAL)
	case '\'':
		lit, ok := l.readQuoted('\'')
		if !ok {
			return token.Token{Type: token.ILLEGAL, Literal: ErrUnterminatedString, Pos: pos}
		}
		return token.Token{Type: token.STRING, Literal: lit, Pos: pos}
	case '"':
		return l.quotedIdent(pos, '"')
	case '[':
		if l.dialect.BracketIdentifiers {
			return l.quotedIdent(pos, ']')
		}
		return single(token.ILLEGAL)
	case '`':
		if l.dialect.BacktickIdentifiers {
			return l.quotedIdent(pos, '`')
		}
		return single(token.ILLEGAL)
	case '#':
		if l.dialect.HashTempTables && isIdentStart(l.peekChar()) {
			start := l.pos
			l.readChar()
			l.readIdentifier()
			return token.Token{Type: token.IDENT, Literal: l.input[start:l.pos], Pos: pos}
		}
		return single(token.ILLEGAL)
	}

	if (l.ch == 'N' || l.ch == 'n') && l.peekChar() == '\'' {
		l.readChar()
		lit, ok := l.readQuoted('\'')
		if !ok {
			return token.Token{Type: token.ILLEGAL, Literal: ErrUnterminatedString, Pos: pos}
		}
		return token.Token{Type: token.NSTRING, Literal: lit, Pos: pos}
	}

	switch {
	case isIdentStart(l.ch):
		lit := l.readIdentifier()
		return token.Token{Type: token.Lookup(strings.ToLower(lit)), Literal: lit, Pos: pos}
	case isDigit(l.ch):
		return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
	}
	return single(token.ILLEGAL)
}

func (l *Lexer) quotedIdent(pos token.Position, closing byte) token.Token {
	lit, ok := l.readQuoted(closing)
	if !ok {
		return token.Token{Type: token.ILLEGAL, Literal: ErrUnterminatedIdent, Pos: pos}
	}
	return token.Token{Type: token.IDENT, Literal: lit, Quoted: true, Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, line comments and block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // skip '/'
			l.readChar() // skip '*'
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}

		break
	}
}

// readQuoted reads text up to the closing delimiter. A doubled closing
// delimiter is an escape: 'it''s' -> it's, [a]]b] -> a]b.
func (l *Lexer) readQuoted(closing byte) (string, bool) {
	l.readChar() // skip opening delimiter

	var result strings.Builder
	for l.pos < len(l.input) {
		if l.ch == closing {
			if l.peekChar() == closing {
				result.WriteByte(closing)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing delimiter
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String(), false
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) || l.ch == '$' || (l.ch == '#' && l.dialect.HashTempTables) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && (isDigit(l.peekChar()) || start != l.pos) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar() // skip 'e' or 'E'
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// isIdentStart reports whether ch may start an unquoted identifier.
// Bytes >= 0x80 are accepted so UTF-8 names lex as identifiers.
func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens of input, ending with EOF.
func Tokenize(input string, d *dialect.Dialect) []token.Token {
	l := NewLexer(input, d)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens
}
