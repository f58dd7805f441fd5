// Package parser turns SQL text into the syntax tree defined in pkg/core.
//
// # Usage
//
//	d, _ := dialect.Get("tsql")
//	stmt, err := parser.Parse("CREATE VIEW v AS SELECT a FROM t", d)
//	if err != nil {
//	    // *ParseError with line and column
//	}
//
// # Grammar Overview
//
// The parser is a recursive descent parser for one statement:
//
//	statement     → create_view | create_table | query [";"]
//	create_view   → CREATE [OR (REPLACE|ALTER)] [MATERIALIZED] VIEW name ["(" ident_list ")"] [WITH options] AS query
//	              | ALTER VIEW name ... AS query
//	create_table  → CREATE TABLE name ("(" column_defs ")" | AS query)
//	query         → [WITH [RECURSIVE] cte_list] set_expr
//	set_expr      → set_operand ((UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] set_operand)*
//	set_operand   → select_core | "(" query ")"
//	select_core   → SELECT [DISTINCT|ALL] [TOP n] select_list [FROM from_clause]
//	                [WHERE expr] [GROUP BY expr_list] [HAVING expr] [QUALIFY expr]
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr] [FETCH ...]
//
// See each file for detailed grammar rules for that section. Every node gets
// a NodeID from a per-parse counter, so IDs are stable for a given input.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// Parser parses SQL into an AST.
type Parser struct {
	lexer   *Lexer
	token   token.Token // current token
	peek    token.Token // lookahead token
	peek2   token.Token // second lookahead token
	prevEnd token.Position
	errors  []error
	dialect *dialect.Dialect
	nextID  core.NodeID
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string, d *dialect.Dialect) *Parser {
	p := &Parser{
		lexer:   NewLexer(sql, d),
		dialect: d,
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses exactly one statement. Trailing semicolons are allowed.
// On failure the returned error is a *ParseError and no tree is returned.
func Parse(sql string, d *dialect.Dialect) (core.Statement, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	p := NewParser(sql, d)
	for p.match(token.SEMICOLON) {
	}
	if p.check(token.EOF) {
		p.addError(ErrEmptyInput)
		return nil, p.errors[0]
	}
	stmt := p.parseStatement()
	for p.match(token.SEMICOLON) {
	}
	if len(p.errors) == 0 && !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, describe(p.token)))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// Dialect returns the parser's dialect.
func (p *Parser) Dialect() *dialect.Dialect {
	return p.dialect
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.token.End
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// ---------- Contextual Words ----------

func isWord(tok token.Token, word string) bool {
	return tok.Type == token.IDENT && !tok.Quoted && strings.EqualFold(tok.Literal, word)
}

// checkWord reports whether the current token is the unquoted word.
func (p *Parser) checkWord(word string) bool {
	return isWord(p.token, word)
}

// checkPeekWord reports whether the peek token is the unquoted word.
func (p *Parser) checkPeekWord(word string) bool {
	return isWord(p.peek, word)
}

// matchWord consumes the current token if it is the unquoted word.
func (p *Parser) matchWord(word string) bool {
	if p.checkWord(word) {
		p.nextToken()
		return true
	}
	return false
}

// expectWord consumes the word or adds an error.
func (p *Parser) expectWord(word string) bool {
	if p.matchWord(word) {
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), word))
	return false
}

// nonAliasWords are unreserved words that end a table or projection instead
// of naming it.
var nonAliasWords = map[string]bool{
	"natural": true, "qualify": true, "offset": true, "fetch": true,
	"window": true, "lateral": true, "into": true, "option": true,
	"for": true, "pivot": true, "unpivot": true, "escape": true,
	"minus": true, "tablesample": true,
}

// canBeAlias reports whether tok can start an implicit (AS-less) alias.
func (p *Parser) canBeAlias(tok token.Token) bool {
	if tok.Type != token.IDENT {
		return false
	}
	if tok.Quoted {
		return true
	}
	lower := strings.ToLower(tok.Literal)
	if nonAliasWords[lower] {
		return false
	}
	return !p.dialect.IsReserved(lower)
}

// ---------- Errors and Node Info ----------

// addError adds a parse error.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// failed reports whether an error has been recorded. Loops check it so a
// bad token never causes unbounded iteration.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// info assigns the next NodeID and a span from start to the end of the
// last consumed token.
func (p *Parser) info(start token.Position) core.NodeInfo {
	p.nextID++
	return core.NodeInfo{
		NodeID: p.nextID,
		Loc:    token.Span{Start: start, End: p.prevEnd},
	}
}

// describe renders a token for error messages.
func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.ILLEGAL:
		if tok.Literal == ErrUnterminatedString || tok.Literal == ErrUnterminatedIdent {
			return tok.Literal
		}
		return fmt.Sprintf(ErrIllegalChar, tok.Literal)
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING, token.NSTRING:
		return "string literal"
	}
	return tok.Type.String()
}

// ---------- Identifiers ----------

// parseIdent parses a single identifier.
func (p *Parser) parseIdent() core.Ident {
	if !p.check(token.IDENT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "identifier"))
		return core.Ident{}
	}
	id := core.Ident{Name: p.token.Literal, Quoted: p.token.Quoted}
	p.nextToken()
	return id
}

// parseIdentList parses "(" ident ("," ident)* ")".
func (p *Parser) parseIdentList() []core.Ident {
	p.expect(token.LPAREN)
	var out []core.Ident
	for !p.failed() {
		out = append(out, p.parseIdent())
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return out
}

// parseObjectName parses a dotted name of up to four parts.
func (p *Parser) parseObjectName() core.ObjectName {
	var name core.ObjectName
	if p.check(token.PARAM) {
		// T-SQL table variable
		name.Parts = append(name.Parts, core.Ident{Name: p.token.Literal})
		p.nextToken()
		return name
	}
	name.Parts = append(name.Parts, p.parseIdent())
	for !p.failed() && p.check(token.DOT) {
		p.nextToken()
		if p.check(token.DOT) {
			// db..table: default schema
			name.Parts = append(name.Parts, core.Ident{})
			continue
		}
		name.Parts = append(name.Parts, p.parseIdent())
	}
	if len(name.Parts) > 4 {
		p.addError(fmt.Sprintf("object name %q has too many parts", name.String()))
	}
	return name
}
