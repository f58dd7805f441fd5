package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// ---------- Expression Parsing (Pratt) ----------
//
// Operator precedence (lowest to highest):
//
//	OR
//	AND
//	NOT
//	= <> < > <= >= IN BETWEEN LIKE ILIKE IS
//	+ - || & | ^
//	* / %
//	unary - + ~
//	:: COLLATE

const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precComparison
	precAddition
	precMultiply
	precUnary
	precPostfix
)

// parseExpr parses a full expression.
func (p *Parser) parseExpr() core.Expr {
	return p.parseExprPrec(precLowest)
}

// parseExprPrec parses an expression whose operators all bind tighter
// than prec.
func (p *Parser) parseExprPrec(prec int) core.Expr {
	left := p.parsePrefix()
	for left != nil && !p.failed() {
		next := p.infixPrecedence()
		if next <= prec {
			break
		}
		left = p.parseInfix(left, next)
	}
	return left
}

// parsePrefix parses prefix operators and primaries.
func (p *Parser) parsePrefix() core.Expr {
	start := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		operand := p.parseExprPrec(precNot)
		return &core.Unary{Op: token.NOT, Expr: operand, NodeInfo: p.info(start)}
	case token.MINUS, token.PLUS, token.TILDE:
		op := p.token.Type
		p.nextToken()
		operand := p.parseExprPrec(precUnary)
		return &core.Unary{Op: op, Expr: operand, NodeInfo: p.info(start)}
	}
	return p.parsePrimary()
}

// infixPrecedence returns the binding power of the current token as an
// infix or postfix operator, or precLowest.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.NOT:
		switch p.peek.Type {
		case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
			return precComparison
		}
		return precLowest
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IN, token.BETWEEN, token.LIKE, token.ILIKE, token.IS:
		return precComparison
	case token.PLUS, token.MINUS, token.DPIPE, token.AMP, token.PIPE, token.CARET:
		return precAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiply
	case token.DCOLON:
		if p.dialect.DoubleColonCast {
			return precPostfix
		}
	case token.IDENT:
		if p.checkWord("collate") {
			return precPostfix
		}
	}
	return precLowest
}

// parseInfix parses the operator at the current token with left as its
// left operand.
func (p *Parser) parseInfix(left core.Expr, prec int) core.Expr {
	start := left.Span().Start

	switch p.token.Type {
	case token.DCOLON:
		p.nextToken()
		typ := p.parseTypeName()
		return &core.Cast{Form: core.CastDoubleColon, Expr: left, Type: typ, NodeInfo: p.info(start)}
	case token.IDENT:
		// expr COLLATE name
		p.nextToken()
		p.parseIdent()
		return left
	case token.IS:
		return p.parseIs(left, start)
	}

	not := p.match(token.NOT)
	switch p.token.Type {
	case token.IN:
		return p.parseIn(left, not, start)
	case token.BETWEEN:
		p.nextToken()
		low := p.parseExprPrec(precAnd)
		p.expect(token.AND)
		high := p.parseExprPrec(precComparison)
		return &core.Between{Expr: left, Not: not, Low: low, High: high, NodeInfo: p.info(start)}
	case token.LIKE, token.ILIKE:
		op := p.token.Type
		p.nextToken()
		like := &core.Like{Expr: left, Not: not, Op: op, Pattern: p.parseExprPrec(precComparison)}
		if p.matchWord("escape") {
			like.Escape = p.parseExprPrec(precComparison)
		}
		like.NodeInfo = p.info(start)
		return like
	}

	op := p.token.Type
	p.nextToken()
	right := p.parseExprPrec(prec)
	if right == nil {
		return nil
	}
	return &core.Binary{Left: left, Op: op, Right: right, NodeInfo: p.info(start)}
}

// parseIs parses IS [NOT] (NULL | TRUE | FALSE | UNKNOWN | DISTINCT FROM expr).
func (p *Parser) parseIs(left core.Expr, start token.Position) core.Expr {
	p.expect(token.IS)
	not := p.match(token.NOT)
	is := &core.Is{Expr: left, Not: not}
	switch {
	case p.match(token.NULL):
		is.Value = "NULL"
	case p.match(token.TRUE):
		is.Value = "TRUE"
	case p.match(token.FALSE):
		is.Value = "FALSE"
	case p.matchWord("unknown"):
		is.Value = "UNKNOWN"
	case p.match(token.DISTINCT):
		p.expect(token.FROM)
		right := p.parseExprPrec(precComparison)
		op := token.NE
		if not {
			op = token.EQ
		}
		return &core.Binary{Left: left, Op: op, Right: right, NodeInfo: p.info(start)}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "NULL, TRUE or FALSE"))
		return nil
	}
	is.NodeInfo = p.info(start)
	return is
}

// parseIn parses IN "(" (query | expr_list) ")".
func (p *Parser) parseIn(left core.Expr, not bool, start token.Position) core.Expr {
	p.expect(token.IN)
	in := &core.In{Expr: left, Not: not}
	if !p.expect(token.LPAREN) {
		return nil
	}
	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseQuery()
	} else if !p.check(token.RPAREN) {
		in.Values = p.parseExprList()
	}
	p.expect(token.RPAREN)
	in.NodeInfo = p.info(start)
	return in
}
