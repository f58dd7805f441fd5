package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// ---------- Primary Expressions ----------

// niladic functions are written without parentheses.
var niladic = map[string]bool{
	"current_date": true, "current_time": true, "current_timestamp": true,
	"current_user": true, "session_user": true, "system_user": true,
	"localtime": true, "localtimestamp": true, "current_schema": true,
}

// typedLiterals prefix a string literal: DATE '2024-01-01'.
var typedLiterals = map[string]bool{
	"date": true, "time": true, "timestamp": true, "timestamptz": true, "datetime": true,
}

// parsePrimary parses an operand.
//
//	primary → literal | param | "*" | "(" query ")" | "(" expr_list ")"
//	        | CASE ... | CAST ... | EXISTS "(" query ")"
//	        | name ["." name]* ["." "*"] | function_call
//	        | INTERVAL ... | EXTRACT ... | typed_literal
func (p *Parser) parsePrimary() core.Expr {
	start := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &core.Literal{Type: core.LiteralNumber, Value: tok.Literal, NodeInfo: p.info(start)}
	case token.STRING, token.NSTRING:
		p.nextToken()
		return &core.Literal{Type: core.LiteralString, Value: tok.Literal, National: tok.Type == token.NSTRING, NodeInfo: p.info(start)}
	case token.PARAM:
		p.nextToken()
		return &core.Literal{Type: core.LiteralParam, Value: tok.Literal, NodeInfo: p.info(start)}
	case token.TRUE, token.FALSE:
		p.nextToken()
		return &core.Literal{Type: core.LiteralBool, Value: strings.ToUpper(tok.Literal), NodeInfo: p.info(start)}
	case token.NULL:
		p.nextToken()
		return &core.Literal{Type: core.LiteralNull, Value: "NULL", NodeInfo: p.info(start)}
	case token.STAR:
		p.nextToken()
		return &core.Star{NodeInfo: p.info(start)}
	case token.LPAREN:
		return p.parseParen()
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		p.nextToken()
		return p.parseCast(core.CastStandard, start)
	case token.EXISTS:
		p.nextToken()
		p.expect(token.LPAREN)
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return &core.Exists{Query: q, NodeInfo: p.info(start)}
	case token.LEFT, token.RIGHT:
		if p.checkPeek(token.LPAREN) {
			p.nextToken()
			return p.parseFunctionCall(strings.ToUpper(tok.Literal), start)
		}
	case token.ALL:
		// x > ALL (SELECT ...)
		if p.checkPeek(token.LPAREN) {
			p.nextToken()
			return p.parseFunctionCall("ALL", start)
		}
	case token.IDENT:
		return p.parseIdentExpr()
	case token.ILLEGAL:
		p.addError(describe(tok))
		return nil
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(tok), "expression"))
	return nil
}

// parseIdentExpr parses expressions that start with an identifier:
// contextual forms first, then column references and function calls.
func (p *Parser) parseIdentExpr() core.Expr {
	start := p.token.Pos
	tok := p.token
	lower := strings.ToLower(tok.Literal)

	if !tok.Quoted {
		switch {
		case p.checkPeek(token.LPAREN):
			switch lower {
			case "try_cast":
				p.nextToken()
				return p.parseCast(core.CastTry, start)
			case "convert":
				switch {
				case p.dialect.TypeFirstConvert:
					p.nextToken()
					return p.parseConvert(core.CastConvert, start)
				case p.dialect.ValueFirstConvert:
					p.nextToken()
					return p.parseConvertValueFirst(start)
				}
			case "try_convert":
				p.nextToken()
				return p.parseConvert(core.CastTryConvert, start)
			case "extract":
				return p.parseExtract()
			}
		case lower == "interval" && (p.checkPeek(token.STRING) || p.checkPeek(token.NUMBER) || p.checkPeek(token.MINUS)):
			return p.parseInterval()
		case typedLiterals[lower] && p.checkPeek(token.STRING):
			p.nextToken()
			value := p.token.Literal
			p.nextToken()
			return &core.Literal{Type: core.LiteralString, Value: value, TypeName: strings.ToUpper(lower), NodeInfo: p.info(start)}
		case niladic[lower] && !p.checkPeek(token.DOT):
			p.nextToken()
			return &core.Function{Name: tok.Literal, NoParens: true, NodeInfo: p.info(start)}
		}
	}

	// name ("." name)* ["." "*"] ["(" args ")"]
	parts := []core.Ident{p.parseIdent()}
	for p.check(token.DOT) && !p.failed() {
		p.nextToken()
		if p.check(token.STAR) {
			p.nextToken()
			return &core.Star{Qualifier: parts, NodeInfo: p.info(start)}
		}
		parts = append(parts, p.parseIdent())
	}
	if p.check(token.LPAREN) {
		return p.parseFunctionCall(core.ObjectName{Parts: parts}.String(), start)
	}
	col := &core.Column{Name: parts[len(parts)-1]}
	if len(parts) > 1 {
		col.Qualifier = parts[:len(parts)-1]
	}
	col.NodeInfo = p.info(start)
	return col
}

// parseParen parses a parenthesized subquery, expression or tuple.
func (p *Parser) parseParen() core.Expr {
	start := p.token.Pos
	p.expect(token.LPAREN)
	if p.check(token.SELECT) || p.check(token.WITH) {
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return &core.SubqueryExpr{Query: q, NodeInfo: p.info(start)}
	}
	exprs := p.parseExprList()
	p.expect(token.RPAREN)
	if len(exprs) == 1 {
		return &core.Paren{Expr: exprs[0], NodeInfo: p.info(start)}
	}
	// Row constructor: (a, b)
	return &core.Function{Args: exprs, NodeInfo: p.info(start)}
}

// parseFunctionCall parses the argument list and trailing clauses of a
// call whose name has already been consumed.
//
//	call → "(" ["*" | [DISTINCT|ALL] arg ("," arg)* [ORDER BY order_list]] ")"
//	       [WITHIN GROUP "(" ORDER BY order_list ")"]
//	       [FILTER "(" WHERE expr ")"] [(IGNORE|RESPECT) NULLS] [OVER window]
func (p *Parser) parseFunctionCall(name string, start token.Position) *core.Function {
	fn := &core.Function{Name: name}
	p.expect(token.LPAREN)

	switch {
	case p.check(token.STAR):
		p.nextToken()
		fn.Star = true
	case p.check(token.RPAREN):
	default:
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(token.ALL)
		}
		fn.Args = p.parseFunctionArgs(fn)
	}
	p.expect(token.RPAREN)

	if p.checkWord("within") && p.checkPeek(token.GROUP) {
		p.nextToken()
		p.nextToken()
		p.expect(token.LPAREN)
		p.expect(token.ORDER)
		p.expect(token.BY)
		fn.WithinGroup = p.parseOrderList()
		p.expect(token.RPAREN)
	}
	if p.checkWord("filter") && p.checkPeek(token.LPAREN) {
		p.nextToken()
		p.nextToken()
		p.expect(token.WHERE)
		fn.Filter = p.parseExpr()
		p.expect(token.RPAREN)
	}
	p.skipNullTreatment()
	if p.match(token.OVER) {
		fn.Over = p.parseWindow()
	}
	fn.NodeInfo = p.info(start)
	return fn
}

// parseFunctionArgs parses call arguments. FROM and FOR act as separators
// so SUBSTRING(x FROM 1 FOR 2) and TRIM(BOTH ' ' FROM x) keep their operands.
func (p *Parser) parseFunctionArgs(fn *core.Function) []core.Expr {
	var args []core.Expr
	for !p.failed() {
		if (p.checkWord("both") || p.checkWord("leading") || p.checkWord("trailing")) &&
			!p.checkPeek(token.COMMA) && !p.checkPeek(token.RPAREN) {
			p.nextToken()
			if p.match(token.FROM) {
				continue
			}
		}
		if p.check(token.SELECT) || p.check(token.WITH) {
			start := p.token.Pos
			q := p.parseQuery()
			args = append(args, &core.SubqueryExpr{Query: q, NodeInfo: p.info(start)})
		} else {
			args = append(args, p.parseExpr())
		}
		p.skipNullTreatment()
		if p.check(token.ORDER) {
			p.nextToken()
			p.expect(token.BY)
			fn.OrderBy = p.parseOrderList()
		}
		if p.matchWord("separator") {
			args = append(args, p.parsePrimary())
		}
		if p.match(token.COMMA) || p.match(token.FROM) || p.matchWord("for") {
			continue
		}
		break
	}
	return args
}

// skipNullTreatment consumes IGNORE NULLS or RESPECT NULLS.
func (p *Parser) skipNullTreatment() {
	if (p.checkWord("ignore") || p.checkWord("respect")) && p.checkPeekWord("nulls") {
		p.nextToken()
		p.nextToken()
	}
}
