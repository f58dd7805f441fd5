package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// ---------- Special Forms ----------

// parseCase parses a simple or searched CASE expression.
//
//	case → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
func (p *Parser) parseCase() core.Expr {
	start := p.token.Pos
	p.expect(token.CASE)
	c := &core.Case{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpr()
	}
	for p.match(token.WHEN) && !p.failed() {
		when := core.When{Cond: p.parseExpr()}
		p.expect(token.THEN)
		when.Result = p.parseExpr()
		c.Whens = append(c.Whens, when)
	}
	if len(c.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "WHEN"))
		return nil
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpr()
	}
	p.expect(token.END)
	c.NodeInfo = p.info(start)
	return c
}

// parseCast parses "(" expr AS type ")" after CAST or TRY_CAST.
func (p *Parser) parseCast(form core.CastForm, start token.Position) core.Expr {
	p.expect(token.LPAREN)
	cast := &core.Cast{Form: form, Expr: p.parseExpr()}
	p.expect(token.AS)
	cast.Type = p.parseTypeName()
	p.expect(token.RPAREN)
	cast.NodeInfo = p.info(start)
	return cast
}

// parseConvert parses "(" type "," expr ["," style] ")" after CONVERT or
// TRY_CONVERT.
func (p *Parser) parseConvert(form core.CastForm, start token.Position) core.Expr {
	p.expect(token.LPAREN)
	cast := &core.Cast{Form: form, Type: p.parseTypeName()}
	p.expect(token.COMMA)
	cast.Expr = p.parseExpr()
	if p.match(token.COMMA) {
		cast.Style = p.parseExpr()
	}
	p.expect(token.RPAREN)
	cast.NodeInfo = p.info(start)
	return cast
}

// parseConvertValueFirst parses "(" expr "," type ")" or
// "(" expr USING charset ")" after a MySQL CONVERT.
func (p *Parser) parseConvertValueFirst(start token.Position) core.Expr {
	p.expect(token.LPAREN)
	cast := &core.Cast{Form: core.CastConvertValueFirst, Expr: p.parseExpr()}
	if p.match(token.USING) {
		if !p.check(token.IDENT) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "character set"))
			return nil
		}
		cast.Form = core.CastConvertUsing
		cast.Type = strings.ToLower(p.token.Literal)
		p.nextToken()
	} else {
		p.expect(token.COMMA)
		cast.Type = p.parseTypeName()
	}
	p.expect(token.RPAREN)
	cast.NodeInfo = p.info(start)
	return cast
}

// parseExtract parses EXTRACT "(" field FROM expr ")".
func (p *Parser) parseExtract() core.Expr {
	start := p.token.Pos
	p.expectWord("extract")
	p.expect(token.LPAREN)
	fieldStart := p.token.Pos
	var field string
	switch p.token.Type {
	case token.IDENT, token.STRING:
		field = strings.ToUpper(p.token.Literal)
		p.nextToken()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "date part"))
		return nil
	}
	ext := &core.Extract{Field: &core.Identifier{Name: field, NodeInfo: p.info(fieldStart)}}
	p.expect(token.FROM)
	ext.From = p.parseExpr()
	p.expect(token.RPAREN)
	ext.NodeInfo = p.info(start)
	return ext
}

// intervalUnits are the words accepted after an INTERVAL value.
var intervalUnits = map[string]bool{
	"year": true, "years": true, "quarter": true, "month": true, "months": true,
	"week": true, "weeks": true, "day": true, "days": true, "hour": true, "hours": true,
	"minute": true, "minutes": true, "second": true, "seconds": true,
	"millisecond": true, "milliseconds": true, "microsecond": true, "microseconds": true,
}

// parseInterval parses INTERVAL value [unit [TO unit]].
func (p *Parser) parseInterval() core.Expr {
	start := p.token.Pos
	p.expectWord("interval")
	iv := &core.Interval{Value: p.parsePrefix()}
	if p.check(token.IDENT) && !p.token.Quoted && intervalUnits[strings.ToLower(p.token.Literal)] {
		unitStart := p.token.Pos
		unit := strings.ToUpper(p.token.Literal)
		p.nextToken()
		if p.checkWord("to") && p.peek.Type == token.IDENT {
			p.nextToken()
			unit += " TO " + strings.ToUpper(p.token.Literal)
			p.nextToken()
		}
		iv.Unit = &core.Identifier{Name: unit, NodeInfo: p.info(unitStart)}
	}
	iv.NodeInfo = p.info(start)
	return iv
}

// parseTypeName parses a data type and returns it in canonical upper case:
// VARCHAR(50), DECIMAL(10,2), DOUBLE PRECISION, TIMESTAMP WITH TIME ZONE.
func (p *Parser) parseTypeName() string {
	if !p.check(token.IDENT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "type name"))
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(p.token.Literal))
	p.nextToken()
	for p.check(token.DOT) && p.checkPeek(token.IDENT) {
		p.nextToken()
		b.WriteString("." + strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	for p.checkWord("precision") || p.checkWord("varying") || p.checkWord("unsigned") ||
		p.checkWord("integer") || p.checkWord("int") {
		b.WriteString(" " + strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	if p.check(token.LPAREN) {
		p.nextToken()
		b.WriteByte('(')
		for !p.failed() && !p.check(token.RPAREN) && !p.check(token.EOF) {
			if p.check(token.COMMA) {
				b.WriteByte(',')
			} else {
				b.WriteString(strings.ToUpper(p.token.Literal))
			}
			p.nextToken()
		}
		p.expect(token.RPAREN)
		b.WriteByte(')')
	}
	if (p.check(token.WITH) || p.checkWord("without")) && p.checkPeekWord("time") {
		b.WriteString(" " + strings.ToUpper(p.token.Literal) + " TIME ZONE")
		p.nextToken()
		p.nextToken()
		p.expectWord("zone")
	}
	return b.String()
}
