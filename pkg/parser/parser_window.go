package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// ---------- Window Specifications ----------

// parseWindow parses the window after OVER.
//
//	window → name | "(" [name] [PARTITION BY expr_list] [ORDER BY order_list] [frame] ")"
//	frame  → (ROWS|RANGE|GROUPS) (bound | BETWEEN bound AND bound) [EXCLUDE ...]
func (p *Parser) parseWindow() *core.WindowSpec {
	spec := &core.WindowSpec{}
	if p.check(token.IDENT) {
		spec.Name = p.parseIdent().Name
		return spec
	}
	p.expect(token.LPAREN)
	if p.check(token.IDENT) && !p.checkWord("partition") && !p.isFrameUnit() {
		spec.Name = p.parseIdent().Name
	}
	if p.matchWord("partition") {
		p.expect(token.BY)
		spec.PartitionBy = p.parseExprList()
	}
	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		spec.OrderBy = p.parseOrderList()
	}
	if p.isFrameUnit() {
		spec.Frame = p.parseFrame()
	}
	p.expect(token.RPAREN)
	return spec
}

func (p *Parser) isFrameUnit() bool {
	return p.checkWord("rows") || p.checkWord("range") || p.checkWord("groups")
}

func (p *Parser) parseFrame() *core.Frame {
	frame := &core.Frame{Unit: strings.ToUpper(p.token.Literal)}
	p.nextToken()
	if p.match(token.BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(token.AND)
		end := p.parseFrameBound()
		frame.End = &end
	} else {
		frame.Start = p.parseFrameBound()
	}
	if p.matchWord("exclude") {
		for p.check(token.IDENT) {
			p.nextToken()
		}
	}
	return frame
}

// parseFrameBound parses UNBOUNDED (PRECEDING|FOLLOWING), CURRENT ROW or
// expr (PRECEDING|FOLLOWING).
func (p *Parser) parseFrameBound() core.FrameBound {
	switch {
	case p.matchWord("unbounded"):
		if p.matchWord("preceding") {
			return core.FrameBound{Kind: "UNBOUNDED PRECEDING"}
		}
		p.expectWord("following")
		return core.FrameBound{Kind: "UNBOUNDED FOLLOWING"}
	case p.checkWord("current") && p.checkPeekWord("row"):
		p.nextToken()
		p.nextToken()
		return core.FrameBound{Kind: "CURRENT ROW"}
	}
	offset := p.parseExprPrec(precAnd)
	switch {
	case p.matchWord("preceding"):
		return core.FrameBound{Kind: "PRECEDING", Offset: offset}
	case p.matchWord("following"):
		return core.FrameBound{Kind: "FOLLOWING", Offset: offset}
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "PRECEDING or FOLLOWING"))
	return core.FrameBound{}
}
