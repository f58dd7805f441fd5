package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// ---------- FROM Clause ----------

// parseFrom parses a FROM clause.
//
//	from_clause → table_ref (join_clause | "," table_ref)*
//	join_clause → [NATURAL] [INNER | (LEFT|RIGHT|FULL) [OUTER]] JOIN table_ref [join_cond]
//	            | CROSS JOIN table_ref
//	            | (CROSS|OUTER) APPLY table_ref
//	join_cond   → ON expr | USING "(" ident_list ")"
func (p *Parser) parseFrom() *core.From {
	from := &core.From{}
	source, nested := p.parseTableRef()
	from.Source = source
	from.Joins = append(from.Joins, nested...)

	for !p.failed() {
		start := p.token.Pos
		join := &core.Join{}
		switch {
		case p.match(token.COMMA):
			join.Type = core.JoinComma
		case p.check(token.CROSS) && p.checkPeekWord("apply"):
			p.nextToken()
			p.nextToken()
			join.Type = core.JoinCrossApply
		case p.check(token.OUTER) && p.checkPeekWord("apply"):
			p.nextToken()
			p.nextToken()
			join.Type = core.JoinOuterApply
		case p.check(token.CROSS):
			p.nextToken()
			p.expect(token.JOIN)
			join.Type = core.JoinCross
		default:
			if !p.parseJoinType(join) {
				return from
			}
		}

		right, nested := p.parseTableRef()
		join.Right = right
		if join.Natural {
			switch {
			case p.check(token.ON):
				p.addError("NATURAL JOIN cannot have ON clause")
			case p.check(token.USING):
				p.addError("NATURAL JOIN cannot have USING clause")
			}
		}
		if join.Type != core.JoinComma && join.Type != core.JoinCross && !join.Natural &&
			join.Type != core.JoinCrossApply && join.Type != core.JoinOuterApply {
			p.parseJoinCondition(join)
		}
		join.NodeInfo = p.info(start)
		from.Joins = append(from.Joins, join)
		from.Joins = append(from.Joins, nested...)
	}
	return from
}

// parseJoinType consumes [NATURAL] [INNER | LEFT | RIGHT | FULL [OUTER]] JOIN.
// It reports false, consuming nothing, when no join starts here.
func (p *Parser) parseJoinType(join *core.Join) bool {
	if p.checkWord("natural") {
		switch p.peek.Type {
		case token.JOIN, token.INNER, token.LEFT, token.RIGHT, token.FULL:
			p.nextToken()
			join.Natural = true
		default:
			return false
		}
	}
	switch p.token.Type {
	case token.JOIN:
		join.Type = core.JoinInner
	case token.INNER:
		p.nextToken()
		join.Type = core.JoinInner
	case token.LEFT, token.RIGHT, token.FULL:
		join.Type = map[token.TokenType]core.JoinType{
			token.LEFT:  core.JoinLeft,
			token.RIGHT: core.JoinRight,
			token.FULL:  core.JoinFull,
		}[p.token.Type]
		p.nextToken()
		if p.match(token.OUTER) {
			join.Outer = true
		}
	default:
		return false
	}
	p.expect(token.JOIN)
	return true
}

// parseJoinCondition parses ON expr or USING (cols).
func (p *Parser) parseJoinCondition(join *core.Join) {
	switch {
	case p.match(token.ON):
		join.On = p.parseExpr()
	case p.match(token.USING):
		join.Using = p.parseIdentList()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "ON or USING"))
	}
}

// parseTableRef parses one FROM item. A parenthesized join is flattened:
// its first source is returned and its joins come back as nested.
//
//	table_ref → [LATERAL] "(" query ")" [AS] alias ["(" ident_list ")"]
//	          | "(" from_clause ")"
//	          | name "(" args ")" [[AS] alias]
//	          | name [WITH "(" hints ")"] [[AS] alias] [WITH "(" hints ")"]
func (p *Parser) parseTableRef() (core.TableRef, []*core.Join) {
	start := p.token.Pos
	lateral := p.matchWord("lateral")

	if p.check(token.LPAREN) {
		switch p.peek.Type {
		case token.SELECT, token.WITH, token.LPAREN:
			p.nextToken()
			sub := &core.Subquery{Lateral: lateral, Query: p.parseQuery()}
			p.expect(token.RPAREN)
			if alias, ok := p.parseOptionalAlias(); ok {
				sub.Alias = alias
				if p.check(token.LPAREN) {
					sub.Columns = p.parseIdentList()
				}
			}
			sub.NodeInfo = p.info(start)
			return sub, nil
		}
		p.nextToken()
		inner := p.parseFrom()
		p.expect(token.RPAREN)
		return inner.Source, inner.Joins
	}

	name := p.parseObjectName()
	if p.check(token.LPAREN) {
		fn := p.parseFunctionCall(name.String(), start)
		tf := &core.TableFunction{Func: fn}
		if alias, ok := p.parseOptionalAlias(); ok {
			tf.Alias = alias
			if p.check(token.LPAREN) {
				p.parseIdentList()
			}
		}
		tf.NodeInfo = p.info(start)
		return tf, nil
	}

	table := &core.Table{Name: name}
	table.Hints = append(table.Hints, p.parseTableHints()...)
	if alias, ok := p.parseOptionalAlias(); ok {
		table.Alias = alias
	}
	table.Hints = append(table.Hints, p.parseTableHints()...)
	table.NodeInfo = p.info(start)
	return table, nil
}

// parseTableHints parses WITH (NOLOCK, INDEX(ix)).
func (p *Parser) parseTableHints() []string {
	if !p.check(token.WITH) || !p.checkPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	p.nextToken()
	var hints []string
	for !p.failed() && !p.check(token.RPAREN) && !p.check(token.EOF) {
		if p.check(token.IDENT) {
			hint := strings.ToUpper(p.token.Literal)
			p.nextToken()
			if p.check(token.LPAREN) {
				p.skipParens()
			}
			hints = append(hints, hint)
		} else {
			p.nextToken()
		}
		p.match(token.COMMA)
	}
	p.expect(token.RPAREN)
	return hints
}
