package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// ---------- Statements ----------

// parseStatement parses one top-level statement.
//
//	statement → create_view | alter_view | create_table | query
func (p *Parser) parseStatement() core.Statement {
	switch {
	case p.check(token.CREATE):
		return p.parseCreate()
	case p.checkWord("alter") && p.checkPeekWord("view"):
		return p.parseAlterView()
	case p.check(token.SELECT), p.check(token.WITH), p.check(token.LPAREN):
		return p.parseQuery()
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT, WITH or CREATE"))
	return nil
}

// parseCreate parses the statements that start with CREATE.
//
//	create → CREATE [OR (REPLACE|ALTER)] [MATERIALIZED|TEMP|TEMPORARY|SECURE] VIEW ...
//	       | CREATE [TEMP|TEMPORARY] TABLE ...
func (p *Parser) parseCreate() core.Statement {
	start := p.token.Pos
	p.expect(token.CREATE)

	view := &core.CreateView{}
	if p.match(token.OR) {
		switch {
		case p.matchWord("replace"):
			view.OrReplace = true
		case p.matchWord("alter"):
			view.OrAlter = true
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "REPLACE or ALTER"))
			return nil
		}
	}
	for {
		switch {
		case p.matchWord("materialized"):
			view.Materialized = true
			continue
		case p.matchWord("temp"), p.matchWord("temporary"), p.matchWord("secure"),
			p.matchWord("recursive"), p.matchWord("global"), p.matchWord("local"):
			continue
		}
		break
	}

	switch {
	case p.matchWord("view"):
		p.parseViewBody(view)
		view.NodeInfo = p.info(start)
		return view
	case p.matchWord("table"):
		return p.parseCreateTable(start)
	}
	p.addError(fmt.Sprintf(ErrUnsupported, "CREATE "+describe(p.token)))
	return nil
}

// parseAlterView parses ALTER VIEW name ... AS query.
func (p *Parser) parseAlterView() core.Statement {
	start := p.token.Pos
	p.expectWord("alter")
	p.expectWord("view")
	view := &core.CreateView{Alter: true}
	p.parseViewBody(view)
	view.NodeInfo = p.info(start)
	return view
}

// parseViewBody parses everything after the VIEW keyword.
//
//	view_body → [IF NOT EXISTS] name ["(" ident_list ")"] [WITH option_list] AS query
func (p *Parser) parseViewBody(view *core.CreateView) {
	if p.checkWord("if") && p.peek.Type == token.NOT {
		p.nextToken()
		p.nextToken()
		p.expect(token.EXISTS)
	}
	view.Name = p.parseObjectName()
	if p.check(token.LPAREN) {
		view.Columns = p.parseIdentList()
	}
	if p.match(token.WITH) {
		// WITH SCHEMABINDING, VIEW_METADATA, ENCRYPTION
		for !p.failed() {
			view.Options = append(view.Options, strings.ToUpper(p.parseIdent().Name))
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	// COMMENT = '...' and similar properties before AS
	for !p.failed() && p.check(token.IDENT) && p.checkPeek(token.EQ) {
		p.nextToken()
		p.nextToken()
		p.nextToken()
	}
	if !p.expect(token.AS) {
		return
	}
	view.Query = p.parseQuery()
	// WITH [CASCADED|LOCAL] CHECK OPTION
	if p.check(token.WITH) {
		p.nextToken()
		if !p.matchWord("cascaded") {
			p.matchWord("local")
		}
		p.expectWord("check")
		p.expectWord("option")
	}
}

// parseCreateTable parses the remainder of CREATE TABLE.
//
//	create_table → name "(" column_def ("," column_def)* ")" | name AS query
func (p *Parser) parseCreateTable(start token.Position) core.Statement {
	if p.checkWord("if") && p.peek.Type == token.NOT {
		p.nextToken()
		p.nextToken()
		p.expect(token.EXISTS)
	}
	stmt := &core.CreateTable{Name: p.parseObjectName()}
	switch {
	case p.match(token.AS):
		stmt.Query = p.parseQuery()
	case p.check(token.LPAREN):
		stmt.Columns = p.parseColumnDefs()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "( or AS"))
	}
	stmt.NodeInfo = p.info(start)
	return stmt
}

// parseColumnDefs keeps the column names and type text of a table body.
// Constraints are skipped.
func (p *Parser) parseColumnDefs() []core.ColumnDef {
	p.expect(token.LPAREN)
	var defs []core.ColumnDef
	for !p.failed() && !p.check(token.RPAREN) {
		if p.checkWord("constraint") || p.checkWord("primary") || p.checkWord("unique") ||
			p.checkWord("foreign") || p.checkWord("check") || p.checkWord("index") {
			p.skipUntilListEnd()
		} else {
			def := core.ColumnDef{Name: p.parseIdent()}
			if p.check(token.IDENT) {
				def.Type = p.parseTypeName()
			}
			p.skipUntilListEnd()
			defs = append(defs, def)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return defs
}

// skipUntilListEnd skips tokens up to the next comma or closing paren at
// the current nesting level.
func (p *Parser) skipUntilListEnd() {
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			if depth == 0 {
				return
			}
			depth--
		case token.COMMA:
			if depth == 0 {
				return
			}
		}
		p.nextToken()
	}
}

// skipParens skips a balanced parenthesized group starting at "(".
func (p *Parser) skipParens() {
	if !p.expect(token.LPAREN) {
		return
	}
	depth := 1
	for depth > 0 && !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		p.nextToken()
	}
	if depth > 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), ")"))
	}
}

// ---------- Queries ----------

// parseQuery parses an optional WITH clause and a set expression.
//
//	query → [WITH [RECURSIVE] cte ("," cte)*] set_expr
func (p *Parser) parseQuery() core.Query {
	var with *core.With
	if p.check(token.WITH) {
		with = p.parseWith()
	}
	q := p.parseSetExpr()
	if q == nil {
		return nil
	}
	if with != nil {
		switch q := q.(type) {
		case *core.Select:
			if q.With != nil {
				p.addError("nested WITH clauses on one query are not supported")
			}
			q.With = with
		case *core.SetOp:
			q.With = with
		}
	}
	return q
}

// parseWith parses a WITH clause.
//
//	cte → name ["(" ident_list ")"] AS [[NOT] MATERIALIZED] "(" query ")"
func (p *Parser) parseWith() *core.With {
	start := p.token.Pos
	p.expect(token.WITH)
	with := &core.With{}
	if p.matchWord("recursive") {
		with.Recursive = true
	}
	for !p.failed() {
		cteStart := p.token.Pos
		cte := &core.CTE{Name: p.parseIdent()}
		if p.check(token.LPAREN) {
			cte.Columns = p.parseIdentList()
		}
		p.expect(token.AS)
		if p.check(token.NOT) && p.checkPeekWord("materialized") {
			p.nextToken()
		}
		p.matchWord("materialized")
		p.expect(token.LPAREN)
		cte.Query = p.parseQuery()
		p.expect(token.RPAREN)
		cte.NodeInfo = p.info(cteStart)
		with.CTEs = append(with.CTEs, cte)
		if !p.match(token.COMMA) {
			break
		}
	}
	with.NodeInfo = p.info(start)
	return with
}

// parseSetExpr parses left-associative set operations.
//
//	set_expr → set_operand ((UNION|INTERSECT|EXCEPT|MINUS) [ALL|DISTINCT] set_operand)*
//	         [ORDER BY order_list] [LIMIT ...]
func (p *Parser) parseSetExpr() core.Query {
	start := p.token.Pos
	left := p.parseSetOperand()
	for !p.failed() && left != nil {
		var op core.SetOpType
		switch {
		case p.check(token.UNION):
			op = core.SetOpUnion
		case p.check(token.INTERSECT):
			op = core.SetOpIntersect
		case p.check(token.EXCEPT), p.checkWord("minus") && p.checkPeek(token.SELECT):
			op = core.SetOpExcept
		default:
			p.parseSetTail(left)
			return left
		}
		p.nextToken()
		setOp := &core.SetOp{Op: op, Left: left}
		if p.match(token.ALL) {
			setOp.All = true
		} else {
			p.match(token.DISTINCT)
		}
		parenthesized := p.check(token.LPAREN)
		setOp.Right = p.parseSetOperand()
		if setOp.Right == nil {
			return nil
		}
		// A trailing ORDER BY / LIMIT on the last operand applies to the
		// whole set operation.
		if sel, ok := setOp.Right.(*core.Select); ok && !parenthesized {
			setOp.OrderBy, sel.OrderBy = sel.OrderBy, nil
			setOp.Limit, sel.Limit = sel.Limit, nil
			setOp.Offset, sel.Offset = sel.Offset, nil
		}
		setOp.NodeInfo = p.info(start)
		left = setOp
	}
	return left
}

// parseSetTail parses ORDER BY and LIMIT written after a parenthesized
// final operand.
func (p *Parser) parseSetTail(q core.Query) {
	setOp, ok := q.(*core.SetOp)
	if !ok {
		return
	}
	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		setOp.OrderBy = p.parseOrderList()
	}
	if p.match(token.LIMIT) {
		setOp.Limit = p.parseExpr()
	}
	if p.matchWord("offset") {
		setOp.Offset = p.parseExpr()
		if !p.matchWord("rows") {
			p.matchWord("row")
		}
	}
}

// parseSetOperand parses a SELECT block or a parenthesized query.
func (p *Parser) parseSetOperand() core.Query {
	if p.check(token.LPAREN) {
		p.nextToken()
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return q
	}
	if !p.check(token.SELECT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT"))
		return nil
	}
	return p.parseSelect()
}

// parseSelect parses one SELECT block.
func (p *Parser) parseSelect() *core.Select {
	start := p.token.Pos
	p.expect(token.SELECT)
	sel := &core.Select{}

	switch {
	case p.match(token.DISTINCT):
		sel.Distinct = true
		if p.match(token.ON) {
			p.expect(token.LPAREN)
			sel.DistinctOn = p.parseExprList()
			p.expect(token.RPAREN)
		}
	case p.match(token.ALL):
	}
	if p.checkWord("top") && (p.checkPeek(token.NUMBER) || p.checkPeek(token.LPAREN) || p.checkPeek(token.PARAM)) {
		sel.Top = p.parseTop()
	}

	sel.Columns = p.parseSelectList()

	if p.matchWord("into") {
		// SELECT ... INTO target: the target is not part of the projection.
		p.parseObjectName()
	}
	if p.match(token.FROM) {
		sel.From = p.parseFrom()
	}
	if p.match(token.WHERE) {
		sel.Where = p.parseExpr()
	}
	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		if !p.match(token.ALL) {
			sel.GroupBy = p.parseGroupingList()
		}
	}
	if p.match(token.HAVING) {
		sel.Having = p.parseExpr()
	}
	if p.matchWord("window") {
		p.skipNamedWindows()
	}
	if p.matchWord("qualify") {
		sel.Qualify = p.parseExpr()
	}
	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		sel.OrderBy = p.parseOrderList()
	}
	p.parseLimitClauses(sel)
	if p.checkWord("for") && (p.checkPeekWord("xml") || p.checkPeekWord("json") || p.checkPeekWord("browse")) {
		p.nextToken()
		p.nextToken()
		for !p.check(token.EOF) && !p.check(token.RPAREN) && !p.check(token.SEMICOLON) && !p.checkWord("option") {
			if p.check(token.LPAREN) {
				p.skipParens()
				continue
			}
			p.nextToken()
		}
	}
	if p.checkWord("option") && p.checkPeek(token.LPAREN) {
		p.nextToken()
		p.skipParens()
	}

	sel.NodeInfo = p.info(start)
	return sel
}

// parseTop parses TOP n [PERCENT] [WITH TIES].
func (p *Parser) parseTop() *core.Top {
	p.expectWord("top")
	top := &core.Top{}
	if p.match(token.LPAREN) {
		top.Count = p.parseExpr()
		p.expect(token.RPAREN)
	} else {
		top.Count = p.parsePrimary()
	}
	if p.matchWord("percent") {
		top.Percent = true
	}
	if p.check(token.WITH) && p.checkPeekWord("ties") {
		p.nextToken()
		p.nextToken()
		top.WithTies = true
	}
	return top
}

// parseLimitClauses parses LIMIT, OFFSET and FETCH in any dialect's form.
//
//	limit → LIMIT expr [OFFSET expr] | LIMIT expr "," expr
//	      | OFFSET expr [ROW|ROWS] [FETCH (FIRST|NEXT) expr (ROW|ROWS) ONLY]
func (p *Parser) parseLimitClauses(sel *core.Select) {
	if p.match(token.LIMIT) {
		sel.Limit = p.parseExpr()
		if p.match(token.COMMA) {
			// MySQL LIMIT offset, count
			sel.Offset = sel.Limit
			sel.Limit = p.parseExpr()
		}
	}
	if p.matchWord("offset") {
		sel.Offset = p.parseExpr()
		if !p.matchWord("rows") {
			p.matchWord("row")
		}
	}
	if p.matchWord("fetch") {
		if !p.matchWord("first") {
			p.expectWord("next")
		}
		if !p.checkWord("row") && !p.checkWord("rows") {
			sel.Fetch = p.parseExpr()
		}
		if !p.matchWord("rows") {
			p.expectWord("row")
		}
		if !p.matchWord("only") {
			if p.check(token.WITH) {
				p.nextToken()
				p.expectWord("ties")
			}
		}
	}
}

// skipNamedWindows skips a WINDOW clause: name AS (spec) ("," name AS (spec))*.
func (p *Parser) skipNamedWindows() {
	for !p.failed() {
		p.parseIdent()
		p.expect(token.AS)
		p.skipParens()
		if !p.match(token.COMMA) {
			return
		}
	}
}

// parseSelectList parses the projections of a SELECT.
//
//	select_item → "*" | name "." "*" | expr [[AS] alias] | alias "=" expr
func (p *Parser) parseSelectList() []core.Expr {
	var items []core.Expr
	for !p.failed() {
		items = append(items, p.parseSelectItem())
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

func (p *Parser) parseSelectItem() core.Expr {
	start := p.token.Pos

	// T-SQL: SELECT alias = expr
	if p.dialect.AliasAssignment && p.check(token.IDENT) && p.checkPeek(token.EQ) {
		name := p.parseIdent()
		p.expect(token.EQ)
		expr := p.parseExpr()
		return &core.Alias{Expr: expr, Name: name, NodeInfo: p.info(start)}
	}
	if (p.check(token.STRING) || p.check(token.NSTRING)) && p.dialect.AliasAssignment && p.checkPeek(token.EQ) {
		name := core.Ident{Name: p.token.Literal, Quoted: true}
		p.nextToken()
		p.nextToken()
		expr := p.parseExpr()
		return &core.Alias{Expr: expr, Name: name, NodeInfo: p.info(start)}
	}

	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	if _, isStar := expr.(*core.Star); isStar {
		return expr
	}
	if name, ok := p.parseOptionalAlias(); ok {
		return &core.Alias{Expr: expr, Name: name, NodeInfo: p.info(start)}
	}
	return expr
}

// parseOptionalAlias parses [AS] alias. String literals are accepted as
// aliases.
func (p *Parser) parseOptionalAlias() (core.Ident, bool) {
	if p.match(token.AS) {
		if p.check(token.STRING) || p.check(token.NSTRING) {
			name := core.Ident{Name: p.token.Literal, Quoted: true}
			p.nextToken()
			return name, true
		}
		return p.parseIdent(), true
	}
	if p.canBeAlias(p.token) {
		return p.parseIdent(), true
	}
	if p.check(token.STRING) && p.dialect.AliasAssignment {
		name := core.Ident{Name: p.token.Literal, Quoted: true}
		p.nextToken()
		return name, true
	}
	return core.Ident{}, false
}

// parseGroupingList parses GROUP BY items, flattening ROLLUP, CUBE and
// GROUPING SETS into their member expressions.
func (p *Parser) parseGroupingList() []core.Expr {
	var out []core.Expr
	for !p.failed() {
		if p.checkWord("grouping") && p.checkPeekWord("sets") {
			p.nextToken()
			p.nextToken()
			out = append(out, p.parseParenExprs()...)
		} else if (p.checkWord("rollup") || p.checkWord("cube")) && p.checkPeek(token.LPAREN) {
			p.nextToken()
			out = append(out, p.parseParenExprs()...)
		} else if p.check(token.LPAREN) && p.checkPeek(token.RPAREN) {
			p.nextToken()
			p.nextToken()
		} else {
			out = append(out, p.parseExpr())
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	if p.check(token.WITH) && (p.checkPeekWord("rollup") || p.checkPeekWord("cube")) {
		p.nextToken()
		p.nextToken()
	}
	return out
}

// parseParenExprs parses "(" expr_list ")" with nested groups flattened.
func (p *Parser) parseParenExprs() []core.Expr {
	p.expect(token.LPAREN)
	var out []core.Expr
	for !p.failed() && !p.check(token.RPAREN) {
		if p.check(token.LPAREN) {
			out = append(out, p.parseParenExprs()...)
		} else {
			out = append(out, p.parseExpr())
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return out
}

// parseOrderList parses ORDER BY items.
//
//	order_item → expr [ASC|DESC] [NULLS (FIRST|LAST)]
func (p *Parser) parseOrderList() []core.OrderItem {
	var items []core.OrderItem
	for !p.failed() {
		item := core.OrderItem{Expr: p.parseExpr()}
		if p.match(token.DESC) {
			item.Desc = true
		} else {
			p.match(token.ASC)
		}
		if p.matchWord("nulls") {
			switch {
			case p.matchWord("first"):
				item.Nulls = "FIRST"
			case p.matchWord("last"):
				item.Nulls = "LAST"
			default:
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "FIRST or LAST"))
			}
		}
		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseExprList parses expr ("," expr)*.
func (p *Parser) parseExprList() []core.Expr {
	var out []core.Expr
	for !p.failed() {
		out = append(out, p.parseExpr())
		if !p.match(token.COMMA) {
			break
		}
	}
	return out
}
