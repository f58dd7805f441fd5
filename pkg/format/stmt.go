package format

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

func (p *Printer) formatStatement(stmt core.Statement) {
	switch s := stmt.(type) {
	case *core.CreateView:
		p.formatCreateView(s)
	case *core.CreateTable:
		p.formatCreateTable(s)
	case core.Query:
		p.formatQuery(s)
	}
}

func (p *Printer) formatCreateView(v *core.CreateView) {
	if v.Alter {
		p.keyword("ALTER VIEW ")
	} else {
		p.kw(token.CREATE)
		switch {
		case v.OrReplace:
			p.keyword(" OR REPLACE")
		case v.OrAlter:
			p.keyword(" OR ALTER")
		}
		if v.Materialized {
			p.keyword(" MATERIALIZED")
		}
		p.keyword(" VIEW ")
	}
	p.idents(v.Name.Parts)
	if len(v.Columns) > 0 {
		p.space()
		p.identList(v.Columns)
	}
	if len(v.Options) > 0 {
		p.keyword(" WITH " + strings.Join(v.Options, ", "))
	}
	p.write(" AS ")
	p.formatQuery(v.Query)
}

func (p *Printer) formatCreateTable(t *core.CreateTable) {
	p.keyword("CREATE TABLE ")
	p.idents(t.Name.Parts)
	if t.Query != nil {
		p.write(" AS ")
		p.formatQuery(t.Query)
		return
	}
	p.write(" (")
	p.formatList(len(t.Columns), func(i int) {
		p.ident(t.Columns[i].Name)
		if t.Columns[i].Type != "" {
			p.space()
			p.write(t.Columns[i].Type)
		}
	}, ", ")
	p.write(")")
}

// ---------- Queries ----------

func (p *Printer) formatQuery(q core.Query) {
	switch q := q.(type) {
	case *core.Select:
		p.formatSelect(q)
	case *core.SetOp:
		p.formatSetOp(q)
	}
}

func (p *Printer) formatWith(w *core.With) {
	p.kw(token.WITH)
	if w.Recursive {
		p.keyword(" RECURSIVE")
	}
	p.space()
	p.formatList(len(w.CTEs), func(i int) { p.formatCTE(w.CTEs[i]) }, ", ")
}

func (p *Printer) formatCTE(cte *core.CTE) {
	p.ident(cte.Name)
	if len(cte.Columns) > 0 {
		p.space()
		p.identList(cte.Columns)
	}
	p.write(" AS (")
	p.formatQuery(cte.Query)
	p.write(")")
}

func (p *Printer) formatSelect(s *core.Select) {
	if s.With != nil {
		p.formatWith(s.With)
		p.space()
	}
	p.kw(token.SELECT)
	if s.Distinct {
		p.write(" ")
		p.kw(token.DISTINCT)
		if len(s.DistinctOn) > 0 {
			p.write(" ON (")
			p.exprList(s.DistinctOn)
			p.write(")")
		}
	}
	if s.Top != nil {
		p.keyword(" TOP ")
		if lit, ok := s.Top.Count.(*core.Literal); ok && lit.Type == core.LiteralNumber {
			p.write(lit.Value)
		} else {
			p.write("(")
			p.formatExpr(s.Top.Count)
			p.write(")")
		}
		if s.Top.Percent {
			p.keyword(" PERCENT")
		}
		if s.Top.WithTies {
			p.keyword(" WITH TIES")
		}
	}
	p.space()
	p.exprList(s.Columns)

	if s.From != nil && s.From.Source != nil {
		p.write(" FROM ")
		p.formatTableRef(s.From.Source)
		for _, j := range s.From.Joins {
			if j.Type != core.JoinComma {
				p.space()
			}
			p.formatJoin(j)
		}
	}
	if s.Where != nil {
		p.write(" WHERE ")
		p.formatExpr(s.Where)
	}
	if len(s.GroupBy) > 0 {
		p.write(" GROUP BY ")
		p.exprList(s.GroupBy)
	}
	if s.Having != nil {
		p.write(" HAVING ")
		p.formatExpr(s.Having)
	}
	if s.Qualify != nil {
		p.write(" QUALIFY ")
		p.formatExpr(s.Qualify)
	}
	p.formatTail(s.OrderBy, s.Limit, s.Offset)
	if s.Fetch != nil {
		p.write(" FETCH FIRST ")
		p.formatExpr(s.Fetch)
		p.write(" ROWS ONLY")
	}
}

func (p *Printer) formatTail(order []core.OrderItem, limit, offset core.Expr) {
	if len(order) > 0 {
		p.write(" ORDER BY ")
		p.orderList(order)
	}
	if limit != nil {
		p.write(" LIMIT ")
		p.formatExpr(limit)
	}
	if offset != nil {
		p.write(" OFFSET ")
		p.formatExpr(offset)
	}
}

func (p *Printer) orderList(items []core.OrderItem) {
	p.formatList(len(items), func(i int) {
		p.formatExpr(items[i].Expr)
		if items[i].Desc {
			p.write(" DESC")
		}
		if items[i].Nulls != "" {
			p.write(" NULLS " + items[i].Nulls)
		}
	}, ", ")
}

func (p *Printer) formatSetOp(s *core.SetOp) {
	if s.With != nil {
		p.formatWith(s.With)
		p.space()
	}
	p.formatSetOperand(s.Left, false)
	p.space()
	p.write(string(s.Op))
	if s.All {
		p.write(" ALL")
	}
	p.space()
	p.formatSetOperand(s.Right, true)
	p.formatTail(s.OrderBy, s.Limit, s.Offset)
}

// formatSetOperand parenthesizes operands that would otherwise change
// meaning: a right-hand set operation, or a SELECT with its own ORDER BY
// or LIMIT.
func (p *Printer) formatSetOperand(q core.Query, right bool) {
	wrap := false
	switch q := q.(type) {
	case *core.SetOp:
		wrap = right || q.With != nil
	case *core.Select:
		wrap = len(q.OrderBy) > 0 || q.Limit != nil || q.Offset != nil || q.With != nil
	}
	if wrap {
		p.write("(")
	}
	p.formatQuery(q)
	if wrap {
		p.write(")")
	}
}

// ---------- FROM ----------

func (p *Printer) formatTableRef(ref core.TableRef) {
	switch t := ref.(type) {
	case *core.Table:
		p.idents(t.Name.Parts)
		if t.Alias.Name != "" {
			p.write(" AS ")
			p.ident(t.Alias)
		}
		if len(t.Hints) > 0 {
			p.write(" WITH (" + strings.Join(t.Hints, ", ") + ")")
		}
	case *core.Subquery:
		if t.Lateral {
			p.write("LATERAL ")
		}
		p.write("(")
		p.formatQuery(t.Query)
		p.write(")")
		if t.Alias.Name != "" {
			p.write(" AS ")
			p.ident(t.Alias)
			if len(t.Columns) > 0 {
				p.identList(t.Columns)
			}
		}
	case *core.TableFunction:
		p.formatFunction(t.Func)
		if t.Alias.Name != "" {
			p.write(" AS ")
			p.ident(t.Alias)
		}
	}
}

func (p *Printer) formatJoin(j *core.Join) {
	switch j.Type {
	case core.JoinComma:
		p.write(", ")
		p.formatTableRef(j.Right)
		return
	case core.JoinCrossApply, core.JoinOuterApply:
		p.write(string(j.Type) + " ")
		p.formatTableRef(j.Right)
		return
	}
	if j.Natural {
		p.write("NATURAL ")
	}
	p.write(string(j.Type))
	if j.Outer {
		p.write(" OUTER")
	}
	p.write(" JOIN ")
	p.formatTableRef(j.Right)
	p.formatJoinCondition(j)
}

func (p *Printer) formatJoinCondition(j *core.Join) {
	switch {
	case j.On != nil:
		p.write(" ON ")
		p.formatExpr(j.On)
	case len(j.Using) > 0:
		p.write(" USING ")
		p.identList(j.Using)
	}
}

// JoinCondition renders a join's ON expression, or "USING (...)", or ""
// when the join has neither.
func JoinCondition(j *core.Join, d *dialect.Dialect) string {
	switch {
	case j == nil:
		return ""
	case j.On != nil:
		return Render(j.On, d)
	case len(j.Using) > 0:
		p := newPrinter(d)
		p.write("USING ")
		p.identList(j.Using)
		return p.String()
	}
	return ""
}
