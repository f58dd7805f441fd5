package format

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

func (p *Printer) formatExpr(e core.Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *core.Literal:
		p.formatLiteral(expr)
	case *core.Column:
		p.idents(expr.Qualifier)
		if len(expr.Qualifier) > 0 {
			p.write(".")
		}
		p.ident(expr.Name)
	case *core.Star:
		if len(expr.Qualifier) > 0 {
			p.idents(expr.Qualifier)
			p.write(".")
		}
		p.write("*")
	case *core.Identifier:
		p.write(expr.Name)
	case *core.Alias:
		p.formatExpr(expr.Expr)
		p.write(" AS ")
		p.ident(expr.Name)
	case *core.Function:
		p.formatFunction(expr)
	case *core.Binary:
		p.formatExpr(expr.Left)
		p.space()
		p.kw(expr.Op)
		p.space()
		p.formatExpr(expr.Right)
	case *core.Unary:
		p.kw(expr.Op)
		if expr.Op == token.NOT {
			p.space()
		}
		p.formatExpr(expr.Expr)
	case *core.Paren:
		p.write("(")
		p.formatExpr(expr.Expr)
		p.write(")")
	case *core.Case:
		p.formatCase(expr)
	case *core.Cast:
		p.formatCast(expr)
	case *core.In:
		p.formatExpr(expr.Expr)
		p.not(expr.Not)
		p.write(" IN (")
		if expr.Query != nil {
			p.formatQuery(expr.Query)
		} else {
			p.exprList(expr.Values)
		}
		p.write(")")
	case *core.Between:
		p.formatExpr(expr.Expr)
		p.not(expr.Not)
		p.write(" BETWEEN ")
		p.formatExpr(expr.Low)
		p.write(" AND ")
		p.formatExpr(expr.High)
	case *core.Like:
		p.formatExpr(expr.Expr)
		p.not(expr.Not)
		p.space()
		p.kw(expr.Op)
		p.space()
		p.formatExpr(expr.Pattern)
		if expr.Escape != nil {
			p.write(" ESCAPE ")
			p.formatExpr(expr.Escape)
		}
	case *core.Is:
		p.formatExpr(expr.Expr)
		p.write(" IS ")
		if expr.Not {
			p.write("NOT ")
		}
		p.write(expr.Value)
	case *core.Exists:
		p.write("EXISTS (")
		p.formatQuery(expr.Query)
		p.write(")")
	case *core.SubqueryExpr:
		p.write("(")
		p.formatQuery(expr.Query)
		p.write(")")
	case *core.Interval:
		p.write("INTERVAL ")
		p.formatExpr(expr.Value)
		if expr.Unit != nil {
			p.space()
			p.write(expr.Unit.Name)
		}
	case *core.Extract:
		p.write("EXTRACT(")
		if expr.Field != nil {
			p.write(expr.Field.Name)
		}
		p.write(" FROM ")
		p.formatExpr(expr.From)
		p.write(")")
	}
}

func (p *Printer) not(not bool) {
	if not {
		p.write(" NOT")
	}
}

func (p *Printer) formatLiteral(lit *core.Literal) {
	switch lit.Type {
	case core.LiteralString:
		if lit.TypeName != "" {
			p.write(lit.TypeName + " ")
		}
		if lit.National {
			p.write("N")
		}
		p.write("'" + strings.ReplaceAll(lit.Value, "'", "''") + "'")
	case core.LiteralBool, core.LiteralNull:
		p.keyword(lit.Value)
	default:
		p.write(lit.Value)
	}
}

func (p *Printer) formatFunction(fn *core.Function) {
	if fn == nil {
		return
	}
	p.write(fn.Name)
	if fn.NoParens {
		return
	}
	p.write("(")
	switch {
	case fn.Star:
		p.write("*")
	default:
		if fn.Distinct {
			p.write("DISTINCT ")
		}
		p.exprList(fn.Args)
		if len(fn.OrderBy) > 0 {
			p.write(" ORDER BY ")
			p.orderList(fn.OrderBy)
		}
	}
	p.write(")")
	if len(fn.WithinGroup) > 0 {
		p.write(" WITHIN GROUP (ORDER BY ")
		p.orderList(fn.WithinGroup)
		p.write(")")
	}
	if fn.Filter != nil {
		p.write(" FILTER (WHERE ")
		p.formatExpr(fn.Filter)
		p.write(")")
	}
	if fn.Over != nil {
		p.write(" OVER ")
		p.formatWindow(fn.Over)
	}
}

func (p *Printer) formatWindow(w *core.WindowSpec) {
	if w.Name != "" && len(w.PartitionBy) == 0 && len(w.OrderBy) == 0 && w.Frame == nil {
		p.write(w.Name)
		return
	}
	var parts []string
	if w.Name != "" {
		parts = append(parts, w.Name)
	}
	if len(w.PartitionBy) > 0 {
		sub := newPrinter(p.dialect)
		sub.exprList(w.PartitionBy)
		parts = append(parts, "PARTITION BY "+sub.String())
	}
	if len(w.OrderBy) > 0 {
		sub := newPrinter(p.dialect)
		sub.orderList(w.OrderBy)
		parts = append(parts, "ORDER BY "+sub.String())
	}
	if w.Frame != nil {
		sub := newPrinter(p.dialect)
		sub.write(w.Frame.Unit + " ")
		if w.Frame.End != nil {
			sub.write("BETWEEN ")
			sub.frameBound(w.Frame.Start)
			sub.write(" AND ")
			sub.frameBound(*w.Frame.End)
		} else {
			sub.frameBound(w.Frame.Start)
		}
		parts = append(parts, sub.String())
	}
	p.write("(" + strings.Join(parts, " ") + ")")
}

func (p *Printer) frameBound(b core.FrameBound) {
	if b.Offset != nil {
		p.formatExpr(b.Offset)
		p.space()
	}
	p.write(b.Kind)
}

func (p *Printer) formatCase(c *core.Case) {
	p.kw(token.CASE)
	if c.Operand != nil {
		p.space()
		p.formatExpr(c.Operand)
	}
	for _, w := range c.Whens {
		p.write(" WHEN ")
		p.formatExpr(w.Cond)
		p.write(" THEN ")
		p.formatExpr(w.Result)
	}
	if c.Else != nil {
		p.write(" ELSE ")
		p.formatExpr(c.Else)
	}
	p.write(" END")
}

func (p *Printer) formatCast(c *core.Cast) {
	switch c.Form {
	case core.CastDoubleColon:
		p.formatExpr(c.Expr)
		p.write("::" + c.Type)
	case core.CastConvertValueFirst:
		p.write("CONVERT(")
		p.formatExpr(c.Expr)
		p.write(", " + c.Type + ")")
	case core.CastConvertUsing:
		p.write("CONVERT(")
		p.formatExpr(c.Expr)
		p.write(" USING " + c.Type + ")")
	case core.CastConvert, core.CastTryConvert:
		if c.Form == core.CastTryConvert {
			p.write("TRY_")
		}
		p.write("CONVERT(" + c.Type + ", ")
		p.formatExpr(c.Expr)
		if c.Style != nil {
			p.write(", ")
			p.formatExpr(c.Style)
		}
		p.write(")")
	default:
		if c.Form == core.CastTry {
			p.write("TRY_")
		}
		p.write("CAST(")
		p.formatExpr(c.Expr)
		p.write(" AS " + c.Type + ")")
	}
}
