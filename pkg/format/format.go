package format

import (
	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
)

// Render returns node as compact single-line SQL in the dialect's quoting.
// Keywords are upper case; function names keep their written case.
func Render(node core.Node, d *dialect.Dialect) string {
	if node == nil {
		return ""
	}
	p := newPrinter(d)
	p.formatNode(node)
	return p.String()
}

// Name renders a dotted object name.
func Name(name core.ObjectName, d *dialect.Dialect) string {
	p := newPrinter(d)
	p.idents(name.Parts)
	return p.String()
}

func (p *Printer) formatNode(node core.Node) {
	switch n := node.(type) {
	case core.Statement:
		p.formatStatement(n)
	case core.TableRef:
		p.formatTableRef(n)
	case core.Expr:
		p.formatExpr(n)
	case *core.Join:
		p.formatJoin(n)
	case *core.With:
		p.formatWith(n)
	case *core.CTE:
		p.formatCTE(n)
	}
}
