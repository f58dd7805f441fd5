// Package format renders syntax tree nodes back to SQL text.
package format

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/token"
)

// Printer accumulates compact, single-line SQL.
type Printer struct {
	dialect *dialect.Dialect
	output  *bytes.Buffer
}

func newPrinter(d *dialect.Dialect) *Printer {
	if d == nil {
		d = dialect.ANSI
	}
	return &Printer{
		dialect: d,
		output:  &bytes.Buffer{},
	}
}

// String returns the rendered text.
func (p *Printer) String() string {
	return p.output.String()
}

func (p *Printer) write(s string) {
	p.output.WriteString(s)
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

func (p *Printer) keyword(s string) {
	p.write(strings.ToUpper(s))
}

// kw prints keywords from their token types, separated by spaces.
func (p *Printer) kw(tokens ...token.TokenType) {
	for i, t := range tokens {
		if i > 0 {
			p.space()
		}
		p.write(t.String())
	}
}

// ident prints an identifier, quoting it when it was quoted in the source
// or when the dialect requires it.
func (p *Printer) ident(id core.Ident) {
	switch {
	case id.Name == "" && !id.Quoted:
		// db..table
	case strings.HasPrefix(id.Name, "@") && !id.Quoted:
		p.write(id.Name)
	default:
		p.write(p.dialect.QuoteIdent(id.Name, id.Quoted))
	}
}

// idents prints a dotted identifier chain.
func (p *Printer) idents(parts []core.Ident) {
	for i, part := range parts {
		if i > 0 {
			p.write(".")
		}
		p.ident(part)
	}
}

// formatList prints count items separated by sep.
func (p *Printer) formatList(count int, format func(i int), sep string) {
	for i := 0; i < count; i++ {
		if i > 0 {
			p.write(sep)
		}
		format(i)
	}
}

func (p *Printer) exprList(exprs []core.Expr) {
	p.formatList(len(exprs), func(i int) { p.formatExpr(exprs[i]) }, ", ")
}

func (p *Printer) identList(ids []core.Ident) {
	p.write("(")
	p.formatList(len(ids), func(i int) { p.ident(ids[i]) }, ", ")
	p.write(")")
}
