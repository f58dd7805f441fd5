package lineage

import (
	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/format"
)

// analyze builds the metadata of the top-level query. For a set operation
// the metadata of every branch is concatenated.
func (a *analysis) analyze(q core.Query) *SelectMetadata {
	outs := a.queryOutputs(q, nil, resolveCtx{argIndex: -1})

	meta := &SelectMetadata{
		Columns: make([]Column, 0, len(outs)),
		Tables:  []Table{},
		Joins:   []Join{},
		Filters: []string{},
	}
	for _, o := range outs {
		meta.Columns = append(meta.Columns, a.column(o))
	}

	switch q := q.(type) {
	case *core.Select:
		a.collect(q, meta)
	case *core.SetOp:
		for _, branch := range q.Branches() {
			a.collect(branch, meta)
		}
	}
	return meta
}

func (a *analysis) column(o output) Column {
	c := Column{
		Name:       o.name,
		Expression: format.Render(o.expr, a.dialect),
		Lineage:    o.refs.Refs(),
	}
	for _, r := range c.Lineage {
		if r.Table != "" {
			c.BaseTable = r.Table
			break
		}
	}
	return c
}

// collect appends the tables, joins and filter of one block, without
// descending into derived tables or CTE bodies.
func (a *analysis) collect(sel *core.Select, meta *SelectMetadata) {
	if sel.From != nil {
		for _, ref := range sel.From.Sources() {
			if t, ok := ref.(*core.Table); ok {
				meta.Tables = append(meta.Tables, Table{Name: t.QualifiedName(), Alias: t.AliasOrName()})
			}
		}
		for _, j := range sel.From.Joins {
			meta.Joins = append(meta.Joins, a.join(j))
		}
	}
	if sel.Where != nil {
		meta.Filters = append(meta.Filters, format.Render(sel.Where, a.dialect))
	}
}

func (a *analysis) join(j *core.Join) Join {
	kind := string(j.Type)
	if j.Type == core.JoinComma {
		kind = string(core.JoinCross)
	}
	if j.Natural {
		kind = "NATURAL " + kind
	}
	out := Join{Type: kind, Table: format.Render(j.Right, a.dialect)}
	if cond := format.JoinCondition(j, a.dialect); cond != "" {
		out.Condition = &cond
	}
	return out
}
