package lineage

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/format"
)

// resolveCtx is the immutable context threaded through resolution. Each
// method returns a modified copy.
type resolveCtx struct {
	scope     *aliasScope
	parent    core.Node // syntactic parent of the node being resolved
	argIndex  int       // position among parent's arguments, -1 otherwise
	depth     int       // query nesting depth
	expanding []string  // CTEs currently being expanded, lower-cased
}

func (c resolveCtx) child(parent core.Node, argIndex int) resolveCtx {
	c.parent = parent
	c.argIndex = argIndex
	return c
}

func (c resolveCtx) deeper() resolveCtx {
	c.depth++
	return c
}

func (c resolveCtx) withScope(s *aliasScope) resolveCtx {
	c.scope = s
	c.parent = nil
	c.argIndex = -1
	return c
}

func (c resolveCtx) enterCTE(name string) resolveCtx {
	stack := make([]string, len(c.expanding), len(c.expanding)+1)
	copy(stack, c.expanding)
	c.expanding = append(stack, strings.ToLower(name))
	return c
}

func (c resolveCtx) isExpanding(name string) bool {
	lower := strings.ToLower(name)
	for _, n := range c.expanding {
		if n == lower {
			return true
		}
	}
	return false
}

// output is one resolved projection of a query block.
type output struct {
	name  string
	expr  core.Expr // projection expression without its alias
	refs  RefSet
	star  *core.Star  // set for a * that could not be expanded
	scope *aliasScope // scope the projection was resolved in
}

// analysis holds the per-statement state of one Process call.
type analysis struct {
	dialect  *dialect.Dialect
	catalog  Catalog
	maxDepth int
	logger   *slog.Logger
	ctes     cteRegistry

	// memo caches the outputs of queries analyzed without an outer scope.
	memo        map[core.NodeID][]output
	diags       diagnostics
	truncations int // guard hits; results computed across one are not cached
}

func newAnalysis(d *dialect.Dialect, catalog Catalog, maxDepth int, logger *slog.Logger, ctes cteRegistry) *analysis {
	return &analysis{
		dialect:  d,
		catalog:  catalog,
		maxDepth: maxDepth,
		logger:   logger,
		ctes:     ctes,
		memo:     make(map[core.NodeID][]output),
	}
}

// queryOutputs resolves every projection of q. For a set operation the
// leftmost branch names the outputs and every branch contributes lineage by
// position.
func (a *analysis) queryOutputs(q core.Query, parent *aliasScope, ctx resolveCtx) []output {
	cacheable := parent == nil
	if cacheable {
		if outs, ok := a.memo[q.ID()]; ok {
			return outs
		}
	}
	before := a.truncations

	var outs []output
	switch q := q.(type) {
	case *core.Select:
		outs = a.selectOutputs(q, parent, ctx)
	case *core.SetOp:
		for i, branch := range q.Branches() {
			bo := a.selectOutputs(branch, parent, ctx)
			if i == 0 {
				outs = make([]output, len(bo))
				for j, o := range bo {
					o.refs = o.refs.Clone()
					outs[j] = o
				}
				continue
			}
			for j := 0; j < len(bo) && j < len(outs); j++ {
				outs[j].refs.AddSet(bo[j].refs)
			}
		}
	}

	if cacheable && a.truncations == before {
		a.memo[q.ID()] = outs
	}
	return outs
}

func (a *analysis) selectOutputs(sel *core.Select, parent *aliasScope, ctx resolveCtx) []output {
	scope := newScope(sel, parent)
	ctx = ctx.withScope(scope)

	outs := make([]output, 0, len(sel.Columns))
	for _, proj := range sel.Columns {
		switch p := proj.(type) {
		case *core.Star:
			if expanded, ok := a.expandStar(p, ctx); ok {
				outs = append(outs, expanded...)
				continue
			}
			outs = append(outs, output{
				name:  format.Render(p, a.dialect),
				expr:  p,
				refs:  a.starRefs(p, ctx),
				star:  p,
				scope: scope,
			})
		case *core.Alias:
			outs = append(outs, output{
				name:  p.Name.Name,
				expr:  p.Expr,
				refs:  a.resolveExpr(p.Expr, ctx),
				scope: scope,
			})
		case *core.Column:
			outs = append(outs, output{
				name:  p.Name.Name,
				expr:  p,
				refs:  a.resolveExpr(p, ctx),
				scope: scope,
			})
		default:
			outs = append(outs, output{
				name:  format.Render(p, a.dialect),
				expr:  p,
				refs:  a.resolveExpr(p, ctx),
				scope: scope,
			})
		}
	}
	return outs
}

// resolveExpr returns the base columns an expression depends on.
func (a *analysis) resolveExpr(n core.Node, ctx resolveCtx) RefSet {
	var out RefSet
	switch n := n.(type) {
	case nil:
	case *core.Column:
		if len(n.Qualifier) > 0 {
			return a.resolveQualified(n.TableName(), n.Name.Name, ctx)
		}
		if fn, ok := ctx.parent.(*core.Function); ok && isDatePartArg(fn, ctx.argIndex) {
			return out
		}
		return a.resolveUnqualified(n.Name.Name, ctx)
	case *core.Identifier, *core.Literal:
	case *core.Star:
		return a.starRefs(n, ctx)
	case *core.Select:
		return a.subqueryLineage(n, ctx)
	case *core.SetOp:
		return a.subqueryLineage(n, ctx)
	case *core.Function:
		for i, child := range core.Children(n) {
			idx := -1
			if i < len(n.Args) {
				idx = i
			}
			out.AddSet(a.resolveExpr(child, ctx.child(n, idx)))
		}
	default:
		for _, child := range core.Children(n) {
			out.AddSet(a.resolveExpr(child, ctx.child(n, -1)))
		}
	}
	return out
}

// subqueryLineage analyzes an expression subquery with the current scope as
// its parent and unions the lineage of its projections.
func (a *analysis) subqueryLineage(q core.Query, ctx resolveCtx) RefSet {
	var out RefSet
	next := ctx.deeper()
	if next.depth > a.maxDepth {
		a.diags.depthExceeded("", "", a.maxDepth)
		a.truncations++
		return out
	}
	for _, o := range a.queryOutputs(q, ctx.scope, next) {
		out.AddSet(o.refs)
	}
	return out
}

// resolveQualified resolves T.C. A binding of the current block wins over a
// CTE of the same name, and a CTE wins over the enclosing blocks.
func (a *analysis) resolveQualified(qual, col string, ctx resolveCtx) RefSet {
	if b, ok := ctx.scope.lookup(qual); ok {
		return a.resolveBinding(b, qual, col, ctx)
	}
	if _, ok := a.ctes.lookup(qual); ok {
		return a.resolveCTE(qual, qual, col, ctx)
	}
	if ctx.scope != nil {
		for s := ctx.scope.parent; s != nil; s = s.parent {
			if b, ok := s.lookup(qual); ok {
				return a.resolveBinding(b, qual, col, ctx.withScope(s))
			}
		}
	}

	a.diags.unresolved(qual, col)
	if phys := ctx.scope.physicalTables(a.ctes); len(phys) == 1 {
		return NewRefSet(Ref{Table: phys[0].table, Column: col})
	}
	return NewRefSet(Ref{Table: qual, Column: col})
}

func (a *analysis) resolveBinding(b *binding, qual, col string, ctx resolveCtx) RefSet {
	switch b.kind {
	case targetSubquery:
		if refs, ok := a.lookupColumn(b.query, b.columns, col, ctx.deeper()); ok {
			return refs
		}
		return NewRefSet(Ref{Table: qual, Column: col})
	case targetFunction:
		if b.fn == nil {
			return RefSet{}
		}
		return a.resolveExpr(b.fn, ctx.child(nil, -1))
	default:
		if _, ok := a.ctes.lookup(b.table); ok {
			return a.resolveCTE(b.table, qual, col, ctx)
		}
		return NewRefSet(Ref{Table: b.table, Column: col})
	}
}

// resolveCTE looks col up in the named CTE, falling back to qual.col.
func (a *analysis) resolveCTE(name, qual, col string, ctx resolveCtx) RefSet {
	entry, _ := a.ctes.lookup(name)
	if ctx.isExpanding(entry.name) {
		a.logger.Debug("cte cycle", slog.String("cte", entry.name), slog.String("column", col))
		a.diags.cyclic(entry.name, col)
		a.truncations++
		return RefSet{}
	}
	if refs, ok := a.lookupColumn(entry.query, entry.columns, col, ctx.enterCTE(entry.name).deeper()); ok {
		return refs
	}
	return NewRefSet(Ref{Table: qual, Column: col})
}

// resolveUnqualified attributes C to every source of the block that can
// provide it.
func (a *analysis) resolveUnqualified(col string, ctx resolveCtx) RefSet {
	var (
		out     RefSet
		sources []string
	)
	scope := ctx.scope

	all := scope.physicalTables(a.ctes)
	phys := a.narrow(all, col)
	for _, b := range phys {
		out.Add(Ref{Table: b.table, Column: col})
		sources = append(sources, b.table)
	}

	if scope != nil {
		for _, b := range scope.bindings {
			switch b.kind {
			case targetTable:
				entry, ok := a.ctes.lookup(b.table)
				if !ok {
					continue
				}
				if ctx.isExpanding(entry.name) {
					a.diags.cyclic(entry.name, col)
					a.truncations++
					continue
				}
				if refs, found := a.lookupColumn(entry.query, entry.columns, col, ctx.enterCTE(entry.name).deeper()); found {
					out.AddSet(refs)
					sources = append(sources, b.alias)
				}
			case targetSubquery:
				if refs, found := a.lookupColumn(b.query, b.columns, col, ctx.deeper()); found {
					out.AddSet(refs)
					sources = append(sources, b.alias)
				}
			}
		}
	}

	if len(sources) == 0 {
		// The catalog ruled every table out; keep them rather than lose the column.
		for _, b := range all {
			out.Add(Ref{Table: b.table, Column: col})
			sources = append(sources, b.table)
		}
	}
	if len(sources) == 0 {
		if scope != nil && scope.parent != nil {
			if refs := a.resolveUnqualified(col, ctx.withScope(scope.parent)); !refs.isBareFallback() {
				return refs
			}
		}
		return NewRefSet(Ref{Column: col})
	}
	if len(sources) > 1 {
		a.diags.ambiguous(col, sources)
	}
	return out
}

// narrow drops the tables that do not have col, provided the catalog knows
// every one of them.
func (a *analysis) narrow(tables []*binding, col string) []*binding {
	if a.catalog == nil || len(tables) < 2 {
		return tables
	}
	var keep []*binding
	for _, b := range tables {
		cols, ok := a.catalog.Columns(b.table)
		if !ok {
			return tables
		}
		if hasColumn(cols, col) {
			keep = append(keep, b)
		}
	}
	return keep
}

// lookupColumn finds the lineage of output col of q. renames is the
// explicit column list of a CTE or derived table.
func (a *analysis) lookupColumn(q core.Query, renames []core.Ident, col string, ctx resolveCtx) (RefSet, bool) {
	if ctx.depth > a.maxDepth {
		a.diags.depthExceeded("", col, a.maxDepth)
		a.truncations++
		return RefSet{}, false
	}
	outs := a.queryOutputs(q, nil, ctx)

	for i, r := range renames {
		if strings.EqualFold(r.Name, col) && i < len(outs) {
			return outs[i].refs.Clone(), true
		}
	}
	if len(renames) > len(outs) {
		renames = renames[:len(outs)]
	}
	named := outs[len(renames):]

	if so, ok := q.(*core.SetOp); ok && len(renames) == 0 && a.hasStarBranch(so, ctx) {
		var union RefSet
		found := false
		for _, branch := range so.Branches() {
			if refs, ok := a.lookupColumn(branch, nil, col, ctx); ok {
				union.AddSet(refs)
				found = true
			}
		}
		return union, found
	}

	for _, o := range named {
		if o.star == nil && strings.EqualFold(o.name, col) {
			return o.refs.Clone(), true
		}
	}
	for _, o := range named {
		if o.star == nil {
			continue
		}
		starCtx := ctx.withScope(o.scope)
		var refs RefSet
		if qual := o.star.TableName(); qual != "" {
			refs = a.resolveQualified(qual, col, starCtx)
		} else {
			refs = a.resolveUnqualified(col, starCtx)
		}
		if refs.Len() > 0 && !refs.isBareFallback() {
			return refs, true
		}
	}
	return RefSet{}, false
}

func (a *analysis) hasStarBranch(so *core.SetOp, ctx resolveCtx) bool {
	for _, branch := range so.Branches() {
		for _, o := range a.queryOutputs(branch, nil, ctx) {
			if o.star != nil {
				return true
			}
		}
	}
	return false
}

// expandStar lists the columns behind * or T.* when every source involved
// has known columns.
func (a *analysis) expandStar(star *core.Star, ctx resolveCtx) ([]output, bool) {
	var bindings []*binding
	if qual := star.TableName(); qual != "" {
		b, ok := ctx.scope.lookup(qual)
		if !ok {
			return nil, false
		}
		bindings = []*binding{b}
	} else {
		if ctx.scope == nil || len(ctx.scope.bindings) == 0 {
			return nil, false
		}
		bindings = ctx.scope.bindings
	}

	var outs []output
	for _, b := range bindings {
		cols, ok := a.bindingColumns(b, ctx)
		if !ok {
			return nil, false
		}
		for _, c := range cols {
			c.expr = &core.Column{Qualifier: star.Qualifier, Name: core.Ident{Name: c.name}}
			c.scope = ctx.scope
			outs = append(outs, c)
		}
	}
	return outs, true
}

// bindingColumns returns the named columns a FROM item exposes.
func (a *analysis) bindingColumns(b *binding, ctx resolveCtx) ([]output, bool) {
	switch b.kind {
	case targetSubquery:
		return a.derivedColumns(b.query, b.columns, ctx.deeper())
	case targetTable:
		if entry, ok := a.ctes.lookup(b.table); ok {
			if ctx.isExpanding(entry.name) {
				return nil, false
			}
			return a.derivedColumns(entry.query, entry.columns, ctx.enterCTE(entry.name).deeper())
		}
		if a.catalog == nil {
			return nil, false
		}
		cols, ok := a.catalog.Columns(b.table)
		if !ok {
			return nil, false
		}
		outs := make([]output, len(cols))
		for i, c := range cols {
			outs[i] = output{name: c, refs: NewRefSet(Ref{Table: b.table, Column: c})}
		}
		return outs, true
	}
	return nil, false
}

func (a *analysis) derivedColumns(q core.Query, renames []core.Ident, ctx resolveCtx) ([]output, bool) {
	if ctx.depth > a.maxDepth {
		return nil, false
	}
	outs := a.queryOutputs(q, nil, ctx)
	cols := make([]output, len(outs))
	for i, o := range outs {
		if o.star != nil {
			return nil, false
		}
		name := o.name
		if i < len(renames) {
			name = renames[i].Name
		}
		cols[i] = output{name: name, refs: o.refs.Clone()}
	}
	return cols, true
}

// starRefs is the lineage of a * that could not be expanded: T.* for each
// physical table, or the union of a derived source's outputs.
func (a *analysis) starRefs(star *core.Star, ctx resolveCtx) RefSet {
	var out RefSet
	if qual := star.TableName(); qual != "" {
		b, ok := ctx.scope.lookup(qual)
		if !ok {
			if _, isCTE := a.ctes.lookup(qual); !isCTE {
				return NewRefSet(Ref{Table: qual, Column: "*"})
			}
			b = &binding{alias: qual, kind: targetTable, table: qual}
		}
		return a.bindingStarRefs(b, ctx)
	}
	if ctx.scope == nil {
		return out
	}
	for _, b := range ctx.scope.bindings {
		out.AddSet(a.bindingStarRefs(b, ctx))
	}
	return out
}

func (a *analysis) bindingStarRefs(b *binding, ctx resolveCtx) RefSet {
	var out RefSet
	switch b.kind {
	case targetSubquery:
		out = a.unionOutputs(b.query, ctx.deeper())
	case targetFunction:
		if b.fn != nil {
			out = a.resolveExpr(b.fn, ctx.child(nil, -1))
		}
	default:
		entry, ok := a.ctes.lookup(b.table)
		if !ok {
			return NewRefSet(Ref{Table: b.table, Column: "*"})
		}
		if ctx.isExpanding(entry.name) {
			a.diags.cyclic(entry.name, "*")
			a.truncations++
			return out
		}
		out = a.unionOutputs(entry.query, ctx.enterCTE(entry.name).deeper())
	}
	return out
}

func (a *analysis) unionOutputs(q core.Query, ctx resolveCtx) RefSet {
	var out RefSet
	if ctx.depth > a.maxDepth {
		a.diags.depthExceeded("", "*", a.maxDepth)
		a.truncations++
		return out
	}
	for _, o := range a.queryOutputs(q, nil, ctx) {
		out.AddSet(o.refs)
	}
	return out
}
