package lineage

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
)

// targetKind is what an alias in a FROM clause is bound to.
type targetKind uint8

const (
	// targetTable is a physical table, or a CTE referenced by name.
	targetTable targetKind = iota
	// targetSubquery is a derived table.
	targetSubquery
	// targetFunction is a table-valued function.
	targetFunction
)

// binding is one FROM item of a SELECT block.
type binding struct {
	alias   string
	kind    targetKind
	table   string       // qualified table name as written (targetTable)
	query   core.Query   // derived table body (targetSubquery)
	columns []core.Ident // derived column list (targetSubquery)
	fn      *core.Function
}

// aliasScope binds the names usable in one SELECT block. Whether a table
// name refers to a CTE is decided at resolution time.
type aliasScope struct {
	bindings []*binding
	index    map[string]*binding // lower-cased alias, last binding wins
	parent   *aliasScope         // enclosing block, for expression subqueries only
}

// newScope binds sel's own FROM and JOIN items. Unaliased subqueries are
// kept for unqualified lookups but cannot be addressed by name.
func newScope(sel *core.Select, parent *aliasScope) *aliasScope {
	s := &aliasScope{
		index:  make(map[string]*binding),
		parent: parent,
	}
	if sel == nil || sel.From == nil {
		return s
	}
	for _, ref := range sel.From.Sources() {
		switch t := ref.(type) {
		case *core.Table:
			b := &binding{alias: t.AliasOrName(), kind: targetTable, table: t.QualifiedName()}
			s.add(b)
			if t.Alias.Name == "" && len(t.Name.Parts) > 1 {
				s.index[strings.ToLower(b.table)] = b
			}
		case *core.Subquery:
			s.add(&binding{alias: t.Alias.Name, kind: targetSubquery, query: t.Query, columns: t.Columns})
		case *core.TableFunction:
			alias := t.Alias.Name
			if alias == "" && t.Func != nil {
				alias = t.Func.Name
			}
			s.add(&binding{alias: alias, kind: targetFunction, fn: t.Func})
		}
	}
	return s
}

func (s *aliasScope) add(b *binding) {
	s.bindings = append(s.bindings, b)
	if b.alias != "" {
		s.index[strings.ToLower(b.alias)] = b
	}
}

// lookup finds a binding of this block by alias or qualified name.
func (s *aliasScope) lookup(name string) (*binding, bool) {
	if s == nil {
		return nil, false
	}
	b, ok := s.index[strings.ToLower(name)]
	return b, ok
}

// physicalTables returns the table bindings that do not name a CTE.
func (s *aliasScope) physicalTables(ctes cteRegistry) []*binding {
	if s == nil {
		return nil
	}
	var out []*binding
	for _, b := range s.bindings {
		if b.kind != targetTable {
			continue
		}
		if _, isCTE := ctes.lookup(b.table); isCTE {
			continue
		}
		out = append(out, b)
	}
	return out
}
