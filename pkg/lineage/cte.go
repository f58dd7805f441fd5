package lineage

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
)

// cteEntry is one registered common table expression.
type cteEntry struct {
	name    string
	columns []core.Ident // explicit column list, renames outputs by position
	query   core.Query
}

// cteRegistry maps lower-cased CTE names to their definitions. It is built
// once per statement and visible from every nested scope.
type cteRegistry map[string]*cteEntry

// buildRegistry records the CTEs of the statement's WITH clause: the root
// query's own clause, or else the first one found depth-first. Only that
// clause is considered; a repeated name keeps the last definition.
func buildRegistry(stmt core.Statement) cteRegistry {
	reg := make(cteRegistry)
	with := rootWith(stmt)
	if with == nil {
		return reg
	}
	for _, cte := range with.CTEs {
		if cte.Query == nil {
			continue
		}
		reg[strings.ToLower(cte.Name.Name)] = &cteEntry{
			name:    cte.Name.Name,
			columns: cte.Columns,
			query:   cte.Query,
		}
	}
	return reg
}

func rootWith(stmt core.Statement) *core.With {
	if q := topQuery(stmt); q != nil && q.WithClause() != nil {
		return q.WithClause()
	}
	if w, ok := core.Find(stmt, core.KindWith).(*core.With); ok {
		return w
	}
	return nil
}

// lookup returns the CTE a single-part table name refers to.
func (r cteRegistry) lookup(name string) (*cteEntry, bool) {
	if strings.ContainsRune(name, '.') {
		return nil, false
	}
	e, ok := r[strings.ToLower(name)]
	return e, ok
}

// topQuery returns the first query body of stmt, depth-first.
func topQuery(stmt core.Statement) core.Query {
	if stmt == nil {
		return nil
	}
	if q, ok := core.Find(stmt, core.KindSelect, core.KindSetOp).(core.Query); ok {
		return q
	}
	return nil
}
