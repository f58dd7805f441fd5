package core

// ---------- Statements ----------

// CreateView is CREATE [OR REPLACE | OR ALTER] [MATERIALIZED] VIEW, or ALTER VIEW.
type CreateView struct {
	NodeInfo
	OrReplace    bool
	OrAlter      bool
	Alter        bool
	Materialized bool
	Name         ObjectName
	Columns      []Ident
	Options      []string // WITH SCHEMABINDING, ...
	Query        Query
}

// Kind implements Node.
func (*CreateView) Kind() Kind { return KindCreateView }
func (*CreateView) stmtNode()  {}

// ColumnDef is one column of CREATE TABLE (...).
type ColumnDef struct {
	Name Ident
	Type string
}

// CreateTable is CREATE TABLE name (columns) or CREATE TABLE name AS query.
// Query is nil for the column-list form.
type CreateTable struct {
	NodeInfo
	Name    ObjectName
	Columns []ColumnDef
	Query   Query
}

// Kind implements Node.
func (*CreateTable) Kind() Kind { return KindCreateTable }
func (*CreateTable) stmtNode()  {}

// ---------- Queries ----------

// Top is the T-SQL TOP clause.
type Top struct {
	Count    Expr
	Percent  bool
	WithTies bool
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr  Expr
	Desc  bool
	Nulls string // "", "FIRST" or "LAST"
}

// Select is a single SELECT block.
type Select struct {
	NodeInfo
	With       *With
	Distinct   bool
	DistinctOn []Expr
	Top        *Top
	Columns    []Expr // projections; aliased items are *Alias
	From       *From
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	Qualify    Expr
	OrderBy    []OrderItem
	Limit      Expr
	Offset     Expr
	Fetch      Expr
}

// Kind implements Node.
func (*Select) Kind() Kind { return KindSelect }
func (*Select) stmtNode()  {}
func (*Select) queryNode() {}

// WithClause implements Query.
func (s *Select) WithClause() *With { return s.With }

// SetOpType is the operator of a set operation.
type SetOpType string

// Set operation types.
const (
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SetOp combines two queries.
type SetOp struct {
	NodeInfo
	With    *With
	Op      SetOpType
	All     bool
	Left    Query
	Right   Query
	OrderBy []OrderItem
	Limit   Expr
	Offset  Expr
}

// Kind implements Node.
func (*SetOp) Kind() Kind { return KindSetOp }
func (*SetOp) stmtNode()  {}
func (*SetOp) queryNode() {}

// WithClause implements Query.
func (s *SetOp) WithClause() *With { return s.With }

// Branches returns the SELECT blocks of a set operation from left to right.
func (s *SetOp) Branches() []*Select {
	var out []*Select
	var collect func(q Query)
	collect = func(q Query) {
		switch q := q.(type) {
		case *Select:
			out = append(out, q)
		case *SetOp:
			collect(q.Left)
			collect(q.Right)
		}
	}
	collect(s)
	return out
}

// With is a WITH clause.
type With struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// Kind implements Node.
func (*With) Kind() Kind { return KindWith }

// CTE is one named common table expression.
type CTE struct {
	NodeInfo
	Name    Ident
	Columns []Ident
	Query   Query
}

// Kind implements Node.
func (*CTE) Kind() Kind { return KindCTE }
