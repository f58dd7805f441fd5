package core

// ---------- FROM clause ----------

// From is a FROM clause: a leading source followed by joins.
// Comma-separated sources are recorded as joins of type JoinComma.
type From struct {
	Source TableRef
	Joins  []*Join
}

// Sources returns every table reference of the clause in written order.
func (f *From) Sources() []TableRef {
	if f == nil || f.Source == nil {
		return nil
	}
	out := []TableRef{f.Source}
	for _, j := range f.Joins {
		if j.Right != nil {
			out = append(out, j.Right)
		}
	}
	return out
}

// Table is a physical (or CTE) table reference.
type Table struct {
	NodeInfo
	Name  ObjectName
	Alias Ident
	Hints []string // T-SQL table hints: WITH (NOLOCK)
}

// Kind implements Node.
func (*Table) Kind() Kind     { return KindTable }
func (*Table) tableRefNode() {}

// QualifiedName returns the name as written, without quoting.
func (t *Table) QualifiedName() string { return t.Name.String() }

// AliasOrName returns the alias, or the table's own (last part) name.
func (t *Table) AliasOrName() string {
	if t.Alias.Name != "" {
		return t.Alias.Name
	}
	return t.Name.Last().Name
}

// Subquery is a derived table: (query) [AS] alias [(columns)].
type Subquery struct {
	NodeInfo
	Lateral bool
	Query   Query
	Alias   Ident
	Columns []Ident
}

// Kind implements Node.
func (*Subquery) Kind() Kind     { return KindSubquery }
func (*Subquery) tableRefNode() {}

// TableFunction is a function used as a FROM source.
type TableFunction struct {
	NodeInfo
	Func  *Function
	Alias Ident
}

// Kind implements Node.
func (*TableFunction) Kind() Kind     { return KindTableFunction }
func (*TableFunction) tableRefNode() {}

// JoinType is the kind of a join.
type JoinType string

// Join types.
const (
	JoinInner      JoinType = "INNER"
	JoinLeft       JoinType = "LEFT"
	JoinRight      JoinType = "RIGHT"
	JoinFull       JoinType = "FULL"
	JoinCross      JoinType = "CROSS"
	JoinComma      JoinType = ","
	JoinCrossApply JoinType = "CROSS APPLY"
	JoinOuterApply JoinType = "OUTER APPLY"
)

// Join is one JOIN of a FROM clause.
type Join struct {
	NodeInfo
	Type    JoinType
	Natural bool
	Outer   bool // OUTER keyword was written
	Right   TableRef
	On      Expr
	Using   []Ident
}

// Kind implements Node.
func (*Join) Kind() Kind { return KindJoin }
