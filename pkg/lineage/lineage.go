// Package lineage computes column-level lineage for SQL view definitions.
//
// For each output column of a view's SELECT, the engine determines which
// base-table columns the value derives from, following aliases, derived
// tables, CTEs and computed expressions.
package lineage

import (
	"slices"
	"strings"
)

// Ref is one base column a value derives from. Table is empty for a bare
// fallback; it may also hold an unresolved qualifier as written.
type Ref struct {
	Table  string
	Column string
}

// String renders the reference as "table.column", or "column" when the
// table is unknown.
func (r Ref) String() string {
	if r.Table == "" {
		return r.Column
	}
	return r.Table + "." + r.Column
}

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The text is split at
// its last dot, so schema-qualified tables round trip.
func (r *Ref) UnmarshalText(text []byte) error {
	s := string(text)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		r.Table, r.Column = s[:i], s[i+1:]
		return nil
	}
	r.Table, r.Column = "", s
	return nil
}

// RefStrings renders refs with Ref.String.
func RefStrings(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

// RefSet is an insertion-ordered set of references. The zero value is
// empty and ready to use.
type RefSet struct {
	refs []Ref
	seen map[Ref]struct{}
}

// NewRefSet returns a set holding refs in order.
func NewRefSet(refs ...Ref) RefSet {
	var s RefSet
	s.Add(refs...)
	return s
}

// Add appends the references that are not yet present.
func (s *RefSet) Add(refs ...Ref) {
	for _, r := range refs {
		if s.seen == nil {
			s.seen = make(map[Ref]struct{})
		}
		if _, ok := s.seen[r]; ok {
			continue
		}
		s.seen[r] = struct{}{}
		s.refs = append(s.refs, r)
	}
}

// AddSet appends every reference of o.
func (s *RefSet) AddSet(o RefSet) {
	s.Add(o.refs...)
}

// Clone returns an independent copy.
func (s RefSet) Clone() RefSet {
	return NewRefSet(s.refs...)
}

// Refs returns the references in insertion order.
func (s RefSet) Refs() []Ref {
	out := make([]Ref, len(s.refs))
	copy(out, s.refs)
	return out
}

// Len returns the number of references.
func (s RefSet) Len() int {
	return len(s.refs)
}

// isBareFallback reports whether the set is the single bare-name fallback.
func (s RefSet) isBareFallback() bool {
	return len(s.refs) == 1 && s.refs[0].Table == ""
}

// Column describes one output column of a query.
type Column struct {
	Name       string `json:"column_name" yaml:"column_name"`
	BaseTable  string `json:"base_table,omitempty" yaml:"base_table,omitempty"`
	Expression string `json:"expression" yaml:"expression"`
	Lineage    []Ref  `json:"lineage" yaml:"lineage"`
}

// Table is a table referenced by a query's FROM clause.
type Table struct {
	Name  string `json:"table_name" yaml:"table_name"`
	Alias string `json:"alias" yaml:"alias"`
}

// Join is one JOIN of a query's FROM clause.
type Join struct {
	Type      string  `json:"type" yaml:"type"`
	Table     string  `json:"table" yaml:"table"`
	Condition *string `json:"condition" yaml:"condition"`
}

// SelectMetadata is the analysis of one query.
type SelectMetadata struct {
	Columns []Column `json:"columns" yaml:"columns"`
	Tables  []Table  `json:"tables" yaml:"tables"`
	Joins   []Join   `json:"joins" yaml:"joins"`
	Filters []string `json:"filters" yaml:"filters"`
}

// Column returns the output column with the given name (case-insensitive).
func (m *SelectMetadata) Column(name string) (Column, bool) {
	if m == nil {
		return Column{}, false
	}
	for _, c := range m.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Result is the outcome of processing one statement. ViewName is nil when
// the statement does not create a view; Lineage is nil when the statement
// has no query.
type Result struct {
	ViewName    *string         `json:"view_name" yaml:"view_name"`
	Lineage     *SelectMetadata `json:"lineage" yaml:"lineage"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// SourceTables returns the distinct base tables named by the lineage of
// every output column, in first-seen order.
func (r *Result) SourceTables() []string {
	if r == nil || r.Lineage == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, c := range r.Lineage.Columns {
		for _, ref := range c.Lineage {
			if ref.Table == "" {
				continue
			}
			if _, ok := seen[ref.Table]; ok {
				continue
			}
			seen[ref.Table] = struct{}{}
			out = append(out, ref.Table)
		}
	}
	return out
}

// ByTable groups the lineage of every output column by base table. Column
// names are deduplicated and sorted. Bare-name fallbacks have no table and
// are left out.
func (r *Result) ByTable() map[string][]string {
	if r == nil || r.Lineage == nil {
		return nil
	}
	out := make(map[string][]string)
	for _, c := range r.Lineage.Columns {
		for _, ref := range c.Lineage {
			if ref.Table == "" || slices.Contains(out[ref.Table], ref.Column) {
				continue
			}
			out[ref.Table] = append(out[ref.Table], ref.Column)
		}
	}
	for _, cols := range out {
		slices.Sort(cols)
	}
	return out
}
