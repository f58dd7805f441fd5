// Package core defines the SQL syntax tree produced by pkg/parser.
//
// Every node carries a NodeInfo with a stable integer ID assigned in parse
// order, so analyses can keep side tables keyed by NodeID instead of by
// pointer identity. The set of node kinds is closed; consumers dispatch on
// the concrete type (or Kind) in a single switch per operation.
package core

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/token"
)

// NodeID identifies a node within one parsed statement. IDs start at 1.
type NodeID int32

// Kind enumerates the node types.
type Kind uint8

// Node kinds.
const (
	KindInvalid Kind = iota
	KindCreateView
	KindCreateTable
	KindSelect
	KindSetOp
	KindWith
	KindCTE
	KindTable
	KindSubquery
	KindTableFunction
	KindJoin
	KindAlias
	KindStar
	KindColumn
	KindIdentifier
	KindLiteral
	KindFunction
	KindBinary
	KindUnary
	KindParen
	KindCase
	KindCast
	KindIn
	KindBetween
	KindLike
	KindIs
	KindExists
	KindSubqueryExpr
	KindInterval
	KindExtract
)

var kindNames = [...]string{
	KindInvalid:       "Invalid",
	KindCreateView:    "CreateView",
	KindCreateTable:   "CreateTable",
	KindSelect:        "Select",
	KindSetOp:         "SetOp",
	KindWith:          "With",
	KindCTE:           "CTE",
	KindTable:         "Table",
	KindSubquery:      "Subquery",
	KindTableFunction: "TableFunction",
	KindJoin:          "Join",
	KindAlias:         "Alias",
	KindStar:          "Star",
	KindColumn:        "Column",
	KindIdentifier:    "Identifier",
	KindLiteral:       "Literal",
	KindFunction:      "Function",
	KindBinary:        "Binary",
	KindUnary:         "Unary",
	KindParen:         "Paren",
	KindCase:          "Case",
	KindCast:          "Cast",
	KindIn:            "In",
	KindBetween:       "Between",
	KindLike:          "Like",
	KindIs:            "Is",
	KindExists:        "Exists",
	KindSubqueryExpr:  "SubqueryExpr",
	KindInterval:      "Interval",
	KindExtract:       "Extract",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Node is implemented by every syntax tree node.
type Node interface {
	ID() NodeID
	Kind() Kind
	Span() token.Span
}

// NodeInfo is embedded in every node.
type NodeInfo struct {
	NodeID NodeID
	Loc    token.Span
}

// ID implements Node.
func (n NodeInfo) ID() NodeID { return n.NodeID }

// Span implements Node.
func (n NodeInfo) Span() token.Span { return n.Loc }

// Statement is a top-level statement.
type Statement interface {
	Node
	stmtNode()
}

// Query is a SELECT or a set operation over SELECTs.
type Query interface {
	Statement
	queryNode()
	// WithClause returns the query's own WITH clause, or nil.
	WithClause() *With
}

// TableRef is an item of a FROM clause.
type TableRef interface {
	Node
	tableRefNode()
}

// Expr is a scalar expression.
type Expr interface {
	Node
	exprNode()
}

// Ident is an identifier as written.
type Ident struct {
	Name   string
	Quoted bool
}

// ObjectName is a dotted, possibly multi-part name such as db.schema.table.
type ObjectName struct {
	Parts []Ident
}

// String returns the unquoted parts joined by dots.
func (o ObjectName) String() string {
	names := make([]string, len(o.Parts))
	for i, p := range o.Parts {
		names[i] = p.Name
	}
	return strings.Join(names, ".")
}

// Last returns the final part (the object's own name).
func (o ObjectName) Last() Ident {
	if len(o.Parts) == 0 {
		return Ident{}
	}
	return o.Parts[len(o.Parts)-1]
}

// IsZero reports whether the name has no parts.
func (o ObjectName) IsZero() bool {
	return len(o.Parts) == 0
}
