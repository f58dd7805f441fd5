package core

import "github.com/leapstack-labs/leapsql/pkg/token"

// ---------- Expressions ----------

// Alias is a projection with an output name: expr [AS] name.
type Alias struct {
	NodeInfo
	Expr Expr
	Name Ident
}

// Kind implements Node.
func (*Alias) Kind() Kind { return KindAlias }
func (*Alias) exprNode()  {}

// Star is * or qualifier.*.
type Star struct {
	NodeInfo
	Qualifier []Ident
}

// Kind implements Node.
func (*Star) Kind() Kind { return KindStar }
func (*Star) exprNode()  {}

// TableName returns the qualifier joined by dots, or "".
func (s *Star) TableName() string { return ObjectName{Parts: s.Qualifier}.String() }

// Column is a possibly qualified column reference.
type Column struct {
	NodeInfo
	Qualifier []Ident
	Name      Ident
}

// Kind implements Node.
func (*Column) Kind() Kind { return KindColumn }
func (*Column) exprNode()  {}

// TableName returns the qualifier joined by dots, or "" when unqualified.
func (c *Column) TableName() string { return ObjectName{Parts: c.Qualifier}.String() }

// ColumnName returns the column's own name.
func (c *Column) ColumnName() string { return c.Name.Name }

// Identifier is a bare word in a keyword position, such as an INTERVAL unit
// or an EXTRACT field. It never refers to a column.
type Identifier struct {
	NodeInfo
	Name string
}

// Kind implements Node.
func (*Identifier) Kind() Kind { return KindIdentifier }
func (*Identifier) exprNode()  {}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
	LiteralParam
)

// Literal is a constant or a bind parameter.
type Literal struct {
	NodeInfo
	Type     LiteralType
	Value    string
	National bool   // N'...'
	TypeName string // typed literal prefix: DATE '2024-01-01'
}

// Kind implements Node.
func (*Literal) Kind() Kind { return KindLiteral }
func (*Literal) exprNode()  {}

// FrameBound is one end of a window frame.
type FrameBound struct {
	Kind   string // "UNBOUNDED PRECEDING", "CURRENT ROW", "PRECEDING", "FOLLOWING", ...
	Offset Expr
}

// Frame is a window frame clause.
type Frame struct {
	Unit  string // ROWS, RANGE or GROUPS
	Start FrameBound
	End   *FrameBound
}

// WindowSpec is an OVER clause.
type WindowSpec struct {
	Name        string
	PartitionBy []Expr
	OrderBy     []OrderItem
	Frame       *Frame
}

// Function is a function call.
type Function struct {
	NodeInfo
	Name        string
	NoParens    bool // CURRENT_TIMESTAMP
	Distinct    bool
	Star        bool // COUNT(*)
	Args        []Expr
	OrderBy     []OrderItem // STRING_AGG(x, ',' ORDER BY y)
	WithinGroup []OrderItem
	Filter      Expr
	Over        *WindowSpec
}

// Kind implements Node.
func (*Function) Kind() Kind { return KindFunction }
func (*Function) exprNode()  {}

// Binary is a binary operation.
type Binary struct {
	NodeInfo
	Left  Expr
	Op    token.TokenType
	Right Expr
}

// Kind implements Node.
func (*Binary) Kind() Kind { return KindBinary }
func (*Binary) exprNode()  {}

// Unary is a prefix operation (NOT, -, +, ~).
type Unary struct {
	NodeInfo
	Op   token.TokenType
	Expr Expr
}

// Kind implements Node.
func (*Unary) Kind() Kind { return KindUnary }
func (*Unary) exprNode()  {}

// Paren is a parenthesized expression.
type Paren struct {
	NodeInfo
	Expr Expr
}

// Kind implements Node.
func (*Paren) Kind() Kind { return KindParen }
func (*Paren) exprNode()  {}

// When is one WHEN ... THEN ... branch.
type When struct {
	Cond   Expr
	Result Expr
}

// Case is a CASE expression.
type Case struct {
	NodeInfo
	Operand Expr
	Whens   []When
	Else    Expr
}

// Kind implements Node.
func (*Case) Kind() Kind { return KindCase }
func (*Case) exprNode()  {}

// CastForm records how a cast was written.
type CastForm int

// Cast forms.
const (
	CastStandard CastForm = iota // CAST(x AS t)
	CastTry                      // TRY_CAST(x AS t)
	CastConvert                  // CONVERT(t, x [, style])
	CastTryConvert               // TRY_CONVERT(t, x [, style])
	CastDoubleColon              // x::t
	CastConvertValueFirst        // CONVERT(x, t)
	CastConvertUsing             // CONVERT(x USING charset)
)

// Cast is a type conversion.
type Cast struct {
	NodeInfo
	Form  CastForm
	Expr  Expr
	Type  string
	Style Expr
}

// Kind implements Node.
func (*Cast) Kind() Kind { return KindCast }
func (*Cast) exprNode()  {}

// In is expr [NOT] IN (values | query).
type In struct {
	NodeInfo
	Expr   Expr
	Not    bool
	Values []Expr
	Query  Query
}

// Kind implements Node.
func (*In) Kind() Kind { return KindIn }
func (*In) exprNode()  {}

// Between is expr [NOT] BETWEEN low AND high.
type Between struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// Kind implements Node.
func (*Between) Kind() Kind { return KindBetween }
func (*Between) exprNode()  {}

// Like is expr [NOT] LIKE|ILIKE pattern [ESCAPE e].
type Like struct {
	NodeInfo
	Expr    Expr
	Not     bool
	Op      token.TokenType
	Pattern Expr
	Escape  Expr
}

// Kind implements Node.
func (*Like) Kind() Kind { return KindLike }
func (*Like) exprNode()  {}

// Is is expr IS [NOT] NULL|TRUE|FALSE.
type Is struct {
	NodeInfo
	Expr  Expr
	Not   bool
	Value string
}

// Kind implements Node.
func (*Is) Kind() Kind { return KindIs }
func (*Is) exprNode()  {}

// Exists is EXISTS (query).
type Exists struct {
	NodeInfo
	Query Query
}

// Kind implements Node.
func (*Exists) Kind() Kind { return KindExists }
func (*Exists) exprNode()  {}

// SubqueryExpr is a scalar subquery.
type SubqueryExpr struct {
	NodeInfo
	Query Query
}

// Kind implements Node.
func (*SubqueryExpr) Kind() Kind { return KindSubqueryExpr }
func (*SubqueryExpr) exprNode()  {}

// Interval is INTERVAL value [unit].
type Interval struct {
	NodeInfo
	Value Expr
	Unit  *Identifier
}

// Kind implements Node.
func (*Interval) Kind() Kind { return KindInterval }
func (*Interval) exprNode()  {}

// Extract is EXTRACT(field FROM expr).
type Extract struct {
	NodeInfo
	Field *Identifier
	From  Expr
}

// Kind implements Node.
func (*Extract) Kind() Kind { return KindExtract }
func (*Extract) exprNode()  {}
