package parser_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/parser"
	"github.com/leapstack-labs/leapsql/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, sql string, d *dialect.Dialect) core.Statement {
	t.Helper()
	stmt, err := parser.Parse(sql, d)
	require.NoError(t, err)
	require.NotNil(t, stmt)
	return stmt
}

func mustSelect(t *testing.T, sql string, d *dialect.Dialect) *core.Select {
	t.Helper()
	sel, ok := mustParse(t, sql, d).(*core.Select)
	require.True(t, ok, "expected *core.Select")
	return sel
}

// ---------- Statements ----------

func TestParseCreateView(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		d         *dialect.Dialect
		viewName  string
		orReplace bool
		orAlter   bool
		alter     bool
		columns   int
		options   []string
	}{
		{
			name:     "plain",
			sql:      "CREATE VIEW v AS SELECT a FROM t",
			d:        dialect.ANSI,
			viewName: "v",
		},
		{
			name:      "or replace with columns",
			sql:       "CREATE OR REPLACE VIEW s.v (x, y) AS SELECT a, b FROM t",
			d:         dialect.Postgres,
			viewName:  "s.v",
			orReplace: true,
			columns:   2,
		},
		{
			name:     "tsql bracketed with schemabinding",
			sql:      "CREATE VIEW [GCF].[sales_summary] WITH SCHEMABINDING AS SELECT a FROM dbo.t",
			d:        dialect.TSQL,
			viewName: "GCF.sales_summary",
			options:  []string{"SCHEMABINDING"},
		},
		{
			name:     "create or alter",
			sql:      "CREATE OR ALTER VIEW dbo.v AS SELECT 1 AS one",
			d:        dialect.TSQL,
			viewName: "dbo.v",
			orAlter:  true,
		},
		{
			name:     "alter view",
			sql:      "ALTER VIEW dbo.v AS SELECT 1 AS one;",
			d:        dialect.TSQL,
			viewName: "dbo.v",
			alter:    true,
		},
		{
			name:     "materialized if not exists",
			sql:      "CREATE MATERIALIZED VIEW IF NOT EXISTS mv AS SELECT a FROM t",
			d:        dialect.Postgres,
			viewName: "mv",
		},
		{
			name:     "check option",
			sql:      "CREATE VIEW v AS SELECT a FROM t WHERE a > 0 WITH CASCADED CHECK OPTION",
			d:        dialect.ANSI,
			viewName: "v",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, ok := mustParse(t, tt.sql, tt.d).(*core.CreateView)
			require.True(t, ok)
			assert.Equal(t, tt.viewName, view.Name.String())
			assert.Equal(t, tt.orReplace, view.OrReplace)
			assert.Equal(t, tt.orAlter, view.OrAlter)
			assert.Equal(t, tt.alter, view.Alter)
			assert.Len(t, view.Columns, tt.columns)
			assert.Equal(t, tt.options, view.Options)
			require.NotNil(t, view.Query)
		})
	}
}

func TestParseCreateViewKeepsQuoting(t *testing.T) {
	view := mustParse(t, "CREATE VIEW [GCF].[sales_summary] AS SELECT 1 AS x", dialect.TSQL).(*core.CreateView)
	require.Len(t, view.Name.Parts, 2)
	assert.True(t, view.Name.Parts[0].Quoted)
	assert.Equal(t, "sales_summary", view.Name.Last().Name)
}

func TestParseCreateTable(t *testing.T) {
	stmt := mustParse(t, "CREATE TABLE orders (id INT PRIMARY KEY, amount DECIMAL(10, 2) NOT NULL, CONSTRAINT pk UNIQUE (id))", dialect.ANSI)
	table, ok := stmt.(*core.CreateTable)
	require.True(t, ok)
	assert.Equal(t, "orders", table.Name.String())
	require.Len(t, table.Columns, 2)
	assert.Equal(t, "id", table.Columns[0].Name.Name)
	assert.Equal(t, "INT", table.Columns[0].Type)
	assert.Equal(t, "DECIMAL(10,2)", table.Columns[1].Type)
	assert.Nil(t, table.Query)

	stmt = mustParse(t, "CREATE TABLE t2 AS SELECT a FROM t", dialect.ANSI)
	require.NotNil(t, stmt.(*core.CreateTable).Query)
}

// ---------- Queries ----------

func TestParseSelectClauses(t *testing.T) {
	sel := mustSelect(t, `
		SELECT DISTINCT a, b AS bee, COUNT(*) cnt
		FROM t
		WHERE a > 1 AND b IS NOT NULL
		GROUP BY a, b
		HAVING COUNT(*) > 2
		ORDER BY a DESC NULLS LAST
		LIMIT 10 OFFSET 5`, dialect.Postgres)

	assert.True(t, sel.Distinct)
	require.Len(t, sel.Columns, 3)
	assert.IsType(t, &core.Column{}, sel.Columns[0])
	alias, ok := sel.Columns[1].(*core.Alias)
	require.True(t, ok)
	assert.Equal(t, "bee", alias.Name.Name)
	cnt, ok := sel.Columns[2].(*core.Alias)
	require.True(t, ok)
	assert.True(t, cnt.Expr.(*core.Function).Star)

	assert.IsType(t, &core.Binary{}, sel.Where)
	assert.Len(t, sel.GroupBy, 2)
	assert.NotNil(t, sel.Having)
	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Desc)
	assert.Equal(t, "LAST", sel.OrderBy[0].Nulls)
	assert.NotNil(t, sel.Limit)
	assert.NotNil(t, sel.Offset)
}

func TestParseTSQLSelect(t *testing.T) {
	sel := mustSelect(t, `
		SELECT TOP (10) PERCENT [Customer ID] = c.id, c.name 'Name', DATEDIFF(mi, o.start_time, o.end_time) AS duration
		FROM dbo.customers AS c WITH (NOLOCK)
		INNER JOIN dbo.orders o ON o.customer_id = c.id
		OPTION (RECOMPILE)`, dialect.TSQL)

	require.NotNil(t, sel.Top)
	assert.True(t, sel.Top.Percent)
	require.Len(t, sel.Columns, 3)

	assign := sel.Columns[0].(*core.Alias)
	assert.Equal(t, "Customer ID", assign.Name.Name)
	assert.True(t, assign.Name.Quoted)
	assert.Equal(t, "Name", sel.Columns[1].(*core.Alias).Name.Name)

	fn := sel.Columns[2].(*core.Alias).Expr.(*core.Function)
	assert.Equal(t, "DATEDIFF", fn.Name)
	require.Len(t, fn.Args, 3)
	assert.Equal(t, "mi", fn.Args[0].(*core.Column).Name.Name)

	table := sel.From.Source.(*core.Table)
	assert.Equal(t, "dbo.customers", table.QualifiedName())
	assert.Equal(t, "c", table.Alias.Name)
	assert.Equal(t, []string{"NOLOCK"}, table.Hints)
	require.Len(t, sel.From.Joins, 1)
	assert.Equal(t, core.JoinInner, sel.From.Joins[0].Type)
}

func TestParseWith(t *testing.T) {
	sel := mustSelect(t, `
		WITH RECURSIVE a (x) AS (SELECT 1), b AS (SELECT x FROM a)
		SELECT x FROM b`, dialect.Postgres)
	require.NotNil(t, sel.With)
	assert.True(t, sel.With.Recursive)
	require.Len(t, sel.With.CTEs, 2)
	assert.Equal(t, "a", sel.With.CTEs[0].Name.Name)
	assert.Len(t, sel.With.CTEs[0].Columns, 1)
	assert.Equal(t, "b", sel.With.CTEs[1].Name.Name)
}

func TestParseSetOperations(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t1 UNION ALL SELECT b FROM t2 EXCEPT SELECT c FROM t3 ORDER BY 1", dialect.ANSI)
	op, ok := stmt.(*core.SetOp)
	require.True(t, ok)
	assert.Equal(t, core.SetOpExcept, op.Op)
	assert.Len(t, op.OrderBy, 1)

	left, ok := op.Left.(*core.SetOp)
	require.True(t, ok, "set operations are left associative")
	assert.Equal(t, core.SetOpUnion, left.Op)
	assert.True(t, left.All)
	assert.Len(t, op.Branches(), 3)
	assert.Nil(t, op.Branches()[2].OrderBy)
}

func TestParseParenthesizedSetOperand(t *testing.T) {
	stmt := mustParse(t, "(SELECT a FROM t1) UNION (SELECT a FROM t2) ORDER BY a", dialect.ANSI)
	op := stmt.(*core.SetOp)
	assert.Len(t, op.Branches(), 2)
	assert.Len(t, op.OrderBy, 1)
}

func TestParseJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		d        *dialect.Dialect
		joinType core.JoinType
		natural  bool
		using    int
		hasOn    bool
	}{
		{"inner", "SELECT * FROM a JOIN b ON a.id = b.id", dialect.ANSI, core.JoinInner, false, 0, true},
		{"left outer", "SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.id", dialect.ANSI, core.JoinLeft, false, 0, true},
		{"full using", "SELECT * FROM a FULL JOIN b USING (id, k)", dialect.ANSI, core.JoinFull, false, 2, false},
		{"cross", "SELECT * FROM a CROSS JOIN b", dialect.ANSI, core.JoinCross, false, 0, false},
		{"comma", "SELECT * FROM a, b", dialect.ANSI, core.JoinComma, false, 0, false},
		{"natural left", "SELECT * FROM a NATURAL LEFT JOIN b", dialect.Postgres, core.JoinLeft, true, 0, false},
		{"cross apply", "SELECT * FROM a CROSS APPLY fn(a.id) f", dialect.TSQL, core.JoinCrossApply, false, 0, false},
		{"outer apply", "SELECT * FROM a OUTER APPLY (SELECT TOP 1 x FROM b) s", dialect.TSQL, core.JoinOuterApply, false, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := mustSelect(t, tt.sql, tt.d)
			require.Len(t, sel.From.Joins, 1)
			join := sel.From.Joins[0]
			assert.Equal(t, tt.joinType, join.Type)
			assert.Equal(t, tt.natural, join.Natural)
			assert.Len(t, join.Using, tt.using)
			assert.Equal(t, tt.hasOn, join.On != nil)
		})
	}
}

func TestParseNaturalJoinRejectsOn(t *testing.T) {
	_, err := parser.Parse("SELECT * FROM t1 NATURAL JOIN t2 ON t1.id = t2.id", dialect.Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATURAL JOIN cannot have ON")
}

func TestParseParenthesizedJoinIsFlattened(t *testing.T) {
	sel := mustSelect(t, "SELECT * FROM a JOIN (b JOIN c ON b.id = c.id) ON a.id = b.id", dialect.ANSI)
	require.Len(t, sel.From.Joins, 2)
	assert.Equal(t, "b", sel.From.Joins[0].Right.(*core.Table).QualifiedName())
	assert.Equal(t, "c", sel.From.Joins[1].Right.(*core.Table).QualifiedName())
}

func TestParseDerivedTable(t *testing.T) {
	sel := mustSelect(t, "SELECT s.x FROM (SELECT a FROM t) AS s (x)", dialect.ANSI)
	sub, ok := sel.From.Source.(*core.Subquery)
	require.True(t, ok)
	assert.Equal(t, "s", sub.Alias.Name)
	require.Len(t, sub.Columns, 1)
	assert.Equal(t, "x", sub.Columns[0].Name)
}

// ---------- Expressions ----------

func TestParseExpressionPrecedence(t *testing.T) {
	sel := mustSelect(t, "SELECT a + b * c FROM t WHERE x = 1 OR y = 2 AND NOT z", dialect.ANSI)

	add := sel.Columns[0].(*core.Binary)
	assert.Equal(t, token.PLUS, add.Op)
	assert.Equal(t, token.STAR, add.Right.(*core.Binary).Op)

	or := sel.Where.(*core.Binary)
	assert.Equal(t, token.OR, or.Op)
	and := or.Right.(*core.Binary)
	assert.Equal(t, token.AND, and.Op)
	assert.Equal(t, token.NOT, and.Right.(*core.Unary).Op)
}

func TestParsePredicates(t *testing.T) {
	sel := mustSelect(t, `SELECT 1 FROM t WHERE
		a NOT IN (1, 2) AND b BETWEEN 1 AND 10 AND c NOT LIKE 'x%' ESCAPE '!'
		AND d IN (SELECT d FROM u) AND EXISTS (SELECT 1 FROM v) AND e IS DISTINCT FROM f`, dialect.Postgres)

	in := core.Find(sel.Where, core.KindIn).(*core.In)
	assert.True(t, in.Not)
	assert.Len(t, in.Values, 2)

	between := core.Find(sel.Where, core.KindBetween).(*core.Between)
	assert.NotNil(t, between.High)

	like := core.Find(sel.Where, core.KindLike).(*core.Like)
	assert.True(t, like.Not)
	assert.NotNil(t, like.Escape)

	ins := core.FindAll(sel.Where, core.KindIn)
	require.Len(t, ins, 2)
	assert.NotNil(t, ins[1].(*core.In).Query)
	assert.NotNil(t, core.Find(sel.Where, core.KindExists))
}

func TestParseSpecialForms(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		d    *dialect.Dialect
		kind core.Kind
	}{
		{"case", "SELECT CASE WHEN a > 0 THEN 'p' ELSE 'n' END FROM t", dialect.ANSI, core.KindCase},
		{"simple case", "SELECT CASE a WHEN 1 THEN 'one' END FROM t", dialect.ANSI, core.KindCase},
		{"cast", "SELECT CAST(a AS VARCHAR(10)) FROM t", dialect.ANSI, core.KindCast},
		{"try_cast", "SELECT TRY_CAST(a AS INT) FROM t", dialect.TSQL, core.KindCast},
		{"convert", "SELECT CONVERT(VARCHAR(10), a, 120) FROM t", dialect.TSQL, core.KindCast},
		{"mysql convert", "SELECT CONVERT(a, CHAR) FROM t", dialect.MySQL, core.KindCast},
		{"mysql convert using", "SELECT CONVERT(a USING utf8mb4) FROM t", dialect.MySQL, core.KindCast},
		{"double colon", "SELECT a::text FROM t", dialect.Postgres, core.KindCast},
		{"extract", "SELECT EXTRACT(YEAR FROM d) FROM t", dialect.Postgres, core.KindExtract},
		{"interval", "SELECT d + INTERVAL '1' DAY FROM t", dialect.Postgres, core.KindInterval},
		{"scalar subquery", "SELECT (SELECT MAX(x) FROM u) FROM t", dialect.ANSI, core.KindSubqueryExpr},
		{"window", "SELECT ROW_NUMBER() OVER (PARTITION BY a ORDER BY b ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) FROM t", dialect.ANSI, core.KindFunction},
		{"niladic", "SELECT CURRENT_TIMESTAMP", dialect.ANSI, core.KindFunction},
		{"typed literal", "SELECT DATE '2024-01-01'", dialect.ANSI, core.KindLiteral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := mustSelect(t, tt.sql, tt.d)
			require.NotEmpty(t, sel.Columns)
			assert.NotNil(t, core.Find(sel.Columns[0], tt.kind))
		})
	}
}

func TestParseWindowFrame(t *testing.T) {
	sel := mustSelect(t, "SELECT SUM(x) OVER (PARTITION BY a ORDER BY b ROWS BETWEEN 2 PRECEDING AND CURRENT ROW) FROM t", dialect.ANSI)
	fn := sel.Columns[0].(*core.Function)
	require.NotNil(t, fn.Over)
	assert.Len(t, fn.Over.PartitionBy, 1)
	require.NotNil(t, fn.Over.Frame)
	assert.Equal(t, "ROWS", fn.Over.Frame.Unit)
	assert.Equal(t, "PRECEDING", fn.Over.Frame.Start.Kind)
	require.NotNil(t, fn.Over.Frame.End)
	assert.Equal(t, "CURRENT ROW", fn.Over.Frame.End.Kind)
}

func TestParseQualifiedStar(t *testing.T) {
	sel := mustSelect(t, "SELECT t.*, s.x.* FROM t", dialect.ANSI)
	require.Len(t, sel.Columns, 2)
	assert.Equal(t, "t", sel.Columns[0].(*core.Star).TableName())
	assert.Equal(t, "s.x", sel.Columns[1].(*core.Star).TableName())
}

// ---------- Node IDs and errors ----------

func TestNodeIDsAreUnique(t *testing.T) {
	stmt := mustParse(t, `
		CREATE VIEW v AS
		WITH c AS (SELECT a, b FROM t WHERE a IN (SELECT a FROM u))
		SELECT c.a, SUM(c.b) AS total FROM c JOIN w ON c.a = w.a GROUP BY c.a`, dialect.ANSI)

	seen := map[core.NodeID]core.Kind{}
	core.Walk(stmt, func(n core.Node) bool {
		id := n.ID()
		assert.NotZero(t, id, "node %s has no id", n.Kind())
		if prev, dup := seen[id]; dup {
			t.Errorf("id %d shared by %s and %s", id, prev, n.Kind())
		}
		seen[id] = n.Kind()
		return true
	})
	assert.Greater(t, len(seen), 15)
}

func TestNodeIDsAreDeterministic(t *testing.T) {
	sql := "SELECT a, b + 1 AS c FROM t WHERE d > 0"
	first := mustParse(t, sql, dialect.ANSI)
	second := mustParse(t, sql, dialect.ANSI)
	assert.Equal(t, first, second)
}

func TestParseSpans(t *testing.T) {
	sql := "SELECT a + b AS total FROM t"
	sel := mustSelect(t, sql, dialect.ANSI)
	assert.Equal(t, "a + b AS total", sel.Columns[0].Span().Text(sql))
	assert.Equal(t, sql, sel.Span().Text(sql))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		msg  string
	}{
		{"empty", "  ;", parser.ErrEmptyInput},
		{"missing from target", "SELECT a FROM", "expected identifier"},
		{"trailing statement", "SELECT 1; SELECT 2", "only one statement"},
		{"unterminated string", "SELECT 'abc", parser.ErrUnterminatedString},
		{"bad start", "DELETE FROM t", "expected SELECT, WITH or CREATE"},
		{"unclosed paren", "SELECT (a FROM t", "expected )"},
		{"case without when", "SELECT CASE a END", "expected WHEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.Parse(tt.sql, dialect.ANSI)
			require.Error(t, err)
			assert.Nil(t, stmt)
			var perr *parser.ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Parse("SELECT a\nFROM t\nWHERE )", dialect.ANSI)
	var perr *parser.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Equal(t, 7, perr.Pos.Column)
}

func TestParseRequiresDialect(t *testing.T) {
	_, err := parser.Parse("SELECT 1", nil)
	assert.ErrorIs(t, err, dialect.ErrDialectRequired)
}
