package lineage_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/leapstack-labs/leapsql/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func process(t *testing.T, sql string, opts lineage.Options) *lineage.Result {
	t.Helper()
	engine, err := lineage.NewEngine(opts)
	require.NoError(t, err)
	result, err := engine.Process(sql)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// lineageOf returns the lineage of an output column as strings.
func lineageOf(t *testing.T, result *lineage.Result, column string) []string {
	t.Helper()
	require.NotNil(t, result.Lineage)
	col, ok := result.Lineage.Column(column)
	require.True(t, ok, "no output column %q", column)
	return lineage.RefStrings(col.Lineage)
}

func diagnosticKinds(result *lineage.Result) []lineage.DiagnosticKind {
	var kinds []lineage.DiagnosticKind
	for _, d := range result.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

func TestJoinedTablesByAlias(t *testing.T) {
	result := process(t, "SELECT a.x, b.y FROM t1 a JOIN t2 b ON a.id=b.id", lineage.Options{})

	assert.Nil(t, result.ViewName)
	assert.Equal(t, []string{"t1.x"}, lineageOf(t, result, "x"))
	assert.Equal(t, []string{"t2.y"}, lineageOf(t, result, "y"))
	assert.Equal(t, []lineage.Table{{Name: "t1", Alias: "a"}, {Name: "t2", Alias: "b"}}, result.Lineage.Tables)
	require.Len(t, result.Lineage.Joins, 1)
	assert.Equal(t, "INNER", result.Lineage.Joins[0].Type)
	assert.Equal(t, "t2 AS b", result.Lineage.Joins[0].Table)
	require.NotNil(t, result.Lineage.Joins[0].Condition)
	assert.Equal(t, "a.id = b.id", *result.Lineage.Joins[0].Condition)
	assert.Empty(t, result.Lineage.Filters)
	assert.Empty(t, result.Diagnostics)
}

func TestCTEColumnPropagates(t *testing.T) {
	result := process(t, "WITH c AS (SELECT id AS cid FROM t) SELECT c.cid FROM c", lineage.Options{})
	assert.Equal(t, []string{"t.id"}, lineageOf(t, result, "cid"))
}

func TestCommaJoinUnqualifiedColumn(t *testing.T) {
	result := process(t, "SELECT id FROM t1, t2", lineage.Options{})

	assert.Equal(t, []string{"t1.id", "t2.id"}, lineageOf(t, result, "id"))
	assert.Equal(t, []lineage.DiagnosticKind{lineage.DiagAmbiguousReference}, diagnosticKinds(result))
	assert.Equal(t, []string{"t1", "t2"}, result.Diagnostics[0].Candidates)
	assert.Equal(t, []lineage.Join{{Type: "CROSS", Table: "t2"}}, result.Lineage.Joins)
	assert.Len(t, result.Lineage.Tables, 2)
}

func TestSingleTableColumns(t *testing.T) {
	result := process(t, "SELECT a, b, c FROM t", lineage.Options{})
	for _, name := range []string{"a", "b", "c"} {
		assert.Equal(t, []string{"t." + name}, lineageOf(t, result, name))
	}
	assert.Empty(t, result.Diagnostics)
}

func TestQualifiedColumnIsExact(t *testing.T) {
	result := process(t, `
		SELECT t2.c
		FROM t1
		JOIN t2 ON t1.id = t2.id
		JOIN t3 ON t3.id = t2.id`, lineage.Options{})
	assert.Equal(t, []string{"t2.c"}, lineageOf(t, result, "c"))
}

func TestAmbiguousColumnIsSuperset(t *testing.T) {
	sql := "SELECT id FROM t1, t2, t3"

	t.Run("without catalog", func(t *testing.T) {
		result := process(t, sql, lineage.Options{})
		assert.Equal(t, []string{"t1.id", "t2.id", "t3.id"}, lineageOf(t, result, "id"))
	})

	t.Run("catalog narrows candidates", func(t *testing.T) {
		schema := lineage.Schema{
			"t1": {"id", "a"},
			"t2": {"id"},
			"t3": {"b"},
		}
		result := process(t, sql, lineage.Options{Catalog: schema})
		assert.Equal(t, []string{"t1.id", "t2.id"}, lineageOf(t, result, "id"))
	})

	t.Run("partial catalog does not narrow", func(t *testing.T) {
		result := process(t, sql, lineage.Options{Catalog: lineage.Schema{"t3": {"b"}}})
		assert.Equal(t, []string{"t1.id", "t2.id", "t3.id"}, lineageOf(t, result, "id"))
	})
}

func TestSubqueryTransitivity(t *testing.T) {
	nested := process(t, "SELECT s.col FROM (SELECT i.x AS col FROM t i) s", lineage.Options{})
	direct := process(t, "SELECT t.x AS col FROM t", lineage.Options{})

	assert.Equal(t, []string{"t.x"}, lineageOf(t, nested, "col"))
	assert.Equal(t, lineageOf(t, direct, "col"), lineageOf(t, nested, "col"))
}

func TestCTEAndSubqueryAreEquivalent(t *testing.T) {
	body := "SELECT a.x AS col, b.y, a.x + b.z AS total FROM t1 a JOIN t2 b ON a.id = b.id"
	withCTE := process(t, "WITH s AS ("+body+") SELECT s.col, s.y, total FROM s", lineage.Options{})
	withSubquery := process(t, "SELECT s.col, s.y, total FROM ("+body+") s", lineage.Options{})

	for _, name := range []string{"col", "y", "total"} {
		assert.Equal(t, lineageOf(t, withSubquery, name), lineageOf(t, withCTE, name), name)
	}
	assert.Equal(t, []string{"t1.x", "t2.z"}, lineageOf(t, withCTE, "total"))
}

func TestProcessIsIdempotent(t *testing.T) {
	sql := `WITH c AS (SELECT id, name FROM customers)
		SELECT c.name, o.total, id FROM c JOIN orders o ON o.customer_id = c.id`
	engine, err := lineage.NewEngine(lineage.Options{})
	require.NoError(t, err)

	first, err := engine.Process(sql)
	require.NoError(t, err)
	second, err := engine.Process(sql)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProcessConcurrently(t *testing.T) {
	engine, err := lineage.NewEngine(lineage.Options{})
	require.NoError(t, err)

	var g errgroup.Group
	results := make([]*lineage.Result, 16)
	for i := range results {
		g.Go(func() error {
			r, err := engine.Process("SELECT s.v FROM (SELECT a.v FROM t a) s")
			results[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results {
		assert.Equal(t, []string{"t.v"}, lineageOf(t, r, "v"))
	}
}

const salesSummaryView = `
    CREATE VIEW [GCF].[sales_summary] AS
    WITH recent_orders AS (
        SELECT order_id, customer_id, order_date
        FROM orders
        WHERE order_date >= '2024-01-01'
    ),
    customer_orders AS (
        SELECT c.customer_id, c.customer_name, ro.order_id, ro.order_date
        FROM customers c
        JOIN recent_orders ro ON c.customer_id = ro.customer_id
    )
    SELECT
        co.customer_id AS [Customer ID],
        co.customer_name,
        co.order_id,
        co.order_date,
        SUM(oi.quantity * oi.unit_price) AS total_amount,
        DATEDIFF(mi, co.order_date, GETDATE()) AS DaysDifferenceInMins
    FROM customer_orders co
    JOIN order_items oi ON co.order_id = oi.order_id
    GROUP BY co.customer_id, co.customer_name, co.order_id, co.order_date;
`

func TestTSQLView(t *testing.T) {
	result := process(t, salesSummaryView, lineage.Options{Dialect: "tsql"})

	require.NotNil(t, result.ViewName)
	assert.Equal(t, "[GCF].[sales_summary]", *result.ViewName)

	tests := []struct {
		column     string
		expression string
		baseTable  string
		lineage    []string
	}{
		{"Customer ID", "co.customer_id", "customers", []string{"customers.customer_id"}},
		{"customer_name", "co.customer_name", "customers", []string{"customers.customer_name"}},
		{"order_id", "co.order_id", "orders", []string{"orders.order_id"}},
		{"order_date", "co.order_date", "orders", []string{"orders.order_date"}},
		{"total_amount", "SUM(oi.quantity * oi.unit_price)", "order_items", []string{"order_items.quantity", "order_items.unit_price"}},
		{"DaysDifferenceInMins", "DATEDIFF(mi, co.order_date, GETDATE())", "orders", []string{"orders.order_date"}},
	}
	require.Len(t, result.Lineage.Columns, len(tests))
	for i, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			col := result.Lineage.Columns[i]
			assert.Equal(t, tt.column, col.Name)
			assert.Equal(t, tt.expression, col.Expression)
			assert.Equal(t, tt.lineage, lineageOf(t, result, tt.column))
			assert.Equal(t, tt.baseTable, col.BaseTable)
		})
	}

	assert.Equal(t, []lineage.Table{
		{Name: "customer_orders", Alias: "co"},
		{Name: "order_items", Alias: "oi"},
	}, result.Lineage.Tables)
	require.Len(t, result.Lineage.Joins, 1)
	assert.Equal(t, "order_items AS oi", result.Lineage.Joins[0].Table)
	assert.Equal(t, "co.order_id = oi.order_id", *result.Lineage.Joins[0].Condition)
	assert.Empty(t, result.Lineage.Filters)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, []string{"customers", "orders", "order_items"}, result.SourceTables())
}

func TestKeywordArgumentsAreNotColumns(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		sql     string
		want    []string
	}{
		{"dateadd", "tsql", "SELECT DATEADD(day, 1, o.created) AS due FROM orders o", []string{"orders.created"}},
		{"datepart", "tsql", "SELECT DATEPART(year, created) AS yr FROM orders", []string{"orders.created"}},
		{"interval unit", "postgres", "SELECT o.created + INTERVAL '1' DAY AS due FROM orders o", []string{"orders.created"}},
		{"extract field", "postgres", "SELECT EXTRACT(year FROM o.created) AS due FROM orders o", []string{"orders.created"}},
		{"dateadd in postgres", "postgres", "SELECT DATEADD(day, 1, o.created) AS due FROM orders o", []string{"orders.created"}},
		{"datediff in postgres", "postgres", "SELECT DATEDIFF(day, o.a, o.b) AS due FROM orders o", []string{"orders.a", "orders.b"}},
		{"date_trunc in ansi", "ansi", "SELECT DATE_TRUNC(month, created) AS due FROM orders", []string{"orders.created"}},
		{"timestampdiff in mysql", "mysql", "SELECT TIMESTAMPDIFF(MINUTE, o.a, o.b) AS due FROM orders o", []string{"orders.a", "orders.b"}},
		{"two-date datediff in mysql", "mysql", "SELECT DATEDIFF(shipped, created) AS due FROM orders", []string{"orders.shipped", "orders.created"}},
		{"convert value first in mysql", "mysql", "SELECT CONVERT(o.x, CHAR) AS due FROM orders o", []string{"orders.x"}},
		{"convert using in mysql", "mysql", "SELECT CONVERT(o.x USING utf8mb4) AS due FROM orders o", []string{"orders.x"}},
		{"convert type first in tsql", "tsql", "SELECT CONVERT(VARCHAR(10), o.created, 120) AS due FROM orders o", []string{"orders.created"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := process(t, tt.sql, lineage.Options{Dialect: tt.dialect})
			assert.Equal(t, tt.want, lineage.RefStrings(result.Lineage.Columns[0].Lineage))
		})
	}
}

func TestRecursiveCTEIsGuarded(t *testing.T) {
	result := process(t, `
		WITH RECURSIVE tree AS (
			SELECT id, parent_id FROM nodes
			UNION ALL
			SELECT n.id, tree.parent_id FROM nodes n JOIN tree ON n.parent_id = tree.id
		)
		SELECT id, parent_id FROM tree`, lineage.Options{Dialect: "ansi"})

	assert.Equal(t, []string{"nodes.id"}, lineageOf(t, result, "id"))
	assert.Equal(t, []string{"nodes.parent_id"}, lineageOf(t, result, "parent_id"))
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, lineage.DiagCyclicReference, result.Diagnostics[0].Kind)
	assert.Equal(t, "tree", result.Diagnostics[0].Qualifier)
}

func TestSelfReferencingCTEWithoutBase(t *testing.T) {
	result := process(t, "WITH r AS (SELECT r.n + 1 AS n FROM r) SELECT n FROM r", lineage.Options{Dialect: "ansi"})

	assert.Empty(t, lineageOf(t, result, "n"))
	assert.Contains(t, diagnosticKinds(result), lineage.DiagCyclicReference)
}

func TestDepthGuard(t *testing.T) {
	sql := `SELECT s.x FROM (
		SELECT s.x FROM (
			SELECT s.x FROM (
				SELECT s.x FROM (SELECT x FROM t) s
			) s
		) s
	) s`

	deep := process(t, sql, lineage.Options{})
	assert.Equal(t, []string{"t.x"}, lineageOf(t, deep, "x"))
	assert.Empty(t, deep.Diagnostics)

	shallow := process(t, sql, lineage.Options{MaxDepth: 3})
	assert.Equal(t, []string{"s.x"}, lineageOf(t, shallow, "x"))
	assert.Contains(t, diagnosticKinds(shallow), lineage.DiagDepthExceeded)
}

func TestCorrelatedSubquery(t *testing.T) {
	result := process(t, `
		SELECT o.id,
			(SELECT MAX(i.amount) + o.bonus FROM items i WHERE i.order_id = o.id) AS adjusted
		FROM orders o`, lineage.Options{})

	assert.Equal(t, []string{"orders.id"}, lineageOf(t, result, "id"))
	assert.Equal(t, []string{"items.amount", "orders.bonus"}, lineageOf(t, result, "adjusted"))
	assert.Empty(t, result.Diagnostics)
}

func TestExistsSubqueryContributesProjections(t *testing.T) {
	result := process(t, `
		SELECT CASE WHEN EXISTS (SELECT 1 FROM refunds r WHERE r.order_id = o.id) THEN o.total ELSE 0 END AS net
		FROM orders o`, lineage.Options{})
	assert.Equal(t, []string{"orders.total"}, lineageOf(t, result, "net"))
}

func TestUnresolvedQualifier(t *testing.T) {
	t.Run("single table absorbs the column", func(t *testing.T) {
		result := process(t, "SELECT z.a FROM t", lineage.Options{})
		assert.Equal(t, []string{"t.a"}, lineageOf(t, result, "a"))
		require.Len(t, result.Diagnostics, 1)
		assert.Equal(t, lineage.DiagUnresolvedReference, result.Diagnostics[0].Kind)
		assert.Equal(t, "z", result.Diagnostics[0].Qualifier)
	})

	t.Run("several tables keep the qualifier", func(t *testing.T) {
		result := process(t, "SELECT z.a FROM t1, t2", lineage.Options{})
		assert.Equal(t, []string{"z.a"}, lineageOf(t, result, "a"))
	})
}

func TestMissingCTEColumnFallsBack(t *testing.T) {
	result := process(t, "WITH c AS (SELECT id FROM t) SELECT c.missing FROM c", lineage.Options{})
	assert.Equal(t, []string{"c.missing"}, lineageOf(t, result, "missing"))
}

func TestCTEShadowsTable(t *testing.T) {
	result := process(t, "WITH orders AS (SELECT id AS order_id FROM raw_orders) SELECT o.order_id FROM orders o", lineage.Options{})
	assert.Equal(t, []string{"raw_orders.id"}, lineageOf(t, result, "order_id"))
}

func TestSubqueryAliasShadowsCTE(t *testing.T) {
	result := process(t, `
		WITH c AS (SELECT a FROM t1)
		SELECT c.a FROM (SELECT b AS a FROM t2) c`, lineage.Options{})
	assert.Equal(t, []string{"t2.b"}, lineageOf(t, result, "a"))
}

func TestCTEColumnList(t *testing.T) {
	result := process(t, "WITH c (k, v) AS (SELECT id, name FROM t) SELECT c.v, k FROM c", lineage.Options{})
	assert.Equal(t, []string{"t.name"}, lineageOf(t, result, "v"))
	assert.Equal(t, []string{"t.id"}, lineageOf(t, result, "k"))
}

func TestUnqualifiedColumnFromSubquery(t *testing.T) {
	result := process(t, "SELECT total FROM (SELECT SUM(amount) AS total FROM payments) p", lineage.Options{})
	assert.Equal(t, []string{"payments.amount"}, lineageOf(t, result, "total"))
	assert.Empty(t, result.Diagnostics)
}

func TestStarProjection(t *testing.T) {
	t.Run("without catalog", func(t *testing.T) {
		result := process(t, "SELECT * FROM t", lineage.Options{})
		require.Len(t, result.Lineage.Columns, 1)
		assert.Equal(t, "*", result.Lineage.Columns[0].Name)
		assert.Equal(t, []string{"t.*"}, lineageOf(t, result, "*"))
	})

	t.Run("expanded from catalog", func(t *testing.T) {
		result := process(t, "SELECT x.* FROM dbo.t x", lineage.Options{Catalog: lineage.Schema{"t": {"a", "b"}}})
		require.Len(t, result.Lineage.Columns, 2)
		assert.Equal(t, "a", result.Lineage.Columns[0].Name)
		assert.Equal(t, "x.a", result.Lineage.Columns[0].Expression)
		assert.Equal(t, []string{"dbo.t.b"}, lineageOf(t, result, "b"))
	})

	t.Run("expanded through cte", func(t *testing.T) {
		result := process(t, "WITH c AS (SELECT a, b AS bb FROM t) SELECT * FROM c", lineage.Options{})
		require.Len(t, result.Lineage.Columns, 2)
		assert.Equal(t, []string{"t.a"}, lineageOf(t, result, "a"))
		assert.Equal(t, []string{"t.b"}, lineageOf(t, result, "bb"))
	})

	t.Run("looked up through derived star", func(t *testing.T) {
		result := process(t, "SELECT s.a FROM (SELECT * FROM t) s", lineage.Options{})
		assert.Equal(t, []string{"t.a"}, lineageOf(t, result, "a"))
	})
}

func TestSetOperations(t *testing.T) {
	result := process(t, "SELECT a, b FROM t1 UNION ALL SELECT c, d FROM t2 WHERE d > 0", lineage.Options{})

	require.Len(t, result.Lineage.Columns, 2)
	assert.Equal(t, []string{"t1.a", "t2.c"}, lineageOf(t, result, "a"))
	assert.Equal(t, []string{"t1.b", "t2.d"}, lineageOf(t, result, "b"))
	assert.Equal(t, []lineage.Table{{Name: "t1", Alias: "t1"}, {Name: "t2", Alias: "t2"}}, result.Lineage.Tables)
	assert.Equal(t, []string{"d > 0"}, result.Lineage.Filters)

	viaCTE := process(t, "WITH u AS (SELECT a FROM t1 UNION SELECT a FROM t2) SELECT u.a FROM u", lineage.Options{})
	assert.Equal(t, []string{"t1.a", "t2.a"}, lineageOf(t, viaCTE, "a"))
}

func TestLineageByTable(t *testing.T) {
	result := process(t, `CREATE VIEW v AS
WITH recent AS (SELECT id, amount FROM orders)
SELECT r.id, r.amount * 2 AS doubled, c.name, c.id AS cid, r.amount AS again, 1 AS one
FROM recent r JOIN customers c ON r.id = c.order_id`, lineage.Options{})

	assert.Equal(t, map[string][]string{
		"orders":    {"amount", "id"},
		"customers": {"id", "name"},
	}, result.ByTable())

	bare := process(t, "SELECT x", lineage.Options{})
	assert.Empty(t, bare.ByTable())

	noQuery := process(t, "CREATE TABLE t (a INT)", lineage.Options{})
	assert.Nil(t, noQuery.ByTable())
}

func TestStatementWithoutQuery(t *testing.T) {
	result := process(t, "CREATE TABLE staging.t (a INT, b VARCHAR(10))", lineage.Options{})
	require.NotNil(t, result.ViewName)
	assert.Equal(t, "staging.t", *result.ViewName)
	assert.Nil(t, result.Lineage)
}

func TestParseErrorIsReturned(t *testing.T) {
	engine, err := lineage.NewEngine(lineage.Options{})
	require.NoError(t, err)

	result, err := engine.Process("SELECT a FROM t WHERE")
	require.Error(t, err)
	assert.Nil(t, result)
	var perr *parser.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestUnknownDialect(t *testing.T) {
	_, err := lineage.NewEngine(lineage.Options{Dialect: "cobol"})
	assert.ErrorContains(t, err, "unknown dialect")
}
