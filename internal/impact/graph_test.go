package impact

import (
	"testing"

	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(cols ...lineage.Column) *lineage.Result {
	return &lineage.Result{Lineage: &lineage.SelectMetadata{Columns: cols}}
}

func col(name string, refs ...string) lineage.Column {
	c := lineage.Column{Name: name, Lineage: []lineage.Ref{}}
	for _, r := range refs {
		var ref lineage.Ref
		_ = ref.UnmarshalText([]byte(r))
		c.Lineage = append(c.Lineage, ref)
	}
	return c
}

// orders -> sales.summary -> sales.report
func layeredGraph() *Graph {
	g := NewGraph()
	g.AddResult("[sales].[summary]", result(
		col("order_id", "dbo.orders.order_id"),
		col("total", "dbo.orders.amount", "dbo.items.tax"),
		col("label"),
	))
	g.AddResult("sales.report", result(
		col("total", "sales.summary.total"),
		col("id", "sales.summary.order_id", "customer_id"),
	))
	return g
}

func ids(hops []Hop) []string {
	if len(hops) == 0 {
		return nil
	}
	out := make([]string, len(hops))
	for i, h := range hops {
		out[i] = h.ID
	}
	return out
}

func TestNormalizeTable(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[dbo].[Orders]", "dbo.orders"},
		{`"Sales"."Summary"`, "sales.summary"},
		{"`db`.`t`", "db.t"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTable(tt.in), tt.in)
	}
}

func TestSplitID(t *testing.T) {
	table, column := SplitID("db.schema.t.c")
	assert.Equal(t, "db.schema.t", table)
	assert.Equal(t, "c", column)

	table, column = SplitID("c")
	assert.Empty(t, table)
	assert.Equal(t, "c", column)
}

func TestAddResult(t *testing.T) {
	g := layeredGraph()

	// 3 summary columns, 3 base columns, 2 report columns. Bare
	// references are skipped.
	assert.Equal(t, 8, g.NodeCount())
	assert.Equal(t, 5, g.EdgeCount())

	n, ok := g.Node("sales.summary.total")
	require.True(t, ok)
	assert.True(t, n.View, "a view column referenced by another view stays a view column")

	n, ok = g.Node("dbo.orders.amount")
	require.True(t, ok)
	assert.False(t, n.View)

	_, ok = g.Node("customer_id")
	assert.False(t, ok)
}

func TestDownstream(t *testing.T) {
	g := layeredGraph()

	tests := []struct {
		name  string
		id    string
		depth int
		want  []string
	}{
		{"transitive", "dbo.orders.amount", 0, []string{"sales.summary.total", "sales.report.total"}},
		{"depth limited", "dbo.orders.amount", 1, []string{"sales.summary.total"}},
		{"leaf", "sales.report.total", 0, nil},
		{"unknown", "nope.x", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(g.Downstream(tt.id, tt.depth)))
		})
	}

	hops := g.Downstream("dbo.orders.amount", 0)
	require.Len(t, hops, 2)
	assert.Equal(t, Hop{ID: "sales.report.total", Table: "sales.report", Column: "total", Depth: 2}, hops[1])
}

func TestUpstream(t *testing.T) {
	g := layeredGraph()

	assert.Equal(t,
		[]string{"sales.summary.total", "dbo.items.tax", "dbo.orders.amount"},
		ids(g.Upstream("sales.report.total", 0)),
	)
	assert.Equal(t, []string{"sales.summary.total"}, ids(g.Upstream("sales.report.total", 1)))
}

func TestDownstreamOfTable(t *testing.T) {
	g := layeredGraph()

	assert.Equal(t,
		[]string{"sales.summary.order_id", "sales.summary.total", "sales.report.id", "sales.report.total"},
		ids(g.DownstreamOfTable("[dbo].[orders]", 0)),
	)
	assert.Empty(t, g.DownstreamOfTable("missing", 0))
}

func TestRootsAndLeaves(t *testing.T) {
	g := layeredGraph()

	assert.Equal(t, []string{"dbo.items.tax", "dbo.orders.amount", "dbo.orders.order_id", "sales.summary.label"}, g.Roots())
	assert.Equal(t, []string{"sales.report.id", "sales.report.total", "sales.summary.label"}, g.Leaves())
}

func TestAddEdge(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("t", "a", false)
	b := g.AddNode("v", "b", true)

	require.NoError(t, g.AddEdge(a.ID, b.ID))
	require.NoError(t, g.AddEdge(a.ID, b.ID))
	assert.Equal(t, 1, g.EdgeCount(), "duplicate edges are ignored")

	assert.Error(t, g.AddEdge(a.ID, a.ID))
	assert.Error(t, g.AddEdge(a.ID, "missing.x"))
	assert.Error(t, g.AddEdge("missing.x", b.ID))
}

func TestHasCycle(t *testing.T) {
	g := layeredGraph()
	hasCycle, path := g.HasCycle()
	assert.False(t, hasCycle)
	assert.Nil(t, path)

	g.AddResult("v_a", result(col("x", "v_b.y")))
	g.AddResult("v_b", result(col("y", "v_a.x")))

	hasCycle, path = g.HasCycle()
	require.True(t, hasCycle)
	assert.Equal(t, []string{"v_a", "v_b", "v_a"}, path)
}

func TestHasCycleSelfReference(t *testing.T) {
	g := NewGraph()
	g.AddResult("v", result(col("a", "v.b")))

	hasCycle, path := g.HasCycle()
	require.True(t, hasCycle)
	assert.Equal(t, []string{"v", "v"}, path)
}

func TestFromEdges(t *testing.T) {
	g := FromEdges([]state.Edge{
		{View: "v", Column: "a", SourceTable: "t", SourceColumn: "a"},
		{View: "v", Column: "b", SourceTable: "", SourceColumn: "b"},
		{View: "w", Column: "a", SourceTable: "v", SourceColumn: "a"},
	})

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, []string{"v.a", "w.a"}, ids(g.Downstream("t.a", 0)))
}
