package state

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapsql/internal/testutil"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func strPtr(s string) *string { return &s }

func ordersView() *lineage.Result {
	return &lineage.Result{
		ViewName: strPtr("sales.order_summary"),
		Lineage: &lineage.SelectMetadata{
			Columns: []lineage.Column{
				{
					Name:       "order_id",
					BaseTable:  "orders",
					Expression: "o.order_id",
					Lineage:    []lineage.Ref{{Table: "orders", Column: "order_id"}},
				},
				{
					Name:       "total",
					BaseTable:  "orders",
					Expression: "o.amount + i.tax",
					Lineage: []lineage.Ref{
						{Table: "orders", Column: "amount"},
						{Table: "items", Column: "tax"},
					},
				},
				{
					Name:       "label",
					Expression: "'x'",
					Lineage:    []lineage.Ref{},
				},
			},
		},
		Diagnostics: []lineage.Diagnostic{{Kind: lineage.DiagAmbiguousReference, Column: "id"}},
	}
}

func TestStore_Migrate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	version, err := store.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"views", "view_columns", "column_lineage", "scan_runs"} {
		rows, err := store.DB().QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		require.NoError(t, err, "table %s", table)
		require.NoError(t, rows.Close())
	}

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))
}

func TestStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.SaveView(context.Background(), "", "v", "v.sql", ordersView()))
	require.NoError(t, store.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	views, err := reopened.ListViews(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, path, reopened.Path())
}

func TestStore_SaveAndGetView(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveView(ctx, run.ID, "sales.order_summary", "views/summary.sql", ordersView()))

	views, err := store.ListViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "sales.order_summary", views[0].Name)
	assert.Equal(t, "views/summary.sql", views[0].Origin)
	assert.Equal(t, run.ID, views[0].RunID)
	assert.Equal(t, 3, views[0].Columns)
	assert.Equal(t, 1, views[0].Diagnostics)
	assert.False(t, views[0].UpdatedAt.IsZero())

	cols, err := store.GetViewColumns(ctx, "sales.order_summary")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "order_id", cols[0].Name)
	assert.Equal(t, []string{"orders.order_id"}, cols[0].Lineage)
	assert.Equal(t, "o.amount + i.tax", cols[1].Expression)
	assert.Equal(t, []string{"orders.amount", "items.tax"}, cols[1].Lineage)
	assert.Equal(t, "label", cols[2].Name)
	assert.Empty(t, cols[2].BaseTable)
	assert.Empty(t, cols[2].Lineage)
}

func TestStore_SaveViewReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveView(ctx, "", "v", "a.sql", ordersView()))

	replacement := &lineage.Result{
		Lineage: &lineage.SelectMetadata{
			Columns: []lineage.Column{
				{Name: "id", Expression: "id", Lineage: []lineage.Ref{{Table: "customers", Column: "id"}}},
			},
		},
	}
	require.NoError(t, store.SaveView(ctx, "", "v", "b.sql", replacement))

	cols, err := store.GetViewColumns(ctx, "v")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, []string{"customers.id"}, cols[0].Lineage)

	edges, err := store.Downstream(ctx, "orders", "")
	require.NoError(t, err)
	assert.Empty(t, edges, "old lineage must be gone")

	views, err := store.ListViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "b.sql", views[0].Origin)
	assert.Empty(t, views[0].RunID)
}

func TestStore_SaveViewDuplicateColumnNames(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	res := &lineage.Result{
		Lineage: &lineage.SelectMetadata{
			Columns: []lineage.Column{
				{Name: "a", Expression: "t.a", Lineage: []lineage.Ref{{Table: "t", Column: "a"}}},
				{Name: "a", Expression: "u.a", Lineage: []lineage.Ref{{Table: "u", Column: "a"}}},
			},
		},
	}
	require.NoError(t, store.SaveView(ctx, "", "dup", "", res))

	cols, err := store.GetViewColumns(ctx, "dup")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, []string{"u.a"}, cols[1].Lineage)
}

func TestStore_SaveViewWithoutLineage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveView(ctx, "", "staging.t", "", &lineage.Result{}))

	cols, err := store.GetViewColumns(ctx, "staging.t")
	require.NoError(t, err)
	assert.Empty(t, cols)

	assert.Error(t, store.SaveView(ctx, "", "", "", &lineage.Result{}))
}

func TestStore_Downstream(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveView(ctx, "", "sales.order_summary", "", ordersView()))

	tests := []struct {
		name   string
		table  string
		column string
		want   []Edge
	}{
		{
			name:   "single column",
			table:  "orders",
			column: "amount",
			want:   []Edge{{View: "sales.order_summary", Column: "total", SourceTable: "orders", SourceColumn: "amount"}},
		},
		{
			name:   "case insensitive",
			table:  "ITEMS",
			column: "Tax",
			want:   []Edge{{View: "sales.order_summary", Column: "total", SourceTable: "items", SourceColumn: "tax"}},
		},
		{
			name:  "whole table",
			table: "orders",
			want: []Edge{
				{View: "sales.order_summary", Column: "order_id", SourceTable: "orders", SourceColumn: "order_id"},
				{View: "sales.order_summary", Column: "total", SourceTable: "orders", SourceColumn: "amount"},
			},
		},
		{
			name:   "no dependents",
			table:  "customers",
			column: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, err := store.Downstream(ctx, tt.table, tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.want, edges)
		})
	}
}

func TestStore_LineageEdgesAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveView(ctx, "", "v", "", ordersView()))

	edges, err := store.LineageEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, edges, 3)

	require.NoError(t, store.DeleteView(ctx, "v"))
	edges, err = store.LineageEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)

	assert.ErrorIs(t, store.DeleteView(ctx, "v"), ErrNotFound)
	_, err = store.GetViewColumns(ctx, "v")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	run, err := store.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusFailed, 4, 1, "1 view failed"))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, 4, got.Views)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, "1 view failed", got.Error)
	require.NotNil(t, got.CompletedAt)

	latest, err = store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)

	assert.ErrorIs(t, store.CompleteRun(ctx, "missing", RunStatusCompleted, 0, 0, ""), ErrNotFound)
	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveViewLogsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	run, err := store.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveView(ctx, run.ID, "sales.order_summary", "orders.sql", ordersView()))

	var saved map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] == "view saved" {
			saved = entry
		}
	}
	require.NotNil(t, saved, buf.String())
	assert.Equal(t, "sales.order_summary", saved["view"])
	assert.Equal(t, run.ID, saved["run_id"])
}
