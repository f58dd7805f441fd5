package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/internal/testutil"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryView = `CREATE VIEW sales.summary AS
SELECT o.order_id, o.amount * 1.2 AS gross FROM orders o`

const reportView = `CREATE VIEW sales.report AS
SELECT SUM(s.gross) AS total FROM sales.summary s`

func newTestServer(t *testing.T, withStore bool) (*Server, *state.Store) {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	var store *state.Store
	if withStore {
		var err error
		store, err = state.Open(":memory:", logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.Migrate(context.Background()))
	}

	srv, err := New(Config{Addr: "127.0.0.1:0", Store: store, Logger: logger})
	require.NoError(t, err)
	return srv, store
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec, body := do(t, srv.Handler(), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLineageEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, false)
	h := srv.Handler()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		check       func(t *testing.T, body map[string]any)
	}{
		{
			name:        "json body",
			contentType: "application/json",
			body:        `{"sql": "CREATE VIEW v AS SELECT a.x FROM t a"}`,
			wantStatus:  http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "v", body["view_name"])
				cols := body["lineage"].(map[string]any)["columns"].([]any)
				require.Len(t, cols, 1)
				assert.Equal(t, []any{"t.x"}, cols[0].(map[string]any)["lineage"])
			},
		},
		{
			name:        "grouped by table",
			contentType: "application/json",
			body:        `{"sql": "SELECT o.id, o.amount, c.name FROM orders o JOIN customers c ON o.cid = c.id", "by_table": true}`,
			wantStatus:  http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, map[string]any{
					"orders":    []any{"amount", "id"},
					"customers": []any{"name"},
				}, body["by_table"])
				assert.NotNil(t, body["lineage"])
			},
		},
		{
			name:        "not grouped by default",
			contentType: "application/json",
			body:        `{"sql": "SELECT o.id FROM orders o"}`,
			wantStatus:  http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.NotContains(t, body, "by_table")
			},
		},
		{
			name:        "plain text body",
			contentType: "text/plain; charset=utf-8",
			body:        "SELECT id FROM customers",
			wantStatus:  http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Nil(t, body["view_name"])
			},
		},
		{
			name:        "dialect override",
			contentType: "application/json",
			body:        `{"sql": "SELECT ` + "`o`.`id`" + ` FROM orders o", "dialect": "mysql"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "unknown dialect",
			contentType: "application/json",
			body:        `{"sql": "SELECT 1", "dialect": "cobol"}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "parse error",
			contentType: "application/json",
			body:        `{"sql": "SELECT a FROM t WHERE ("}`,
			wantStatus:  http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body["error"], "failed to parse statement")
				assert.EqualValues(t, 1, body["line"])
			},
		},
		{
			name:        "empty sql",
			contentType: "application/json",
			body:        `{"sql": "  "}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "unknown field",
			contentType: "application/json",
			body:        `{"query": "SELECT 1"}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "save without store",
			contentType: "application/json",
			body:        `{"sql": "CREATE VIEW v AS SELECT 1 AS x", "save": true}`,
			wantStatus:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/v1/lineage", tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestStoreEndpointsWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t, false)
	for _, path := range []string{"/v1/views", "/v1/views/v", "/v1/impact?column=t.c"} {
		rec, _ := do(t, srv.Handler(), http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestSaveAndQueryViews(t *testing.T) {
	srv, _ := newTestServer(t, true)
	h := srv.Handler()

	for _, sql := range []string{summaryView, reportView} {
		rec, _ := do(t, h, http.MethodPost, "/v1/lineage", "application/json",
			jsonBody(t, map[string]any{"sql": sql, "save": true}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec, body := do(t, h, http.MethodPost, "/v1/lineage", "application/json",
		`{"sql": "SELECT 1 AS x", "save": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "name is required")

	rec, body = do(t, h, http.MethodGet, "/v1/views", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	views := body["views"].([]any)
	require.Len(t, views, 2)
	assert.Equal(t, "sales.report", views[0].(map[string]any)["name"])
	assert.Equal(t, "api", views[0].(map[string]any)["origin"])

	rec, body = do(t, h, http.MethodGet, "/v1/views/sales.summary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cols := body["columns"].([]any)
	require.Len(t, cols, 2)
	assert.Equal(t, []any{"orders.amount"}, cols[1].(map[string]any)["lineage"])

	rec, _ = do(t, h, http.MethodGet, "/v1/views/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImpactEndpoint(t *testing.T) {
	srv, store := newTestServer(t, true)
	h := srv.Handler()
	ctx := context.Background()

	eng, err := lineage.NewEngine(lineage.Options{})
	require.NoError(t, err)
	for _, sql := range []string{summaryView, reportView} {
		res, err := eng.Process(sql)
		require.NoError(t, err)
		require.NoError(t, store.SaveView(ctx, "", *res.ViewName, "test", res))
	}

	hopIDs := func(body map[string]any) []string {
		var ids []string
		for _, h := range body["impact"].([]any) {
			ids = append(ids, h.(map[string]any)["id"].(string))
		}
		return ids
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []string
	}{
		{"downstream", "column=orders.amount", http.StatusOK, []string{"sales.summary.gross", "sales.report.total"}},
		{"depth", "column=orders.amount&depth=1", http.StatusOK, []string{"sales.summary.gross"}},
		{"upstream", "column=sales.report.total&direction=upstream", http.StatusOK, []string{"sales.summary.gross", "orders.amount"}},
		{"table", "table=orders", http.StatusOK, []string{"sales.summary.gross", "sales.summary.order_id", "sales.report.total"}},
		{"unknown column", "column=nope.x", http.StatusOK, nil},
		{"missing target", "", http.StatusBadRequest, nil},
		{"bad depth", "column=orders.amount&depth=-1", http.StatusBadRequest, nil},
		{"bad direction", "column=orders.amount&direction=sideways", http.StatusBadRequest, nil},
		{"table upstream", "table=orders&direction=upstream", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodGet, "/v1/impact?"+tt.query, "", "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantIDs, hopIDs(body))
			}
		})
	}
}

func TestServeGracefulShutdown(t *testing.T) {
	srv, _ := newTestServer(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var addr string
	select {
	case a := <-srv.Listening():
		addr = a.String()
	case err := <-done:
		t.Fatalf("serve failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr)) //nolint:noctx
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	_, err := New(Config{EngineOptions: lineage.Options{Dialect: "cobol"}})
	assert.Error(t, err)
}
