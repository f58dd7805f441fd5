// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/leapstack-labs/leapsql/internal/testutil"
)

// Views used by CLI tests. summary reads orders and customers; report is a
// view over summary.
const (
	SummaryView = `CREATE VIEW sales.summary AS
SELECT o.order_id, c.name AS customer_name, o.amount * 1.2 AS gross
FROM orders o
JOIN customers c ON o.customer_id = c.id
WHERE o.status = 'open'`

	ReportView = `CREATE VIEW sales.report AS
SELECT s.customer_name, SUM(s.gross) AS total
FROM sales.summary s
GROUP BY s.customer_name`
)

// SetupViewsDir creates a temporary directory holding the test views and
// returns its path.
func SetupViewsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"summary.sql":      SummaryView,
		"marts/report.sql": ReportView,
		"README.md":        "not a view",
	})
	return dir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a test renderer with the given mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the captured standard output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the captured error output.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContainsAll checks that s contains every expected substring.
func AssertContainsAll(t *testing.T, s string, expected ...string) {
	t.Helper()
	for _, e := range expected {
		if !strings.Contains(s, e) {
			t.Errorf("output does not contain %q:\n%s", e, s)
		}
	}
}
