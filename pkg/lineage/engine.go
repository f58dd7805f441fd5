package lineage

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapsql/pkg/core"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/leapstack-labs/leapsql/pkg/format"
	"github.com/leapstack-labs/leapsql/pkg/parser"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultDialect  = "tsql"
	DefaultMaxDepth = 64
)

// Options configures an Engine.
type Options struct {
	// Dialect names a registered dialect. Defaults to DefaultDialect.
	Dialect string
	// MaxDepth bounds subquery and CTE nesting during resolution.
	MaxDepth int
	// Catalog optionally describes table columns.
	Catalog Catalog
	Logger  *slog.Logger
}

// Engine turns SQL text into a lineage Result. An Engine holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	dialect  *dialect.Dialect
	maxDepth int
	catalog  Catalog
	logger   *slog.Logger
}

// NewEngine creates an engine for the given options.
func NewEngine(opts Options) (*Engine, error) {
	name := opts.Dialect
	if name == "" {
		name = DefaultDialect
	}
	d, ok := dialect.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (available: %v)", name, dialect.List())
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		dialect:  d,
		maxDepth: maxDepth,
		catalog:  opts.Catalog,
		logger:   logger,
	}, nil
}

// Dialect returns the engine's dialect.
func (e *Engine) Dialect() *dialect.Dialect {
	return e.dialect
}

// Process parses one statement and computes the lineage of its query.
// Only a parse failure is an error; a statement without a query yields a
// Result with nil Lineage.
func (e *Engine) Process(sql string) (*Result, error) {
	stmt, err := parser.Parse(sql, e.dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}

	result := &Result{ViewName: viewName(stmt, e.dialect)}

	q := topQuery(stmt)
	if q == nil {
		e.logger.Debug("statement has no query", slog.String("kind", stmt.Kind().String()))
		return result, nil
	}

	a := newAnalysis(e.dialect, e.catalog, e.maxDepth, e.logger, buildRegistry(stmt))
	result.Lineage = a.analyze(q)
	result.Diagnostics = a.diags.list

	e.logger.Debug("computed lineage",
		slog.Int("columns", len(result.Lineage.Columns)),
		slog.Int("ctes", len(a.ctes)),
		slog.Int("diagnostics", len(result.Diagnostics)))
	for _, d := range result.Diagnostics {
		e.logger.Debug("lineage diagnostic", slog.String("kind", string(d.Kind)), slog.String("message", d.Message))
	}
	return result, nil
}

func viewName(stmt core.Statement, d *dialect.Dialect) *string {
	var name core.ObjectName
	switch s := stmt.(type) {
	case *core.CreateView:
		name = s.Name
	case *core.CreateTable:
		name = s.Name
	default:
		return nil
	}
	rendered := format.Name(name, d)
	return &rendered
}
