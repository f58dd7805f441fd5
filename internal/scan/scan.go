// Package scan analyzes many view definitions concurrently and optionally
// persists the results to the state store.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapsql/internal/impact"
	"github.com/leapstack-labs/leapsql/internal/source"
	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

// Options configures a Scanner.
type Options struct {
	Engine *lineage.Engine
	// Store is optional; when set, successful analyses are saved under a
	// new scan run.
	Store   *state.Store
	Workers int
	Logger  *slog.Logger
}

// Scanner runs the lineage engine over many definitions.
type Scanner struct {
	engine  *lineage.Engine
	store   *state.Store
	workers int
	logger  *slog.Logger
}

// New creates a scanner.
func New(opts Options) *Scanner {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		engine:  opts.Engine,
		store:   opts.Store,
		workers: workers,
		logger:  logger,
	}
}

// Outcome is the analysis of one definition.
type Outcome struct {
	Definition source.Definition
	// View is the name the result is stored under: the statement's view
	// name without quoting, else the definition's name.
	View   string
	Result *lineage.Result
	Err    error
}

// Report summarizes a scan.
type Report struct {
	RunID       string
	Outcomes    []Outcome
	Succeeded   int
	Failed      int
	Diagnostics int
	Duration    time.Duration
}

// Failures returns the outcomes that carry an error.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Graph builds the impact graph of every successful outcome.
func (r *Report) Graph() *impact.Graph {
	g := impact.NewGraph()
	for _, o := range r.Outcomes {
		if o.Err == nil {
			g.AddResult(o.View, o.Result)
		}
	}
	return g
}

// Run analyzes defs with the configured number of workers. A definition
// that fails to parse or save is recorded in the report and does not stop
// the scan; only cancellation of ctx returns an error.
func (s *Scanner) Run(ctx context.Context, defs []source.Definition) (*Report, error) {
	start := time.Now()
	report := &Report{Outcomes: make([]Outcome, len(defs))}

	if s.store != nil {
		run, err := s.store.CreateRun(ctx)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Outcomes[i] = s.analyze(def)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.completeRun(report, state.RunStatusFailed, err.Error())
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		s.completeRun(report, state.RunStatusFailed, err.Error())
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		if o.Err == nil && s.store != nil {
			if err := s.store.SaveView(ctx, report.RunID, o.View, o.Definition.Origin, o.Result); err != nil {
				o.Err = err
			}
		}
		if o.Err != nil {
			report.Failed++
			s.logger.Warn("definition failed", slog.String("origin", o.Definition.Origin), slog.Any("error", o.Err))
			continue
		}
		report.Succeeded++
		report.Diagnostics += len(o.Result.Diagnostics)
	}

	report.Duration = time.Since(start)

	var errMsg string
	if report.Failed > 0 {
		errMsg = fmt.Sprintf("%d of %d definitions failed", report.Failed, len(defs))
	}
	s.completeRun(report, state.RunStatusCompleted, errMsg)

	s.logger.Info("scan finished",
		slog.Int("definitions", len(defs)),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (s *Scanner) analyze(def source.Definition) Outcome {
	out := Outcome{Definition: def, View: def.Name}
	res, err := s.engine.Process(def.SQL)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", def.Origin, err)
		return out
	}
	out.Result = res
	if res.ViewName != nil {
		out.View = impact.StripQuotes(*res.ViewName)
	}
	s.logger.Debug("definition analyzed", slog.String("view", out.View), slog.Int("diagnostics", len(res.Diagnostics)))
	return out
}

func (s *Scanner) completeRun(report *Report, status state.RunStatus, errMsg string) {
	if s.store == nil || report.RunID == "" {
		return
	}
	// The run must be closed even when the scan context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CompleteRun(ctx, report.RunID, status, report.Succeeded, report.Failed, errMsg); err != nil {
		s.logger.Warn("failed to complete scan run", slog.String("run_id", report.RunID), slog.Any("error", err))
	}
}
