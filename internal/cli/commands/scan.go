package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/leapstack-labs/leapsql/internal/impact"
	"github.com/leapstack-labs/leapsql/internal/scan"
	"github.com/leapstack-labs/leapsql/internal/source"
	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/spf13/cobra"
)

// ScanOptions holds options for the scan command.
type ScanOptions struct {
	Watch bool
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Analyze every view definition and record its lineage",
		Long: `Analyze all view definitions from a directory of SQL files, or from a
database catalog (source.driver and source.dsn), and store their column
lineage in the state database for impact queries.

Definitions that fail to parse are reported and do not stop the scan; the
command exits non-zero when any failed.`,
		Example: `  # Scan the configured source directory
  viewlineage scan

  # Scan a directory and keep watching it
  viewlineage scan ./views --watch

  # Scan view definitions from Postgres
  viewlineage scan --driver pgx --dsn "postgres://localhost/warehouse"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-analyze files when they change")

	return cmd
}

func runScan(cmd *cobra.Command, args []string, opts *ScanOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()
	cfg := cmdCtx.Cfg

	dir := cfg.Source.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	var lister source.Lister
	var extra lineage.Schema
	switch {
	case dir != "":
		lister = source.Dir{Root: dir, Pattern: cfg.Source.Pattern}
	case cfg.Source.Driver != "":
		if opts.Watch {
			return errors.New("--watch needs a source directory")
		}
		catalog, err := source.OpenCatalog(ctx, cfg.Source.Driver, cfg.Source.DSN, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = catalog.Close() }()
		if extra, err = catalog.Columns(ctx); err != nil {
			return err
		}
		lister = catalog
	default:
		return errors.New("no source configured: pass a directory, or set source.dir or source.driver")
	}

	engineOpts, err := cmdCtx.EngineOptions(extra)
	if err != nil {
		return err
	}
	eng, err := lineage.NewEngine(engineOpts)
	if err != nil {
		return err
	}

	store, cleanup, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	scanner := scan.New(scan.Options{
		Engine:  eng,
		Store:   store,
		Workers: cfg.Workers,
		Logger:  cmdCtx.Logger,
	})

	defs, err := lister.List(ctx)
	if err != nil {
		return err
	}
	report, err := scanner.Run(ctx, defs)
	if err != nil {
		return err
	}
	if err := renderScanReport(ctx, cmdCtx.Renderer, store, report); err != nil {
		return err
	}

	if !opts.Watch {
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d definitions failed", report.Failed, len(defs))
		}
		return nil
	}

	r := cmdCtx.Renderer
	r.Successf("watching %s for changes (Ctrl+C to stop)", dir)
	d := source.Dir{Root: dir, Pattern: cfg.Source.Pattern}
	return source.Watch(ctx, d, source.DefaultDebounce, cmdCtx.Logger, func(paths []string) {
		changed := make([]source.Definition, 0, len(paths))
		for _, p := range paths {
			def, err := source.ReadFile(p)
			if err != nil {
				r.Warnf("%v", err)
				continue
			}
			changed = append(changed, def)
		}
		report, err := scanner.Run(ctx, changed)
		if err != nil {
			r.Warnf("rescan failed: %v", err)
			return
		}
		if err := renderScanReport(ctx, r, store, report); err != nil {
			r.Warnf("%v", err)
		}
	})
}

type scanView struct {
	View        string `json:"view" yaml:"view"`
	Origin      string `json:"origin" yaml:"origin"`
	Columns     int    `json:"columns" yaml:"columns"`
	Diagnostics int    `json:"diagnostics" yaml:"diagnostics"`
}

type scanFailure struct {
	Origin string `json:"origin" yaml:"origin"`
	Error  string `json:"error" yaml:"error"`
}

type scanSummary struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Succeeded   int           `json:"succeeded" yaml:"succeeded"`
	Failed      int           `json:"failed" yaml:"failed"`
	Diagnostics int           `json:"diagnostics" yaml:"diagnostics"`
	Views       []scanView    `json:"views" yaml:"views"`
	Failures    []scanFailure `json:"failures" yaml:"failures"`
	Cycle       []string      `json:"cycle,omitempty" yaml:"cycle,omitempty"`
}

func summarize(report *scan.Report) scanSummary {
	sum := scanSummary{
		RunID:       report.RunID,
		Succeeded:   report.Succeeded,
		Failed:      report.Failed,
		Diagnostics: report.Diagnostics,
		Views:       []scanView{},
		Failures:    []scanFailure{},
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			sum.Failures = append(sum.Failures, scanFailure{Origin: o.Definition.Origin, Error: o.Err.Error()})
			continue
		}
		v := scanView{View: o.View, Origin: o.Definition.Origin, Diagnostics: len(o.Result.Diagnostics)}
		if o.Result.Lineage != nil {
			v.Columns = len(o.Result.Lineage.Columns)
		}
		sum.Views = append(sum.Views, v)
	}
	return sum
}

// renderScanReport writes the report. Cycles are checked across every view
// in the store, not only the ones just scanned.
func renderScanReport(ctx context.Context, r *output.Renderer, store *state.Store, report *scan.Report) error {
	sum := summarize(report)

	edges, err := store.LineageEdges(ctx)
	if err != nil {
		return err
	}
	if hasCycle, path := impact.FromEdges(edges).HasCycle(); hasCycle {
		sum.Cycle = path
	}

	if handled, err := r.Data(sum); handled || err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeTable {
		rows := make([][]string, 0, len(sum.Views))
		for _, v := range sum.Views {
			rows = append(rows, []string{v.View, strconv.Itoa(v.Columns), strconv.Itoa(v.Diagnostics), v.Origin})
		}
		r.Table([]string{"View", "Columns", "Diagnostics", "Origin"}, rows)
	} else {
		s := r.Styles()
		for _, v := range sum.Views {
			r.Printf("%s %s\n", s.Bold.Render(v.View), s.Muted.Render(fmt.Sprintf("(%d columns, %d diagnostics) %s", v.Columns, v.Diagnostics, v.Origin)))
		}
	}

	for _, f := range sum.Failures {
		r.Warnf("%s", f.Error)
	}
	if len(sum.Cycle) > 0 {
		r.Warnf("views reference each other: %s", strings.Join(sum.Cycle, " -> "))
	}
	r.Successf("scanned %d definitions: %d ok, %d failed, %d diagnostics",
		len(report.Outcomes), sum.Succeeded, sum.Failed, sum.Diagnostics)
	return nil
}
