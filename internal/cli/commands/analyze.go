package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leapsql/internal/source"
	"github.com/spf13/cobra"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	SQL     string
	ByTable bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Show column lineage for view definitions",
		Long: `Analyze CREATE VIEW statements (or bare queries) and report, for every
output column, the base-table columns it derives from.

Input is read from the given files, from --sql, or from standard input when
neither is given (or the file is "-").

Output adapts to environment:
  - Terminal: table
  - Piped/Scripted: JSON

Use --output to override: auto, json, yaml, table, text`,
		Example: `  # Analyze a view file
  viewlineage analyze views/sales_summary.sql

  # Analyze inline SQL with the Postgres dialect
  viewlineage analyze --dialect postgres --sql "SELECT o.id FROM orders o"

  # Pipe a definition and get YAML
  cat view.sql | viewlineage analyze -o yaml

  # Base columns used by a view, grouped by table
  viewlineage analyze views/sales_summary.sql --by-table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SQL, "sql", "e", "", "SQL statement to analyze")
	cmd.Flags().BoolVar(&opts.ByTable, "by-table", false, "Group lineage by base table instead of by output column")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	cmdCtx := NewCommandContext(cmd)

	eng, err := cmdCtx.NewEngine()
	if err != nil {
		return err
	}

	inputs, err := readInputs(cmd.InOrStdin(), args, opts.SQL)
	if err != nil {
		return err
	}

	items := make([]analyzed, 0, len(inputs))
	for _, in := range inputs {
		res, err := eng.Process(in.SQL)
		if err != nil {
			return fmt.Errorf("%s: %w", in.Origin, err)
		}
		items = append(items, analyzed{Source: in.Origin, Result: *res})
	}

	if opts.ByTable {
		return renderGrouped(cmdCtx.Renderer, items)
	}
	return renderResults(cmdCtx.Renderer, items)
}

// readInputs collects the statements to analyze.
func readInputs(stdin io.Reader, args []string, inline string) ([]source.Definition, error) {
	if inline != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--sql cannot be combined with file arguments")
		}
		return []source.Definition{{Origin: "<sql>", SQL: inline}}, nil
	}
	if len(args) == 0 {
		args = []string{"-"}
	}

	defs := make([]source.Definition, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read standard input: %w", err)
			}
			if strings.TrimSpace(string(data)) == "" {
				return nil, fmt.Errorf("no SQL given on standard input")
			}
			defs = append(defs, source.Definition{Origin: "<stdin>", SQL: string(data)})
			continue
		}
		def, err := source.ReadFile(arg)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
