package commands

import (
	"errors"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/leapstack-labs/leapsql/internal/impact"
	"github.com/spf13/cobra"
)

// ImpactOptions holds options for the impact command.
type ImpactOptions struct {
	Table    string
	Upstream bool
	Depth    int
}

// NewImpactCommand creates the impact command.
func NewImpactCommand() *cobra.Command {
	opts := &ImpactOptions{}

	cmd := &cobra.Command{
		Use:   "impact [table.column]",
		Short: "Show which view columns depend on a column",
		Long: `Query the lineage recorded by "scan" for the view columns derived from a
base column, transitively across views built on other views.

With --upstream the direction is reversed: the base columns a view column
derives from. With --table every column of a table is traced.`,
		Example: `  # View columns affected by a change to orders.amount
  viewlineage impact orders.amount

  # Everything built on the orders table, two levels deep
  viewlineage impact --table orders --depth 2

  # Where does a view column come from?
  viewlineage impact sales.summary.gross --upstream`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "Trace every column of a table")
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", false, "Trace sources instead of dependents")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

type impactReport struct {
	Target    string       `json:"target" yaml:"target"`
	Direction string       `json:"direction" yaml:"direction"`
	Impact    []impact.Hop `json:"impact" yaml:"impact"`
}

func runImpact(cmd *cobra.Command, args []string, opts *ImpactOptions) error {
	switch {
	case len(args) == 0 && opts.Table == "":
		return errors.New("give a table.column argument or --table")
	case len(args) == 1 && opts.Table != "":
		return errors.New("a column argument cannot be combined with --table")
	case opts.Table != "" && opts.Upstream:
		return errors.New("--table traces downstream only")
	case opts.Depth < 0:
		return errors.New("--depth must not be negative")
	}

	cmdCtx := NewCommandContext(cmd)
	store, cleanup, err := cmdCtx.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	edges, err := store.LineageEdges(cmd.Context())
	if err != nil {
		return err
	}
	g := impact.FromEdges(edges)

	rep := impactReport{Direction: "downstream"}
	switch {
	case opts.Table != "":
		rep.Target = opts.Table
		rep.Impact = g.DownstreamOfTable(opts.Table, opts.Depth)
	case opts.Upstream:
		rep.Target = args[0]
		rep.Direction = "upstream"
		rep.Impact = g.Upstream(impact.ColumnID(impact.SplitID(args[0])), opts.Depth)
	default:
		rep.Target = args[0]
		rep.Impact = g.Downstream(impact.ColumnID(impact.SplitID(args[0])), opts.Depth)
	}
	if rep.Impact == nil {
		rep.Impact = []impact.Hop{}
	}

	r := cmdCtx.Renderer
	if handled, err := r.Data(rep); handled || err != nil {
		return err
	}

	s := r.Styles()
	r.Println(s.Header1.Render(rep.Direction + " of " + rep.Target))
	if len(edges) == 0 {
		r.Warnf("no lineage recorded yet; run \"viewlineage scan\" first")
	}

	rows := make([][]string, 0, len(rep.Impact))
	for _, h := range rep.Impact {
		rows = append(rows, []string{strconv.Itoa(h.Depth), h.Table, h.Column})
	}
	if r.EffectiveMode() == output.ModeTable {
		r.Table([]string{"Depth", "Table", "Column"}, rows)
		return nil
	}
	if len(rows) == 0 {
		r.Println(s.Muted.Render("  (none)"))
	}
	for _, h := range rep.Impact {
		r.Printf("%s%s.%s\n", strings.Repeat("  ", h.Depth), h.Table, h.Column)
	}
	return nil
}
