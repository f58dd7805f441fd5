package commands

import (
	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
	"github.com/spf13/cobra"
)

type dialectInfo struct {
	Name    string `json:"name" yaml:"name"`
	Default bool   `json:"default" yaml:"default"`
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported SQL dialects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer

			names := dialect.List()
			infos := make([]dialectInfo, len(names))
			for i, name := range names {
				infos[i] = dialectInfo{Name: name, Default: name == cmdCtx.Cfg.Dialect}
			}

			if handled, err := r.Data(infos); handled || err != nil {
				return err
			}

			rows := make([][]string, len(infos))
			for i, d := range infos {
				mark := ""
				if d.Default {
					mark = "*"
				}
				rows[i] = []string{d.Name, mark}
			}
			if r.EffectiveMode() == output.ModeTable {
				r.Table([]string{"Dialect", "Default"}, rows)
				return nil
			}
			for _, d := range infos {
				if d.Default {
					r.Println(r.Styles().Bold.Render(d.Name + " (default)"))
				} else {
					r.Println(d.Name)
				}
			}
			return nil
		},
	}
}
