package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
)

// analyzed is one analyzed input. Structured output inlines the result.
type analyzed struct {
	Source         string `json:"source" yaml:"source"`
	lineage.Result `yaml:",inline"`
}

// renderResults writes analyzed inputs in the renderer's effective mode. A
// single input is written as a bare result document.
func renderResults(r *output.Renderer, items []analyzed) error {
	var doc any = items
	if len(items) == 1 {
		doc = &items[0].Result
	}
	if handled, err := r.Data(doc); handled || err != nil {
		return err
	}

	for i, item := range items {
		if i > 0 {
			r.Println()
		}
		if r.EffectiveMode() == output.ModeTable {
			renderResultTable(r, item)
		} else {
			renderResultText(r, item)
		}
	}
	return nil
}

func viewTitle(item analyzed) string {
	if item.ViewName != nil {
		return *item.ViewName
	}
	if item.Source != "" {
		return item.Source
	}
	return "query"
}

func renderResultTable(r *output.Renderer, item analyzed) {
	s := r.Styles()
	r.Println(s.Header1.Render("Lineage: " + viewTitle(item)))

	if item.Lineage == nil {
		r.Println(s.Muted.Render("statement has no query"))
		return
	}

	rows := make([][]string, 0, len(item.Lineage.Columns))
	for _, c := range item.Lineage.Columns {
		rows = append(rows, []string{c.Name, c.Expression, strings.Join(lineage.RefStrings(c.Lineage), ", ")})
	}
	r.Table([]string{"Column", "Expression", "Lineage"}, rows)

	if len(item.Lineage.Tables) > 0 {
		rows = rows[:0]
		for _, t := range item.Lineage.Tables {
			rows = append(rows, []string{t.Name, t.Alias})
		}
		r.Println()
		r.Table([]string{"Table", "Alias"}, rows)
	}

	if len(item.Lineage.Joins) > 0 {
		rows = rows[:0]
		for _, j := range item.Lineage.Joins {
			rows = append(rows, []string{j.Type, j.Table, deref(j.Condition)})
		}
		r.Println()
		r.Table([]string{"Join", "Table", "Condition"}, rows)
	}

	for _, f := range item.Lineage.Filters {
		r.Println()
		r.Printf("%s %s\n", s.Bold.Render("Filter:"), f)
	}
	renderDiagnostics(r, item.Diagnostics)
}

func renderResultText(r *output.Renderer, item analyzed) {
	s := r.Styles()
	r.Println(s.Header1.Render(viewTitle(item)))

	if item.Lineage == nil {
		r.Println(s.Muted.Render("  statement has no query"))
		return
	}

	r.Println(s.Header2.Render("Columns"))
	for _, c := range item.Lineage.Columns {
		refs := strings.Join(lineage.RefStrings(c.Lineage), ", ")
		if refs == "" {
			refs = s.Muted.Render("(no columns)")
		}
		r.Printf("  %s <- %s\n", s.Bold.Render(c.Name), refs)
		if c.Expression != c.Name {
			r.Printf("    %s\n", s.Muted.Render(c.Expression))
		}
	}

	if len(item.Lineage.Tables) > 0 {
		r.Println(s.Header2.Render("Tables"))
		for _, t := range item.Lineage.Tables {
			r.Printf("  %s %s\n", t.Name, s.Muted.Render(t.Alias))
		}
	}
	if len(item.Lineage.Joins) > 0 {
		r.Println(s.Header2.Render("Joins"))
		for _, j := range item.Lineage.Joins {
			line := fmt.Sprintf("  %s %s", j.Type, j.Table)
			if j.Condition != nil {
				cond := *j.Condition
				if !strings.HasPrefix(cond, "USING") {
					cond = "ON " + cond
				}
				line += " " + cond
			}
			r.Println(line)
		}
	}
	if len(item.Lineage.Filters) > 0 {
		r.Println(s.Header2.Render("Filters"))
		for _, f := range item.Lineage.Filters {
			r.Printf("  %s\n", f)
		}
	}
	renderDiagnostics(r, item.Diagnostics)
}

// groupedResult is the by-table form of one analyzed input.
type groupedResult struct {
	Source   string              `json:"source" yaml:"source"`
	ViewName *string             `json:"view_name" yaml:"view_name"`
	Tables   map[string][]string `json:"tables" yaml:"tables"`
}

// renderGrouped writes the base columns of each input grouped by table.
func renderGrouped(r *output.Renderer, items []analyzed) error {
	docs := make([]groupedResult, 0, len(items))
	for _, item := range items {
		tables := item.ByTable()
		if tables == nil {
			tables = map[string][]string{}
		}
		docs = append(docs, groupedResult{Source: item.Source, ViewName: item.ViewName, Tables: tables})
	}
	var doc any = docs
	if len(docs) == 1 {
		doc = docs[0]
	}
	if handled, err := r.Data(doc); handled || err != nil {
		return err
	}

	s := r.Styles()
	for i, item := range items {
		if i > 0 {
			r.Println()
		}
		names := slices.Sorted(maps.Keys(docs[i].Tables))
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strings.Join(docs[i].Tables[name], ", ")})
		}
		if r.EffectiveMode() == output.ModeTable {
			r.Println(s.Header1.Render("Lineage: " + viewTitle(item)))
			r.Table([]string{"Table", "Columns"}, rows)
		} else {
			r.Println(s.Header1.Render(viewTitle(item)))
			for _, row := range rows {
				r.Printf("  %s: %s\n", s.Bold.Render(row[0]), row[1])
			}
		}
		renderDiagnostics(r, item.Diagnostics)
	}
	return nil
}

func renderDiagnostics(r *output.Renderer, diags []lineage.Diagnostic) {
	for _, d := range diags {
		r.Warnf("%s", d.String())
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
