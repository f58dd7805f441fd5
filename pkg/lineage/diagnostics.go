package lineage

import (
	"fmt"
	"strings"
)

// DiagnosticKind classifies a resolution problem.
type DiagnosticKind string

// Diagnostic kinds.
const (
	DiagUnresolvedReference DiagnosticKind = "unresolved_reference"
	DiagAmbiguousReference  DiagnosticKind = "ambiguous_reference"
	DiagCyclicReference     DiagnosticKind = "cyclic_reference"
	DiagDepthExceeded       DiagnosticKind = "depth_exceeded"
)

// Diagnostic records a reference that could not be resolved exactly.
// Diagnostics never stop processing; the affected column falls back to a
// best-effort lineage.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind" yaml:"kind"`
	Qualifier  string         `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	Column     string         `json:"column" yaml:"column"`
	Candidates []string       `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Message    string         `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// diagnostics collects deduplicated diagnostics in first-seen order.
type diagnostics struct {
	list []Diagnostic
	seen map[string]struct{}
}

func (d *diagnostics) add(diag Diagnostic) {
	key := string(diag.Kind) + "\x00" + strings.ToLower(diag.Qualifier) + "\x00" + strings.ToLower(diag.Column)
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[key]; ok {
		return
	}
	d.seen[key] = struct{}{}
	d.list = append(d.list, diag)
}

func (d *diagnostics) unresolved(qualifier, column string) {
	d.add(Diagnostic{
		Kind:      DiagUnresolvedReference,
		Qualifier: qualifier,
		Column:    column,
		Message:   fmt.Sprintf("qualifier %q is not bound in scope", qualifier),
	})
}

func (d *diagnostics) ambiguous(column string, candidates []string) {
	d.add(Diagnostic{
		Kind:       DiagAmbiguousReference,
		Column:     column,
		Candidates: candidates,
		Message:    fmt.Sprintf("column %q may come from %s", column, strings.Join(candidates, ", ")),
	})
}

func (d *diagnostics) cyclic(cte, column string) {
	d.add(Diagnostic{
		Kind:      DiagCyclicReference,
		Qualifier: cte,
		Column:    column,
		Message:   fmt.Sprintf("CTE %q refers to itself while resolving %q", cte, column),
	})
}

func (d *diagnostics) depthExceeded(qualifier, column string, limit int) {
	d.add(Diagnostic{
		Kind:      DiagDepthExceeded,
		Qualifier: qualifier,
		Column:    column,
		Message:   fmt.Sprintf("resolution deeper than %d levels", limit),
	})
}
