// Package impact builds a column-level graph across many analyzed views and
// answers upstream and downstream impact queries over it.
//
// Nodes are "table.column" pairs; an edge runs from a base column to a view
// column derived from it. Because a view can itself be the base of another
// view, traversals are transitive across views of views.
package impact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
)

// Node is one column in the graph.
type Node struct {
	// ID is the normalized "table.column" key.
	ID     string
	Table  string
	Column string
	// View is set when the node is an output column of an analyzed view.
	View bool
}

// Hop is a node reached by a traversal and its distance from the start.
type Hop struct {
	ID     string `json:"id" yaml:"id"`
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
	Depth  int    `json:"depth" yaml:"depth"`
}

// Graph is a directed column graph.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // source -> derived columns
	parents map[string][]string // derived column -> sources
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

var quoteStripper = strings.NewReplacer("[", "", "]", "", `"`, "", "`", "")

// StripQuotes removes identifier quoting from a rendered name.
func StripQuotes(name string) string {
	return quoteStripper.Replace(name)
}

// NormalizeTable strips identifier quoting and lowercases a table name so
// that "[dbo].[Orders]" and dbo.orders name the same table.
func NormalizeTable(name string) string {
	return strings.ToLower(StripQuotes(name))
}

// ColumnID returns the node key for table.column.
func ColumnID(table, column string) string {
	return NormalizeTable(table) + "." + strings.ToLower(column)
}

// SplitID splits a node key, or a user-supplied "table.column", at its
// last dot.
func SplitID(id string) (table, column string) {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// AddNode adds a column node and returns it. Adding an existing node keeps
// it, marking it as a view column when view is set.
func (g *Graph) AddNode(table, column string, view bool) *Node {
	id := ColumnID(table, column)
	if n, ok := g.nodes[id]; ok {
		n.View = n.View || view
		return n
	}
	n := &Node{ID: id, Table: table, Column: column, View: view}
	g.nodes[id] = n
	g.edges[id] = []string{}
	g.parents[id] = []string{}
	return n
}

// AddEdge adds an edge from the source column to the derived column.
func (g *Graph) AddEdge(fromID, toID string) error {
	if _, ok := g.nodes[fromID]; !ok {
		return fmt.Errorf("source node %q does not exist", fromID)
	}
	if _, ok := g.nodes[toID]; !ok {
		return fmt.Errorf("derived node %q does not exist", toID)
	}
	if fromID == toID {
		return fmt.Errorf("self-loop detected: %s", fromID)
	}

	if !contains(g.edges[fromID], toID) {
		g.edges[fromID] = append(g.edges[fromID], toID)
	}
	if !contains(g.parents[toID], fromID) {
		g.parents[toID] = append(g.parents[toID], fromID)
	}
	return nil
}

// AddResult adds the columns of one analyzed view. Lineage references
// without a table are skipped.
func (g *Graph) AddResult(view string, res *lineage.Result) {
	if res == nil || res.Lineage == nil {
		return
	}
	for _, col := range res.Lineage.Columns {
		to := g.AddNode(view, col.Name, true)
		for _, ref := range col.Lineage {
			if ref.Table == "" {
				continue
			}
			from := g.AddNode(ref.Table, ref.Column, false)
			_ = g.AddEdge(from.ID, to.ID)
		}
	}
}

// AddEdges adds lineage edges loaded from the state store.
func (g *Graph) AddEdges(edges []state.Edge) {
	for _, e := range edges {
		to := g.AddNode(e.View, e.Column, true)
		if e.SourceTable == "" {
			continue
		}
		from := g.AddNode(e.SourceTable, e.SourceColumn, false)
		_ = g.AddEdge(from.ID, to.ID)
	}
}

// FromEdges builds a graph from stored lineage edges.
func FromEdges(edges []state.Edge) *Graph {
	g := NewGraph()
	g.AddEdges(edges)
	return g
}

// Node returns a node by key.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by key.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// Downstream returns every column derived from id, directly or through
// other views. A depth of 0 means unlimited.
func (g *Graph) Downstream(id string, depth int) []Hop {
	return g.walk([]string{id}, g.edges, depth)
}

// Upstream returns every column id derives from. A depth of 0 means
// unlimited.
func (g *Graph) Upstream(id string, depth int) []Hop {
	return g.walk([]string{id}, g.parents, depth)
}

// DownstreamOfTable returns the columns derived from any column of table.
func (g *Graph) DownstreamOfTable(table string, depth int) []Hop {
	norm := NormalizeTable(table)
	var starts []string
	for id := range g.nodes {
		if t, _ := SplitID(id); t == norm {
			starts = append(starts, id)
		}
	}
	sort.Strings(starts)
	return g.walk(starts, g.edges, depth)
}

// walk runs a breadth-first traversal from starts along adj. Start nodes are
// not reported.
func (g *Graph) walk(starts []string, adj map[string][]string, depth int) []Hop {
	seen := make(map[string]bool, len(starts))
	frontier := make([]string, 0, len(starts))
	for _, s := range starts {
		if _, ok := g.nodes[s]; ok && !seen[s] {
			seen[s] = true
			frontier = append(frontier, s)
		}
	}

	var hops []Hop
	for level := 1; len(frontier) > 0 && (depth <= 0 || level <= depth); level++ {
		var next []string
		for _, id := range frontier {
			for _, child := range adj[id] {
				if seen[child] {
					continue
				}
				seen[child] = true
				next = append(next, child)
				n := g.nodes[child]
				hops = append(hops, Hop{ID: n.ID, Table: n.Table, Column: n.Column, Depth: level})
			}
		}
		frontier = next
	}

	sort.SliceStable(hops, func(i, j int) bool {
		if hops[i].Depth != hops[j].Depth {
			return hops[i].Depth < hops[j].Depth
		}
		return hops[i].ID < hops[j].ID
	})
	return hops
}

// Roots returns the columns that derive from nothing.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns the columns nothing derives from.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// HasCycle reports whether view definitions reference each other, with the
// tables along one cycle. The check runs on the table-level graph so that a
// view reading another column of itself also counts.
func (g *Graph) HasCycle() (bool, []string) {
	tables := make(map[string][]string)
	for from, children := range g.edges {
		ft, _ := SplitID(from)
		for _, to := range children {
			tt, _ := SplitID(to)
			if !contains(tables[ft], tt) {
				tables[ft] = append(tables[ft], tt)
			}
		}
	}

	ids := make([]string, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
		sort.Strings(tables[id])
	}
	sort.Strings(ids)

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)
	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, child := range tables[id] {
			if child == id {
				cyclePath = []string{id, id}
				return true
			}
			if !visited[child] {
				path[child] = id
				if dfs(child) {
					return true
				}
			} else if recStack[child] {
				cyclePath = []string{child}
				for curr := id; curr != child; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{child}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range ids {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
