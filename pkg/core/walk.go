package core

// children accumulates child nodes, skipping absent ones.
type children []Node

func (c *children) expr(e Expr) {
	if e != nil {
		*c = append(*c, e)
	}
}

func (c *children) exprs(es []Expr) {
	for _, e := range es {
		c.expr(e)
	}
}

func (c *children) query(q Query) {
	if q != nil {
		*c = append(*c, q)
	}
}

func (c *children) order(items []OrderItem) {
	for _, it := range items {
		c.expr(it.Expr)
	}
}

// Children returns the direct children of n in syntactic order.
// A query's WITH clause is returned after the query body so that a
// depth-first search finds the main SELECT before any CTE body.
func Children(n Node) []Node {
	var c children
	switch n := n.(type) {
	case *CreateView:
		c.query(n.Query)
	case *CreateTable:
		c.query(n.Query)
	case *Select:
		if n.Top != nil {
			c.expr(n.Top.Count)
		}
		c.exprs(n.DistinctOn)
		c.exprs(n.Columns)
		if n.From != nil {
			if n.From.Source != nil {
				c = append(c, n.From.Source)
			}
			for _, j := range n.From.Joins {
				c = append(c, j)
			}
		}
		c.expr(n.Where)
		c.exprs(n.GroupBy)
		c.expr(n.Having)
		c.expr(n.Qualify)
		c.order(n.OrderBy)
		c.expr(n.Limit)
		c.expr(n.Offset)
		c.expr(n.Fetch)
		if n.With != nil {
			c = append(c, n.With)
		}
	case *SetOp:
		c.query(n.Left)
		c.query(n.Right)
		c.order(n.OrderBy)
		c.expr(n.Limit)
		c.expr(n.Offset)
		if n.With != nil {
			c = append(c, n.With)
		}
	case *With:
		for _, cte := range n.CTEs {
			c = append(c, cte)
		}
	case *CTE:
		c.query(n.Query)
	case *Subquery:
		c.query(n.Query)
	case *TableFunction:
		if n.Func != nil {
			c = append(c, n.Func)
		}
	case *Join:
		if n.Right != nil {
			c = append(c, n.Right)
		}
		c.expr(n.On)
	case *Alias:
		c.expr(n.Expr)
	case *Function:
		c.exprs(n.Args)
		c.order(n.OrderBy)
		c.order(n.WithinGroup)
		c.expr(n.Filter)
		if n.Over != nil {
			c.exprs(n.Over.PartitionBy)
			c.order(n.Over.OrderBy)
			if f := n.Over.Frame; f != nil {
				c.expr(f.Start.Offset)
				if f.End != nil {
					c.expr(f.End.Offset)
				}
			}
		}
	case *Binary:
		c.expr(n.Left)
		c.expr(n.Right)
	case *Unary:
		c.expr(n.Expr)
	case *Paren:
		c.expr(n.Expr)
	case *Case:
		c.expr(n.Operand)
		for _, w := range n.Whens {
			c.expr(w.Cond)
			c.expr(w.Result)
		}
		c.expr(n.Else)
	case *Cast:
		c.expr(n.Expr)
		c.expr(n.Style)
	case *In:
		c.expr(n.Expr)
		c.exprs(n.Values)
		c.query(n.Query)
	case *Between:
		c.expr(n.Expr)
		c.expr(n.Low)
		c.expr(n.High)
	case *Like:
		c.expr(n.Expr)
		c.expr(n.Pattern)
		c.expr(n.Escape)
	case *Is:
		c.expr(n.Expr)
	case *Exists:
		c.query(n.Query)
	case *SubqueryExpr:
		c.query(n.Query)
	case *Interval:
		c.expr(n.Value)
		if n.Unit != nil {
			c = append(c, n.Unit)
		}
	case *Extract:
		if n.Field != nil {
			c = append(c, n.Field)
		}
		c.expr(n.From)
	}
	return c
}

// Walk traverses the tree depth-first in pre-order. If fn returns false the
// children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range Children(n) {
		Walk(child, fn)
	}
}

// Find returns the first node (depth-first, pre-order) whose kind is one of
// kinds, or nil.
func Find(root Node, kinds ...Kind) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		for _, k := range kinds {
			if n.Kind() == k {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// FindAll returns every node of the given kind in depth-first pre-order.
func FindAll(root Node, kind Kind) []Node {
	var out []Node
	Walk(root, func(n Node) bool {
		if n.Kind() == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Count returns the number of nodes in the tree.
func Count(root Node) int {
	total := 0
	Walk(root, func(Node) bool {
		total++
		return true
	})
	return total
}
