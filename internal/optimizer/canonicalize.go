package optimizer

import (
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
)

// canonicalize is pass 1: top-down De Morgan sinking,
// double-negation elimination, negated-constant folding, and flattening
// of associative operators. It returns the (possibly different) root
// node, since collapsing `not(not(x))` or a unary and/or can replace the
// node passed in.
func canonicalize(arena *expr.Arena, n *expr.Node, tracer *debug.Tracer) *expr.Node {
	if n == nil {
		return nil
	}

	if n.Kind.IsAssociative() {
		var flat []*expr.Node
		for _, c := range n.Children() {
			flat = append(flat, canonicalize(arena, c, tracer))
		}
		flat = flattenAssociative(n.Kind, flat)
		n.SetChildren(flat)
		return collapseUnary(n, tracer)
	}

	if n.Kind != expr.Not {
		return n
	}

	child := canonicalize(arena, n.Children()[0], tracer)

	switch child.Kind {
	case expr.True:
		tracer.Rewrite("canonicalize", "not(true)", "false")
		return arena.New(expr.False, n.ArgvSpan)
	case expr.False:
		tracer.Rewrite("canonicalize", "not(false)", "true")
		return arena.New(expr.True, n.ArgvSpan)
	case expr.Not:
		tracer.Rewrite("canonicalize", "not(not(x))", "x")
		return child.Children()[0]
	case expr.And:
		tracer.Rewrite("canonicalize", "not(and(...))", "or(not(...))")
		return sinkNegation(arena, expr.Or, child, tracer)
	case expr.Or:
		tracer.Rewrite("canonicalize", "not(or(...))", "and(not(...))")
		return sinkNegation(arena, expr.And, child, tracer)
	case expr.Comma:
		// Negation commutes past every non-final child of comma, since
		// only the last child's value is the comma's result.
		kids := child.Children()
		out := make([]*expr.Node, len(kids))
		copy(out, kids)
		last := out[len(out)-1]
		notLast := arena.New(expr.Not, n.ArgvSpan)
		notLast.Append(last)
		out[len(out)-1] = canonicalize(arena, notLast, tracer)
		comma := arena.New(expr.Comma, n.ArgvSpan)
		comma.Extend(out)
		return comma
	default:
		n.SetChildren([]*expr.Node{child})
		return n
	}
}

// sinkNegation builds dual(not(c1), not(c2), ...) from and/or's
// children, the canonicalization-time De Morgan push.
func sinkNegation(arena *expr.Arena, dual expr.Kind, src *expr.Node, tracer *debug.Tracer) *expr.Node {
	out := arena.New(dual, src.ArgvSpan)
	for _, c := range src.Children() {
		notC := arena.New(expr.Not, c.ArgvSpan)
		notC.Append(c)
		out.Append(canonicalize(arena, notC, tracer))
	}
	return out
}

// flattenAssociative merges any child of the same kind into kind's own
// child list: and(and(a,b),c) -> and(a,b,c).
func flattenAssociative(kind expr.Kind, children []*expr.Node) []*expr.Node {
	var out []*expr.Node
	for _, c := range children {
		if c.Kind == kind {
			out = append(out, c.Children()...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// collapseUnary applies the empty/unary-operator identities: empty
// and() is true, empty or() is false, empty comma() is true (vacuous
// sequence), and any associative operator with exactly one child
// collapses to that child.
func collapseUnary(n *expr.Node, tracer *debug.Tracer) *expr.Node {
	switch n.NumChildren() {
	case 0:
		switch n.Kind {
		case expr.And, expr.Comma:
			tracer.Rewrite("canonicalize", n.Kind.String()+"()", "true")
			return identityNode(n, true)
		case expr.Or:
			tracer.Rewrite("canonicalize", "or()", "false")
			return identityNode(n, false)
		}
	case 1:
		tracer.Rewrite("canonicalize", n.Kind.String()+"(x)", "x")
		return n.Children()[0]
	}
	return n
}

func identityNode(n *expr.Node, value bool) *expr.Node {
	// n itself is repurposed as the identity leaf rather than allocating
	// a fresh arena node: its Kind field is the only thing that changes,
	// and it already carries the right ArgvSpan for diagnostics.
	if value {
		n.Kind = expr.True
	} else {
		n.Kind = expr.False
	}
	n.SetChildren(nil)
	return n
}
