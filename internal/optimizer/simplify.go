package optimizer

import (
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
)

// simplify is pass 4: drop identity children, drop pure
// children whose value is discarded, truncate children that can never
// run once an earlier sibling forces the short-circuit outcome, and lift
// a De Morgan rewrite back out when it reduces the number of negations
// in the tree (the converse of canonicalize's sink, done here instead of
// during canonicalization because it needs the Pure/AlwaysTrue/
// AlwaysFalse facts annotate has by now computed).
func simplify(arena *expr.Arena, n *expr.Node, tracer *debug.Tracer) *expr.Node {
	children := n.Children()
	for i, c := range children {
		children[i] = simplify(arena, c, tracer)
	}
	n.SetChildren(children)

	switch n.Kind {
	case expr.And:
		return simplifyAssoc(arena, n, tracer)
	case expr.Or:
		return simplifyAssoc(arena, n, tracer)
	case expr.Comma:
		return simplifyComma(n, tracer)
	default:
		return n
	}
}

func simplifyAssoc(arena *expr.Arena, n *expr.Node, tracer *debug.Tracer) *expr.Node {
	children := n.Children()
	out := make([]*expr.Node, 0, len(children))
	for _, c := range children {
		if isDroppableIdentity(n.Kind, c) {
			tracer.Rewrite("simplify", n.Kind.String()+"(identity)", n.Kind.String()+"(dropped)")
			continue
		}
		out = append(out, c)
		if stopsEvaluation(n.Kind, c) {
			if len(out) < len(children) {
				tracer.Rewrite("simplify", n.Kind.String()+"(...)", n.Kind.String()+"(short-circuit truncated)")
			}
			break
		}
	}
	out = dropIgnoredResults(n.Kind, out, tracer)
	n.SetChildren(out)
	n = collapseUnary(n, tracer)
	if n.Kind == expr.And || n.Kind == expr.Or {
		n = liftNegation(arena, n, tracer)
	}
	return n
}

// dropIgnoredResults removes pure children whose result is ignored: when
// the final child forces the operator's outcome regardless of input
// (always-true under or, always-false under and), every earlier pure
// sibling only decides how soon the short-circuit lands on the same
// answer, so evaluating it buys nothing. Impure siblings keep their
// place for their side effects.
func dropIgnoredResults(kind expr.Kind, children []*expr.Node, tracer *debug.Tracer) []*expr.Node {
	if len(children) < 2 {
		return children
	}
	last := children[len(children)-1]
	// last must itself be pure: an earlier test deciding whether an
	// always-true -print actually runs is load-bearing, not ignored.
	forced := last.Pure &&
		((kind == expr.Or && last.AlwaysTrue) || (kind == expr.And && last.AlwaysFalse))
	if !forced {
		return children
	}
	out := make([]*expr.Node, 0, len(children))
	for _, c := range children[:len(children)-1] {
		if c.Pure {
			tracer.Rewrite("simplify", kind.String()+"(pure,forced)", kind.String()+"(forced)")
			tracer.Warn("expression result ignored")
			continue
		}
		out = append(out, c)
	}
	return append(out, last)
}

// isDroppableIdentity reports whether c contributes nothing to kind's
// result: true in an and, false in an or, or any pure child whose
// outcome is already forced the way kind's identity element is (a pure
// node can be dropped freely since it has no side effect to preserve).
func isDroppableIdentity(kind expr.Kind, c *expr.Node) bool {
	if kind == expr.And {
		return c.Kind == expr.True || (c.Pure && c.AlwaysTrue)
	}
	return c.Kind == expr.False || (c.Pure && c.AlwaysFalse)
}

// stopsEvaluation reports whether c forces kind's final result regardless
// of any remaining sibling, so every later sibling is unreachable dead
// code and may be dropped outright.
func stopsEvaluation(kind expr.Kind, c *expr.Node) bool {
	if kind == expr.And {
		return c.AlwaysFalse
	}
	return c.AlwaysTrue
}

func simplifyComma(n *expr.Node, tracer *debug.Tracer) *expr.Node {
	children := n.Children()
	if len(children) == 0 {
		return n
	}
	out := make([]*expr.Node, 0, len(children))
	for i, c := range children {
		if i < len(children)-1 && c.Pure {
			tracer.Rewrite("simplify", "comma(pure,...)", "comma(...)")
			continue
		}
		out = append(out, c)
	}
	n.SetChildren(out)
	return collapseUnary(n, tracer)
}

// liftNegation rewrites kind(children...) to not(dual(not(c)...)) when
// strictly more than half of children are themselves Not nodes: pulling
// the negation back out of the tree (the converse of canonicalize's De
// Morgan sink) reduces
// the total negation count, which is the form the cost model and a human
// reading -D tree both prefer.
func liftNegation(arena *expr.Arena, n *expr.Node, tracer *debug.Tracer) *expr.Node {
	children := n.Children()
	if len(children) < 2 {
		return n
	}
	negated := 0
	for _, c := range children {
		if c.Kind == expr.Not {
			negated++
		}
	}
	if negated*2 <= len(children) {
		return n
	}

	dual := expr.Or
	if n.Kind == expr.Or {
		dual = expr.And
	}
	inner := arena.New(dual, n.ArgvSpan)
	for _, c := range children {
		if c.Kind == expr.Not {
			inner.Append(c.Children()[0])
			continue
		}
		notC := arena.New(expr.Not, c.ArgvSpan)
		notC.Append(c)
		inner.Append(notC)
	}
	outer := arena.New(expr.Not, n.ArgvSpan)
	outer.Append(inner)
	tracer.Rewrite("simplify", n.Kind.String()+"(mostly negated)", "not("+dual.String()+"(...))")
	return outer
}
