package optimizer

import (
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
)

// reorder is pass 3, applied only at OptLevel >= 3 and
// never on the tree's first round (so diagnostics from earlier rounds
// stay attributable to the argv position the user actually wrote). It
// splits each associative operator's children into maximal runs of pure
// children separated by impure ones, and stable-sorts each pure run by
// a pairwise short-circuit cost comparator.
func reorder(n *expr.Node, tracer *debug.Tracer) {
	for _, c := range n.Children() {
		reorder(c, tracer)
	}
	if n.Kind != expr.And && n.Kind != expr.Or {
		return
	}

	children := n.Children()
	out := make([]*expr.Node, 0, len(children))
	i := 0
	for i < len(children) {
		if !children[i].Pure {
			out = append(out, children[i])
			i++
			continue
		}
		j := i
		for j < len(children) && children[j].Pure {
			j++
		}
		run := append([]*expr.Node(nil), children[i:j]...)
		mergeSortByCost(run, n.Kind)
		out = append(out, run...)
		i = j
	}
	if changed(children, out) {
		tracer.Rewrite("reorder", n.Kind.String()+"(...)", n.Kind.String()+"(reordered)")
	}
	n.SetChildren(out)
}

func changed(a, b []*expr.Node) bool {
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// pairCost is the estimated cost of evaluating lhs immediately before
// rhs under kind's short-circuit semantics: lhs always
// runs, rhs runs only with probability lhs.Probability under `and`
// (rhs is skipped once lhs is false) or with probability
// 1-lhs.Probability under `or` (rhs is skipped once lhs is true).
func pairCost(lhs, rhs *expr.Node, kind expr.Kind) float64 {
	if kind == expr.Or {
		return lhs.Cost + (1-lhs.Probability)*rhs.Cost
	}
	return lhs.Cost + lhs.Probability*rhs.Cost
}

// mergeSortByCost stable-sorts run so that, for every adjacent pair, the
// order with the lower pairCost comes first — a merge sort using the
// pairwise comparator rather than Go's sort.Slice
// (whose comparator must be a total order; pairCost only needs to be
// locally consistent for adjacent swaps, which is what a bottom-up
// merge naturally preserves).
func mergeSortByCost(run []*expr.Node, kind expr.Kind) {
	if len(run) < 2 {
		return
	}
	mid := len(run) / 2
	left := append([]*expr.Node(nil), run[:mid]...)
	right := append([]*expr.Node(nil), run[mid:]...)
	mergeSortByCost(left, kind)
	mergeSortByCost(right, kind)

	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if pairCost(left[i], right[j], kind) <= pairCost(right[j], left[i], kind) {
			run[k] = left[i]
			i++
		} else {
			run[k] = right[j]
			j++
		}
		k++
	}
	for i < len(left) {
		run[k] = left[i]
		i++
		k++
	}
	for j < len(right) {
		run[k] = right[j]
		j++
		k++
	}
}
