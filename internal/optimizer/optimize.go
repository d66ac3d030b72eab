package optimizer

import (
	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
)

// fixpointRounds bounds how many annotate/canonicalize/dataflow/simplify
// cycles Optimize runs. Three rounds is enough for every rewrite this
// package makes to stop finding new work: canonicalization and
// simplification only ever shrink or flatten the tree, so a rewrite that
// survives two full rounds unchanged won't be touched by a third.
const fixpointRounds = 3

// Optimize runs the five-pass pipeline over ctx.Expr
// (and ctx.Exclude, when set) and then tightens ctx.MinDepth/MaxDepth and
// ctx.StatEagerly from what the passes learned. OptLevel 0 skips
// everything except the annotation pass eval needs to run at all
// (Cost/Probability/Pure default sensibly but AlwaysTrue/AlwaysFalse
// still must be correct, since internal/eval panics if the optimizer's
// own invariant is violated).
func Optimize(ctx *config.Context) {
	if ctx.Arena == nil || ctx.Expr == nil {
		return
	}
	impure := Bottom()
	ctx.Expr, impure = optimizeTree(ctx, ctx.Arena, ctx.Expr)
	if ctx.Exclude != nil {
		ctx.Exclude, _ = optimizeTree(ctx, ctx.Arena, ctx.Exclude)
	}
	if ctx.OptLevel > 0 {
		// At level 0 no data-flow ran, so the impure lattice is vacuously
		// bottom; warning "no effect" off that would be a lie.
		finalize(ctx, impure)
	}
}

func optimizeTree(ctx *config.Context, arena *expr.Arena, tree *expr.Node) (*expr.Node, Lattice) {
	annotate(tree)
	if ctx.OptLevel <= 0 {
		return tree, Bottom()
	}

	var impure Lattice
	for round := 0; round < fixpointRounds; round++ {
		logTree(ctx.Tracer, "before", tree)

		tree = canonicalize(arena, tree, ctx.Tracer)
		annotate(tree)

		ana := newAnalysis(ctx.Tracer)
		tree = ana.dataflow(tree, Entry())
		impure = ana.impure
		annotate(tree)

		if ctx.OptLevel >= 3 && round > 0 {
			reorder(tree, ctx.Tracer)
		}

		tree = simplify(arena, tree, ctx.Tracer)
		annotate(tree)

		logTree(ctx.Tracer, "after", tree)
	}
	return tree, impure
}

func logTree(tracer *debug.Tracer, when string, tree *expr.Node) {
	if tracer == nil || !tracer.Enabled(debug.FlagTree) {
		return
	}
	tracer.Logf(debug.FlagTree, "TREE", "%s: %s", when, describe(tree))
}

func describe(n *expr.Node) string {
	if n == nil {
		return "<nil>"
	}
	children := n.Children()
	if len(children) == 0 {
		return n.Kind.String()
	}
	s := n.Kind.String() + "("
	for i, c := range children {
		if i > 0 {
			s += ","
		}
		s += describe(c)
	}
	return s + ")"
}

// finalize applies the post-processing steps once the
// pipeline has settled: narrowing the traversal's own depth bounds from
// what the impure lattice proved about every reachable side-effecting
// node, warning when nothing in the tree can ever have an effect, and
// deciding whether to stat eagerly.
func finalize(ctx *config.Context, impure Lattice) {
	if impure.IsBottom() {
		ctx.Tracer.Warn("this command has no effect")
		return
	}

	depth := impure.Ranges[RangeDepth]
	if ctx.OptLevel >= 2 && depth.Min > minInt64 && depth.Min > int64(ctx.MinDepth) {
		ctx.Tracer.Rewrite("finalize", "min-depth", "tightened")
		ctx.MinDepth = int(depth.Min)
	}
	if ctx.OptLevel >= 4 && depth.Max < maxInt64 {
		if ctx.MaxDepth < 0 || depth.Max < int64(ctx.MaxDepth) {
			ctx.Tracer.Rewrite("finalize", "max-depth", "tightened")
			ctx.MaxDepth = int(depth.Max)
		}
	}

	if ctx.OptLevel >= 3 && countStatCallers(ctx.Expr) >= 2 {
		ctx.StatEagerly = true
	}
}

// countStatCallers totals how many leaf nodes individually call stat,
// the heuristic finalize uses for the eager-stat decision:
// once two or more predicates would each stat the same file separately,
// statting it once up front and caching the result is strictly cheaper.
func countStatCallers(n *expr.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if !n.IsParent() && n.CallsStat {
		count++
	}
	for _, c := range n.Children() {
		count += countStatCallers(c)
	}
	return count
}
