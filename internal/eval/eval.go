// Package eval implements the short-circuit Boolean evaluator:
// recursive descent over an expression tree against one
// file record, producing a result and a control-flow side effect, with
// the uniqueness filter, exclude expression, and depth gate that run
// ahead of the main expression.
package eval

import (
	"time"

	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/debug"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/predicate"
	"github.com/standardbeagle/bfind/internal/types"
)

// Run is the evaluator's entry point, called once per file record the
// traversal engine delivers. It applies, in order: the uniqueness
// filter, the exclude expression, the mindepth/maxdepth gate, and
// finally the main expression tree.
func Run(ctx *config.Context, rec *types.FileRecord) (bool, types.Control, error) {
	if ctx.Dedup != nil {
		id, err := fileID(rec)
		if err != nil {
			return false, types.ContinueWalk, err
		}
		if !ctx.Dedup.Insert(id) {
			return false, types.Prune, nil
		}
	}

	if ctx.Exclude != nil {
		matched, _, err := evalNode(ctx, ctx.Exclude, rec)
		if err != nil {
			return false, types.ContinueWalk, err
		}
		if matched {
			return false, types.Prune, nil
		}
	}

	if !inDepthRange(ctx, rec) {
		return false, types.ContinueWalk, nil
	}

	if ctx.Expr == nil {
		return true, types.ContinueWalk, nil
	}
	return evalNode(ctx, ctx.Expr, rec)
}

func inDepthRange(ctx *config.Context, rec *types.FileRecord) bool {
	if rec.Depth < ctx.MinDepth {
		return false
	}
	if ctx.MaxDepth >= 0 && rec.Depth > ctx.MaxDepth {
		return false
	}
	return true
}

func fileID(rec *types.FileRecord) (types.FileID, error) {
	info, err := rec.Stat.Get(types.NoFollow, rec.Src)
	if err != nil {
		return types.FileID{}, err
	}
	return info.FileID(), nil
}

// evalNode dispatches a single node: the four operators recurse here
// directly (they are not predicates and carry no single evaluation
// function of their own); everything else goes to internal/predicate.
func evalNode(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	switch n.Kind {
	case expr.Not:
		return evalNot(ctx, n, rec)
	case expr.And:
		return evalAnd(ctx, n, rec)
	case expr.Or:
		return evalOr(ctx, n, rec)
	case expr.Comma:
		return evalComma(ctx, n, rec)
	default:
		return evalLeaf(ctx, n, rec)
	}
}

// evalLeaf runs one predicate/action node, applying per-node
// bookkeeping (evaluation/success counters, rate-debug timing) and the
// ignore_races error-suppression rule.
func evalLeaf(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	n.Evaluations.Add(1)

	var start time.Time
	timing := ctx.Tracer.Enabled(debug.FlagRates)
	if timing {
		start = time.Now()
	}

	result, control, err := predicate.Eval(ctx, n, rec)

	if timing {
		n.ElapsedNanos.Add(time.Since(start).Nanoseconds())
	}
	if result {
		n.Successes.Add(1)
	}

	if err != nil {
		if bfinderrors.IsRace(err) && ctx.IgnoreRaces && rec.Depth > 0 {
			return false, types.ContinueWalk, nil
		}
		return false, control, err
	}

	if control == types.ContinueWalk {
		if n.AlwaysTrue && !result {
			panic("eval: node flagged always_true returned false (optimizer invariant violated): " + n.Kind.String())
		}
		if n.AlwaysFalse && result {
			panic("eval: node flagged always_false returned true (optimizer invariant violated): " + n.Kind.String())
		}
	}

	return result, control, nil
}

// evalNot evaluates its one child and complements the result; control
// flow passes through unchanged.
func evalNot(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	children := n.Children()
	result, control, err := evalNode(ctx, children[0], rec)
	if err != nil {
		return false, control, err
	}
	return !result, control, nil
}

// evalAnd evaluates children left to right, stopping at the first
// false (short-circuit); the result is the conjunction of every child
// actually evaluated.
func evalAnd(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	result := true
	for _, child := range n.Children() {
		childResult, control, err := evalNode(ctx, child, rec)
		if err != nil {
			return false, control, err
		}
		if control != types.ContinueWalk {
			return childResult, control, nil
		}
		if !childResult {
			return false, types.ContinueWalk, nil
		}
		result = childResult
	}
	return result, types.ContinueWalk, nil
}

// evalOr is and's dual: stops at the first true.
func evalOr(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	result := false
	for _, child := range n.Children() {
		childResult, control, err := evalNode(ctx, child, rec)
		if err != nil {
			return false, control, err
		}
		if control != types.ContinueWalk {
			return childResult, control, nil
		}
		if childResult {
			return true, types.ContinueWalk, nil
		}
		result = childResult
	}
	return result, types.ContinueWalk, nil
}

// evalComma evaluates every child in sequence; the result is the last
// child's value, earlier values are discarded for the result but their
// side effects (e.g. -print) already happened.
func evalComma(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	var result bool
	var control types.Control
	for _, child := range n.Children() {
		var err error
		result, control, err = evalNode(ctx, child, rec)
		if err != nil {
			return false, control, err
		}
		if control != types.ContinueWalk {
			return result, control, nil
		}
	}
	return result, types.ContinueWalk, nil
}
