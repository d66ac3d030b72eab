package predicate

import (
	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalTrue implements -true: always matches, no side effect.
func evalTrue(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	return true, types.ContinueWalk, nil
}

// evalFalse implements -false: never matches, no side effect.
func evalFalse(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	return false, types.ContinueWalk, nil
}

// evalPrune implements -prune: stop descending into the current
// directory; always evaluates true. This has no effect on a directory
// once -depth (post-order) has already deferred its visit past the point where
// descent is decided; the evaluator still runs it (so -print before
// -prune in the same -and chain still fires) but the traversal engine
// cannot act on it under post-order, since the pre-descent decision is
// already made by the time this node runs.
func evalPrune(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	return true, types.Prune, nil
}

// evalQuit implements -quit: stop the walk immediately; never returns
// to the caller in the sense that its boolean result is meaningless,
// matching the always_true && always_false node invariant.
func evalQuit(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	return false, types.Stop, nil
}

// evalExit implements -exit [n]: records the process exit code and
// stops the walk.
func evalExit(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.ExitPayload)
	ctx.SetExit(p.Code)
	return false, types.Stop, nil
}
