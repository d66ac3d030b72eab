// Package predicate implements the leaf evaluation functions for every
// non-operator expr.Kind: the actual tests and actions.
// internal/eval dispatches here for anything that is not
// not/and/or/comma.
package predicate

import (
	"fmt"
	"os"

	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/debug"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// newError is a small convenience so every predicate file doesn't repeat
// the same three-line fmt.Errorf + bfinderrors.New pairing.
func newError(kind bfinderrors.Kind, op, path string, cause error) *bfinderrors.SearchError {
	return bfinderrors.New(kind, op, cause).WithPath(path)
}

// Func is the signature every leaf predicate/action implementation
// satisfies: given the owning Context, the node being evaluated, and
// the current file record, produce a boolean result and a control-flow
// side effect.
type Func func(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error)

var dispatch = map[expr.Kind]Func{
	expr.IntCmp:      evalIntCmp,
	expr.ModeCmp:     evalModeCmp,
	expr.StringMatch: evalStringMatch,
	expr.Regex:       evalRegex,
	expr.TypeTest:    evalTypeTest,
	expr.Access:      evalAccess,
	expr.SameFile:    evalSameFile,
	expr.Newer:       evalNewer,
	expr.Tristate:    evalTristateTest,
	expr.Print:       evalPrint,
	expr.Execute:     evalExecute,
	expr.Delete:      evalDelete,
	expr.Prune:       evalPrune,
	expr.Quit:        evalQuit,
	expr.Exit:        evalExit,
	expr.True:        evalTrue,
	expr.False:       evalFalse,
}

// Eval runs the leaf predicate/action for n against rec. It is a
// programmer error to call Eval with an operator Kind (not/and/or/comma)
// since those are internal/eval's own concern.
func Eval(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	fn, ok := dispatch[n.Kind]
	if !ok {
		return false, types.ContinueWalk, newError(bfinderrors.KindInvariant, "predicate.Eval", rec.Path, fmt.Errorf("no implementation registered for node kind %v", n.Kind))
	}
	return fn(ctx, n, rec)
}

// statOf fetches rec's stat info in the given mode, wrapping any error
// as a per-file SearchError the evaluator can decide whether to swallow
// under ignore_races. Logs a cache hit/miss under -D stat.
func statOf(ctx *config.Context, rec *types.FileRecord, mode types.StatMode) (types.StatInfo, error) {
	if rec.Src == nil {
		return types.StatInfo{}, newError(bfinderrors.KindPerFile, "stat", rec.Path, fmt.Errorf("no stat source attached to record"))
	}
	if _, cached := rec.Stat.Peek(mode); cached {
		ctx.Tracer.Logf(debug.FlagStat, "STAT", "cache hit %s mode=%v", rec.Path, mode)
	} else {
		ctx.Tracer.Logf(debug.FlagStat, "STAT", "cache miss %s mode=%v", rec.Path, mode)
	}
	info, err := rec.Stat.Get(mode, rec.Src)
	if err != nil {
		kind := bfinderrors.KindPerFile
		if rec.Depth > 0 && os.IsNotExist(err) {
			// A file that vanished between readdir and stat at depth > 0
			// is the readdir race -ignore_readdir_race exists for; the
			// root arguments themselves (depth 0) are never
			// raced, so a missing root is always a real error.
			kind = bfinderrors.KindRace
		}
		return types.StatInfo{}, newError(kind, "stat", rec.Path, err)
	}
	return info, nil
}
