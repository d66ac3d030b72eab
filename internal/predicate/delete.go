package predicate

import (
	"os"

	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalDelete implements -delete: unlink the current record, or rmdir if
// it is a directory. It refuses to act only on the
// exact literal root argument ".", which returns true as a no-op rather
// than attempting to remove the starting point out from under the walk;
// other spellings of the same directory ("./", "/", a symlink to ".")
// proceed to a normal unlink attempt.
func evalDelete(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	if isLiteralRootArg(rec) {
		return true, types.ContinueWalk, nil
	}

	if _, err := statOf(ctx, rec, types.NoFollow); err != nil {
		return false, types.ContinueWalk, err
	}

	// os.Remove issues unlink and falls back to rmdir, covering both the
	// file and the (necessarily empty) directory case.
	if removeErr := os.Remove(rec.Path); removeErr != nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindPerFile, "delete", rec.Path, removeErr)
	}
	return true, types.ContinueWalk, nil
}

// isLiteralRootArg reports whether rec is the search's own root argument
// (depth 0) spelled exactly ".". Any other spelling of the same
// directory -- "./", "/", a symlink resolving to ".", etc. -- is not a
// no-op and must proceed to a normal unlink attempt.
func isLiteralRootArg(rec *types.FileRecord) bool {
	return rec.Depth == 0 && rec.Path == "."
}
