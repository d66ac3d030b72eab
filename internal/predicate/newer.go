package predicate

import (
	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalNewer implements -newer: true when rec's mtime is strictly later
// than the reference file's, resolved once at parse time into the
// payload (the same pattern -samefile uses for its dev/ino pair).
func evalNewer(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.NewerPayload)
	info, err := statOf(ctx, rec, types.NoFollow)
	if err != nil {
		return false, types.ContinueWalk, err
	}
	return info.MTimeUnix > p.RefMTimeUnix, types.ContinueWalk, nil
}
