package predicate

import (
	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalSameFile implements -samefile: true when rec's (device, inode)
// identity matches the reference file's, recorded in the payload at
// parse time.
func evalSameFile(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.SameFilePayload)
	info, err := statOf(ctx, rec, types.NoFollow)
	if err != nil {
		return false, types.ContinueWalk, err
	}
	return info.Dev == p.Dev && info.Ino == p.Ino, types.ContinueWalk, nil
}
