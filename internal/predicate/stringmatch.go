package predicate

import (
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalStringMatch implements -name/-path/-lname: a glob test against
// the basename, the full recorded path, or the symlink target,
// optionally case-folded. The literal fast path (no glob
// metacharacters in the pattern, the same test the optimizer's
// annotation pass applies) is a plain byte-equality compare rather than
// a glob match.
func evalStringMatch(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.StringMatchPayload)

	var subject string
	switch p.Field {
	case expr.FieldPath:
		subject = rec.Path
	case expr.FieldLName:
		info, err := statOf(ctx, rec, types.NoFollow)
		if err != nil {
			return false, types.ContinueWalk, err
		}
		if info.Type != types.Symlink {
			return false, types.ContinueWalk, nil
		}
		target, err := os.Readlink(rec.Path)
		if err != nil {
			return false, types.ContinueWalk, newError(bfinderrors.KindPerFile, "readlink", rec.Path, err)
		}
		subject = target
	default:
		subject = rec.Name()
	}

	pattern := p.Pattern
	if p.FoldCase {
		subject = strings.ToLower(subject)
		pattern = strings.ToLower(pattern)
	}

	if isLiteralGlob(p.Pattern) {
		return subject == stripGlobEscapes(pattern), types.ContinueWalk, nil
	}

	matched, err := doublestar.Match(pattern, subject)
	if err != nil {
		return false, types.ContinueWalk, nil
	}
	return matched, types.ContinueWalk, nil
}

// isLiteralGlob reports whether pattern contains no glob metacharacter,
// matching the optimizer's own literal-vs-wildcard classification
// so the fast path here agrees with the
// probability the annotation pass assigned.
func isLiteralGlob(pattern string) bool {
	return !strings.ContainsAny(pattern, "*?[\\")
}

func stripGlobEscapes(pattern string) string {
	if !strings.Contains(pattern, "\\") {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			i++
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}
