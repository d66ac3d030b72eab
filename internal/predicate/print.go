package predicate

import (
	"fmt"
	"io"
	"strings"

	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/format"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalPrint implements the whole -print family: -print/-print0 (the
// default "%p\n"/"%p\0" rendering), -fprint/-fprint0 (same, to a sink
// file instead of stdout), and -printf/-fprintf (a compiled directive
// program). Always true; the side effect is the write.
func evalPrint(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.PrintPayload)

	if ctx.XargsSafe && !p.NulTerminated && !xargsSafe(rec.Path) {
		return false, types.ContinueWalk,
			newError(bfinderrors.KindPerFile, "print", rec.Path, errUnsafeForXargs)
	}

	w, err := ctx.Sink(p.ToFile)
	if err != nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindSink, "print", rec.Path, err)
	}

	line, err := renderLine(p, rec)
	if err != nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindPerFile, "print", rec.Path, err)
	}

	if _, err := io.WriteString(w, line); err != nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindSink, "print", rec.Path, err)
	}
	return true, types.ContinueWalk, nil
}

var errUnsafeForXargs = tristateErr("path contains characters unsafe for xargs; use -print0 or drop -X")

// xargsSafe reports whether path survives a downstream `xargs` without
// -0: no whitespace, quotes, or backslashes for its tokenizer to eat.
func xargsSafe(path string) bool {
	return !strings.ContainsAny(path, " \t\n'\"\\")
}

// renderLine produces exactly what evalPrint writes for one record:
// either the plain path with its terminator, or the compiled -printf
// program's output (which supplies its own terminator via a literal
// directive, matching find(1)'s own -printf semantics of not appending
// one automatically).
func renderLine(p *expr.PrintPayload, rec *types.FileRecord) (string, error) {
	if p.Compiled == nil {
		term := "\n"
		if p.NulTerminated {
			term = "\x00"
		}
		return rec.Path + term, nil
	}
	prog, ok := p.Compiled.(*format.Program)
	if !ok {
		return "", fmt.Errorf("print: payload Compiled is %T, not *format.Program", p.Compiled)
	}
	return prog.Render(rec, types.Follow)
}
