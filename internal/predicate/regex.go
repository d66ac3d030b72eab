package predicate

import (
	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalRegex implements -regex/-iregex: the compiled pattern is matched
// against the whole recorded path. A nil Compiled regex is a build-time
// configuration error surfaced here rather than a silent false, since
// that only happens for a dialect this core does not compile.
func evalRegex(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.RegexPayload)
	if p.Compiled == nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindConfig, "regex", rec.Path, errUnsupportedDialect(p.Dialect))
	}
	return p.Compiled.MatchString(rec.Path), types.ContinueWalk, nil
}

func errUnsupportedDialect(d expr.RegexDialect) error {
	names := map[expr.RegexDialect]string{
		expr.RegexDialectPOSIXBasic:    "posix-basic",
		expr.RegexDialectPOSIXExtended: "posix-extended",
		expr.RegexDialectEmacs:         "emacs",
	}
	return unsupportedDialectErr(names[d])
}

type unsupportedDialectErr string

func (e unsupportedDialectErr) Error() string {
	return "regex dialect " + string(e) + " is not supported; only Go (RE2) syntax is accepted"
}
