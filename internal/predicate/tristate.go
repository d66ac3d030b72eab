package predicate

import (
	"io"
	"os"
	"strings"

	"github.com/standardbeagle/bfind/internal/capability"
	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalTristateTest implements the eight yes/no tests that are not
// readable/writable/executable
// (those are expr.Access): -empty, -hidden, -nouser, -nogroup, -sparse,
// plus the three platform-probe-backed tests -acl/-capable/-xattr.
func evalTristateTest(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.TristatePayload)
	switch p.Test {
	case expr.TestHidden:
		return strings.HasPrefix(rec.Name(), "."), types.ContinueWalk, nil
	case expr.TestEmpty:
		return evalEmpty(ctx, rec)
	case expr.TestSparse:
		return evalSparse(ctx, rec)
	case expr.TestNoUser:
		info, err := statOf(ctx, rec, types.NoFollow)
		if err != nil {
			return false, types.ContinueWalk, err
		}
		if ctx.Capabilities.Identity == nil {
			return false, types.ContinueWalk, newError(bfinderrors.KindConfig, "nouser", rec.Path, errNoIdentityResolver)
		}
		return !ctx.Capabilities.Identity.UserExists(info.UID), types.ContinueWalk, nil
	case expr.TestNoGroup:
		info, err := statOf(ctx, rec, types.NoFollow)
		if err != nil {
			return false, types.ContinueWalk, err
		}
		if ctx.Capabilities.Identity == nil {
			return false, types.ContinueWalk, newError(bfinderrors.KindConfig, "nogroup", rec.Path, errNoIdentityResolver)
		}
		return !ctx.Capabilities.Identity.GroupExists(info.GID), types.ContinueWalk, nil
	case expr.TestACL:
		return evalTriProbe(ctx.Capabilities.ACL, func(a capability.ACL) (types.Tristate, error) { return a.HasACL(rec.Path) }, "acl", rec.Path)
	case expr.TestCapable:
		return evalTriProbe(ctx.Capabilities.Capabilities, func(c capability.Capabilities) (types.Tristate, error) { return c.HasCapabilities(rec.Path) }, "capable", rec.Path)
	case expr.TestXattr:
		return evalTriProbe(ctx.Capabilities.Xattr, func(x capability.Xattr) (types.Tristate, error) { return x.HasXattr(rec.Path) }, "xattr", rec.Path)
	default:
		return false, types.ContinueWalk, newError(bfinderrors.KindInvariant, "tristate", rec.Path, errUnknownTristate)
	}
}

var errNoIdentityResolver = tristateErr("predicate: no identity resolver configured")
var errUnknownTristate = tristateErr("predicate: unrecognized tristate test")

type tristateErr string

func (e tristateErr) Error() string { return string(e) }

// evalTriProbe runs one of the three capability-backed probes, mapping
// an unsupported platform probe to a configuration-kind error rather
// than a silent false, and Indeterminate-with-no-error (a
// theoretical probe state none of the adapters actually return) to
// false.
func evalTriProbe[T any](probe T, call func(T) (types.Tristate, error), op, path string) (bool, types.Control, error) {
	if any(probe) == nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindConfig, op, path, capability.ErrUnsupportedProbe)
	}
	result, err := call(probe)
	if err != nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindConfig, op, path, err)
	}
	return result == types.Yes, types.ContinueWalk, nil
}

func evalEmpty(ctx *config.Context, rec *types.FileRecord) (bool, types.Control, error) {
	info, err := statOf(ctx, rec, types.NoFollow)
	if err != nil {
		return false, types.ContinueWalk, err
	}
	switch info.Type {
	case types.Regular:
		return info.Size == 0, types.ContinueWalk, nil
	case types.Dir:
		f, err := os.Open(rec.Path)
		if err != nil {
			return false, types.ContinueWalk, newError(bfinderrors.KindPerFile, "empty", rec.Path, err)
		}
		defer f.Close()
		_, err = f.Readdirnames(1)
		return err == io.EOF, types.ContinueWalk, nil
	default:
		return false, types.ContinueWalk, nil
	}
}

// evalSparse reports whether rec occupies fewer disk blocks than its
// apparent size implies (the same heuristic `du` and GNU find's
// `-printf %S` build on): size rounded up to the 512-byte block size
// exceeds the blocks actually allocated.
func evalSparse(ctx *config.Context, rec *types.FileRecord) (bool, types.Control, error) {
	info, err := statOf(ctx, rec, types.NoFollow)
	if err != nil {
		return false, types.ContinueWalk, err
	}
	if info.Type != types.Regular {
		return false, types.ContinueWalk, nil
	}
	wantBlocks := (info.Size + 511) / 512
	return info.BlockSize512 < wantBlocks, types.ContinueWalk, nil
}
