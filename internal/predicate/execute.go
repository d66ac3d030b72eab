package predicate

import (
	"bufio"
	"os"
	"strings"

	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/exec"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// evalExecute implements -exec/-execdir/-ok/-okdir, delegating to the
// per-node internal/exec.Machine that internal/cli attaches to the
// node's Runtime slot at parse time; only the state machine lives
// there, process spawning stays behind the Spawner collaborator.
// Batch ("+"-terminated) variants accumulate and may
// return without having spawned anything yet; the caller is
// responsible for calling Finish on every Machine once the walk ends.
func evalExecute(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	m, ok := n.Runtime.(*exec.Machine)
	if !ok || m == nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindInvariant, "execute", rec.Path, errNoMachine)
	}

	workDir := dirOf(rec)
	openDir := func() (*os.File, error) { return os.Open(workDir) }

	var confirm func(argv []string) (bool, error)
	if m.Confirm {
		confirm = func(argv []string) (bool, error) {
			return exec.ConfirmPrompt(bufio.NewReader(os.Stdin), os.Stderr, argv)
		}
	}

	res, err := m.Feed(rec.Path, workDir, openDir, confirm)
	if err != nil {
		return false, types.ContinueWalk, newError(bfinderrors.KindPerFile, "execute", rec.Path, err)
	}
	if res == nil {
		// Batch mode accumulating: no spawn happened yet for this file.
		return true, types.ContinueWalk, nil
	}
	return res.Success, types.ContinueWalk, nil
}

var errNoMachine = execError("execute: no *exec.Machine attached to node (internal/cli must set Runtime)")

type execError string

func (e execError) Error() string { return string(e) }

// dirOf returns the directory containing rec.Path, matching
// internal/format's own %h rendering so -execdir's chdir target agrees
// with what a -printf %h would report for the same record.
func dirOf(rec *types.FileRecord) string {
	if rec.NameOffset == 0 {
		return "."
	}
	dir := rec.Path[:rec.NameOffset]
	return strings.TrimSuffix(dir, string(os.PathSeparator))
}
