package predicate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/format"
	"github.com/standardbeagle/bfind/internal/types"
)

// fakeStatSource is a fixed StatInfo for both Follow and NoFollow, used
// by tests that don't care about symlink-following distinctions.
type fakeStatSource struct {
	info types.StatInfo
	err  error
}

func (f fakeStatSource) Stat(mode types.StatMode) (types.StatInfo, error) {
	return f.info, f.err
}

func nodeFor(kind expr.Kind, payload interface{}) *expr.Node {
	a := expr.NewArena()
	n := a.New(kind, nil)
	n.Payload = payload
	return n
}

func nameOffsetOf(path string) int {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return idx + 1
	}
	return 0
}

func newRec(path string, typ types.FileType, src types.StatSource) *types.FileRecord {
	return &types.FileRecord{
		Path:       path,
		NameOffset: nameOffsetOf(path),
		Type:       typ,
		Src:        src,
	}
}

func TestEvalTrueFalse(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("a", types.Regular, nil)

	result, ctrl, err := evalTrue(ctx, nil, rec)
	if err != nil || !result || ctrl != types.ContinueWalk {
		t.Fatalf("evalTrue = %v, %v, %v", result, ctrl, err)
	}

	result, ctrl, err = evalFalse(ctx, nil, rec)
	if err != nil || result || ctrl != types.ContinueWalk {
		t.Fatalf("evalFalse = %v, %v, %v", result, ctrl, err)
	}
}

func TestEvalPrune(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("a/b", types.Dir, nil)

	result, ctrl, err := evalPrune(ctx, nil, rec)
	if err != nil || !result || ctrl != types.Prune {
		t.Fatalf("evalPrune = %v, %v, %v", result, ctrl, err)
	}
}

func TestEvalQuit(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("a", types.Regular, nil)

	result, ctrl, err := evalQuit(ctx, nil, rec)
	if err != nil || result || ctrl != types.Stop {
		t.Fatalf("evalQuit = %v, %v, %v", result, ctrl, err)
	}
}

func TestEvalExitSetsFirstCode(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("a", types.Regular, nil)
	n := nodeFor(expr.Exit, &expr.ExitPayload{Code: 3})

	_, ctrl, err := evalExit(ctx, n, rec)
	if err != nil || ctrl != types.Stop {
		t.Fatalf("evalExit = %v, %v", ctrl, err)
	}
	if ctx.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", ctx.ExitCode)
	}

	n2 := nodeFor(expr.Exit, &expr.ExitPayload{Code: 9})
	evalExit(ctx, n2, rec)
	if ctx.ExitCode != 3 {
		t.Fatalf("second -exit overwrote code: got %d, want 3 (first wins)", ctx.ExitCode)
	}
}

func TestEvalSameFile(t *testing.T) {
	ctx := config.New([]string{"."})
	src := fakeStatSource{info: types.StatInfo{Dev: 5, Ino: 42}}
	rec := newRec("a", types.Regular, src)
	n := nodeFor(expr.SameFile, &expr.SameFilePayload{Dev: 5, Ino: 42})

	result, _, err := evalSameFile(ctx, n, rec)
	if err != nil || !result {
		t.Fatalf("evalSameFile = %v, %v, want true, nil", result, err)
	}

	n2 := nodeFor(expr.SameFile, &expr.SameFilePayload{Dev: 5, Ino: 99})
	result, _, err = evalSameFile(ctx, n2, rec)
	if err != nil || result {
		t.Fatalf("evalSameFile mismatched ino = %v, %v, want false, nil", result, err)
	}
}

func TestEvalStringMatchLiteral(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("dir/file.txt", types.Regular, nil)
	n := nodeFor(expr.StringMatch, &expr.StringMatchPayload{Field: expr.FieldName, Pattern: "file.txt"})

	result, _, err := evalStringMatch(ctx, n, rec)
	if err != nil || !result {
		t.Fatalf("evalStringMatch literal = %v, %v, want true", result, err)
	}
}

func TestEvalStringMatchGlob(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("dir/file.txt", types.Regular, nil)
	n := nodeFor(expr.StringMatch, &expr.StringMatchPayload{Field: expr.FieldName, Pattern: "*.txt"})

	result, _, err := evalStringMatch(ctx, n, rec)
	if err != nil || !result {
		t.Fatalf("evalStringMatch glob = %v, %v, want true", result, err)
	}
}

func TestEvalStringMatchNoGlobMismatch(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := newRec("dir/file.txt", types.Regular, nil)
	n := nodeFor(expr.StringMatch, &expr.StringMatchPayload{Field: expr.FieldName, Pattern: "*.md"})

	result, _, err := evalStringMatch(ctx, n, rec)
	if err != nil || result {
		t.Fatalf("evalStringMatch glob mismatch = %v, %v, want false", result, err)
	}
}

func TestEvalDeleteRefusesLiteralRoot(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := &types.FileRecord{Path: ".", Depth: 0, Type: types.Dir}

	result, ctrl, err := evalDelete(ctx, nil, rec)
	if err != nil || !result || ctrl != types.ContinueWalk {
		t.Fatalf("evalDelete(.) = %v, %v, %v, want true, continue, nil", result, ctrl, err)
	}
}

func TestIsLiteralRootArg(t *testing.T) {
	cases := []struct {
		path  string
		depth int
		want  bool
	}{
		{".", 0, true},
		{"./", 0, false},
		{"/", 0, false},
		{".", 1, false},
	}
	for _, c := range cases {
		rec := &types.FileRecord{Path: c.path, Depth: c.depth}
		if got := isLiteralRootArg(rec); got != c.want {
			t.Errorf("isLiteralRootArg(path=%q, depth=%d) = %v, want %v", c.path, c.depth, got, c.want)
		}
	}
}

// TestEvalDeleteProceedsOnNonDotRootSpellings checks that only the
// bare "." root argument is a no-op for
// -delete; "./" and "/" must proceed to a normal removal attempt
// rather than being silently skipped. A stat source that always fails
// lets the test tell the two paths apart without touching the real
// filesystem: the no-op path returns (true, nil) before ever touching
// Src, while a real attempt surfaces the stat failure.
func TestEvalDeleteProceedsOnNonDotRootSpellings(t *testing.T) {
	ctx := config.New([]string{"/"})
	sentinel := errors.New("sentinel stat failure")

	for _, path := range []string{"/", "./"} {
		rec := &types.FileRecord{Path: path, Depth: 0, Type: types.Dir, Src: fakeStatSource{err: sentinel}}

		result, ctrl, err := evalDelete(ctx, nil, rec)
		if result || ctrl != types.ContinueWalk || err == nil {
			t.Fatalf("evalDelete(%q) = %v, %v, %v, want false, continue, non-nil (a real attempt, not the \".\" no-op)", path, result, ctrl, err)
		}
	}
}

func TestEvalDeleteRemovesRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "victim.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := config.New([]string{dir})
	rec := &types.FileRecord{
		Path:       path,
		Depth:      1,
		NameOffset: nameOffsetOf(path),
		Type:       types.Regular,
		Src:        fakeStatSource{info: types.StatInfo{Type: types.Regular}},
	}

	result, ctrl, err := evalDelete(ctx, nil, rec)
	if err != nil || !result || ctrl != types.ContinueWalk {
		t.Fatalf("evalDelete = %v, %v, %v", result, ctrl, err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("file still exists after -delete: %v", statErr)
	}
}

func TestEvalPrintDefaultPath(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := &types.FileRecord{Path: "a/b.txt", NameOffset: 2}
	n := nodeFor(expr.Print, &expr.PrintPayload{})

	result, ctrl, err := evalPrint(ctx, n, rec)
	if err != nil || !result || ctrl != types.ContinueWalk {
		t.Fatalf("evalPrint = %v, %v, %v", result, ctrl, err)
	}
}

func TestEvalPrintCompiledDirective(t *testing.T) {
	prog, err := format.Compile("%p\n")
	if err != nil {
		t.Fatal(err)
	}
	ctx := config.New([]string{"."})
	rec := &types.FileRecord{Path: "a/b.txt", NameOffset: 2}
	n := nodeFor(expr.Print, &expr.PrintPayload{Compiled: prog})

	result, _, err := evalPrint(ctx, n, rec)
	if err != nil || !result {
		t.Fatalf("evalPrint compiled = %v, %v", result, err)
	}
}

func TestEvalPrintXargsSafeRejectsUnsafeName(t *testing.T) {
	ctx := config.New([]string{"."})
	ctx.XargsSafe = true

	rec := &types.FileRecord{Path: "a/has space.txt", NameOffset: 2}
	n := nodeFor(expr.Print, &expr.PrintPayload{})
	result, _, err := evalPrint(ctx, n, rec)
	if err == nil || result {
		t.Fatalf("evalPrint with -X on an unsafe name = %v, %v, want false + error", result, err)
	}

	// NUL-terminated output is always xargs-safe (xargs -0).
	n0 := nodeFor(expr.Print, &expr.PrintPayload{NulTerminated: true})
	result, _, err = evalPrint(ctx, n0, rec)
	if err != nil || !result {
		t.Fatalf("evalPrint -print0 under -X = %v, %v, want true, nil", result, err)
	}
}

func TestEvalRegexNilCompiledIsConfigError(t *testing.T) {
	ctx := config.New([]string{"."})
	rec := &types.FileRecord{Path: "a/b.go"}
	n := nodeFor(expr.Regex, &expr.RegexPayload{Dialect: expr.RegexDialectPOSIXBasic})

	_, _, err := evalRegex(ctx, n, rec)
	if err == nil {
		t.Fatal("evalRegex with nil Compiled: want error, got nil")
	}
}
