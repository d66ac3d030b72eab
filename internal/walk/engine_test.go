package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/bfind/internal/types"
)

type recordingCallback struct {
	visits []*types.FileRecord
}

func (r *recordingCallback) Visit(rec *types.FileRecord) (types.Control, error) {
	cp := *rec
	r.visits = append(r.visits, &cp)
	return types.ContinueWalk, nil
}

func mustMkTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	must(os.WriteFile(filepath.Join(root, "a", "x.txt"), []byte("x"), 0o644))
	must(os.WriteFile(filepath.Join(root, "a", "b", "c.txt"), []byte("c"), 0o644))
	must(os.WriteFile(filepath.Join(root, "top.txt"), []byte("t"), 0o644))
	return root
}

func TestEngineBFSDepthMonotonic(t *testing.T) {
	root := mustMkTree(t)
	e := New(Config{Strategy: types.BFS, MaxDepth: -1})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	lastDepth := -1
	for _, v := range cb.visits {
		if v.Depth < lastDepth {
			t.Fatalf("bfs depth went backwards: saw %d after %d", v.Depth, lastDepth)
		}
		lastDepth = v.Depth
	}
	if len(cb.visits) == 0 {
		t.Fatal("expected at least the root visit")
	}
}

func TestEngineVisitsEveryFile(t *testing.T) {
	root := mustMkTree(t)
	e := New(Config{Strategy: types.DFS, MaxDepth: -1})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	want := map[string]bool{
		root:                                 false,
		filepath.Join(root, "a"):             false,
		filepath.Join(root, "a", "b"):        false,
		filepath.Join(root, "a", "x.txt"):    false,
		filepath.Join(root, "a", "b", "c.txt"): false,
		filepath.Join(root, "top.txt"):       false,
	}
	for _, v := range cb.visits {
		if _, ok := want[v.Path]; ok {
			want[v.Path] = true
		}
	}
	for path, seen := range want {
		if !seen {
			t.Errorf("expected a visit for %s", path)
		}
	}
}

func TestEnginePostOrderAfterDescendants(t *testing.T) {
	root := mustMkTree(t)
	e := New(Config{Strategy: types.BFS, MaxDepth: -1, PostOrder: true})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	posOf := map[string]int{}
	for i, v := range cb.visits {
		posOf[v.Path] = i
	}
	aDir := filepath.Join(root, "a")
	aFile := filepath.Join(root, "a", "x.txt")
	if posOf[aFile] >= posOf[aDir] {
		t.Errorf("expected %s (child) to be visited before %s (post-order dir), got positions %d, %d",
			aFile, aDir, posOf[aFile], posOf[aDir])
	}
	for _, v := range cb.visits {
		if v.Path == aDir && v.Phase != types.PhasePost {
			t.Errorf("expected directory visit under post-order to carry PhasePost, got %v", v.Phase)
		}
	}
}

func TestEngineMaxDepthBoundsDescent(t *testing.T) {
	root := mustMkTree(t)
	e := New(Config{Strategy: types.BFS, MaxDepth: 1})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, v := range cb.visits {
		if v.Depth > 1 {
			t.Errorf("expected no visit deeper than 1, got depth %d for %s", v.Depth, v.Path)
		}
	}
}

type pruneFirstDirCallback struct {
	pruned bool
}

func (p *pruneFirstDirCallback) Visit(rec *types.FileRecord) (types.Control, error) {
	if rec.Type == types.Dir && rec.Depth == 1 && !p.pruned {
		p.pruned = true
		return types.Prune, nil
	}
	return types.ContinueWalk, nil
}

func TestEnginePruneStopsDescent(t *testing.T) {
	root := mustMkTree(t)
	e := New(Config{Strategy: types.BFS, MaxDepth: -1})
	cb := &recordingCallback{}
	pruner := &pruneFirstDirCallback{}
	combined := &fanout{a: pruner, b: cb}
	if err := e.Walk([]string{root}, combined); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, v := range cb.visits {
		if v.Path == filepath.Join(root, "a", "b") || v.Path == filepath.Join(root, "a", "x.txt") {
			t.Errorf("expected pruning of %s's subtree, but saw %s", filepath.Join(root, "a"), v.Path)
		}
	}
}

// fanout calls a first (to decide control) then records via b, using a's
// control verbatim, for tests that need both a policy and a recording.
type fanout struct {
	a interface {
		Visit(rec *types.FileRecord) (types.Control, error)
	}
	b *recordingCallback
}

func (f *fanout) Visit(rec *types.FileRecord) (types.Control, error) {
	control, err := f.a.Visit(rec)
	f.b.Visit(rec)
	return control, err
}

// TestEngineParallelStatMatchesSerial asserts that enabling the worker
// pool (Threads > 1) doesn't change which files are delivered or their
// resolved types, only how the per-entry stat calls are scheduled.
func TestEngineParallelStatMatchesSerial(t *testing.T) {
	root := mustMkTree(t)

	serial := New(Config{Strategy: types.BFS, MaxDepth: -1, Threads: 1})
	serialCb := &recordingCallback{}
	if err := serial.Walk([]string{root}, serialCb); err != nil {
		t.Fatalf("serial Walk: %v", err)
	}

	parallel := New(Config{Strategy: types.BFS, MaxDepth: -1, Threads: 4})
	parallelCb := &recordingCallback{}
	if err := parallel.Walk([]string{root}, parallelCb); err != nil {
		t.Fatalf("parallel Walk: %v", err)
	}

	if len(serialCb.visits) != len(parallelCb.visits) {
		t.Fatalf("visit count mismatch: serial=%d parallel=%d", len(serialCb.visits), len(parallelCb.visits))
	}
	seen := make(map[string]types.FileType, len(serialCb.visits))
	for _, v := range serialCb.visits {
		seen[v.Path] = v.Type
	}
	for _, v := range parallelCb.visits {
		typ, ok := seen[v.Path]
		if !ok {
			t.Errorf("parallel walk visited %s, serial walk did not", v.Path)
			continue
		}
		if typ != v.Type {
			t.Errorf("%s: serial type %v != parallel type %v", v.Path, typ, v.Type)
		}
	}
}

func TestEngineRecoverFalseAbortsOnUnreadableDir(t *testing.T) {
	root := mustMkTree(t)
	unreadable := filepath.Join(root, "a", "b")
	if err := os.Chmod(unreadable, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(unreadable, 0o755)
	if os.Getuid() == 0 {
		t.Skip("running as root: permission bits don't block directory reads")
	}

	e := New(Config{Strategy: types.BFS, MaxDepth: -1, Recover: false})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if e.Errors() == nil {
		t.Fatal("expected a recorded directory-read error")
	}

	// top.txt is a sibling of "a" enumerated after it in most directory
	// orders; without Recover the walk may stop before reaching it, but
	// it must never have descended past the unreadable directory.
	for _, v := range cb.visits {
		if v.Path == filepath.Join(unreadable, "c.txt") {
			t.Errorf("expected no visit past unreadable %s, got %s", unreadable, v.Path)
		}
	}
}

// TestEngineIterativeDeepeningDeliversEachFileOnce checks the
// "files delivered equals files reachable" invariant for the ids/eds
// strategies: every round re-walks from the roots with a wider depth
// bound, so without an internal dedup the shallow files would be
// redelivered once per remaining round.
func TestEngineIterativeDeepeningDeliversEachFileOnce(t *testing.T) {
	for _, strategy := range []types.Strategy{types.IDS, types.EDS} {
		root := mustMkTree(t)
		e := New(Config{Strategy: strategy, MaxDepth: -1})
		cb := &recordingCallback{}
		if err := e.Walk([]string{root}, cb); err != nil {
			t.Fatalf("strategy %v: Walk: %v", strategy, err)
		}

		counts := make(map[string]int, len(cb.visits))
		for _, v := range cb.visits {
			counts[v.Path]++
		}
		for path, n := range counts {
			if n != 1 {
				t.Errorf("strategy %v: %s delivered %d times, want exactly once", strategy, path, n)
			}
		}

		want := []string{
			root,
			filepath.Join(root, "a"),
			filepath.Join(root, "a", "b"),
			filepath.Join(root, "a", "x.txt"),
			filepath.Join(root, "a", "b", "c.txt"),
			filepath.Join(root, "top.txt"),
		}
		for _, path := range want {
			if counts[path] == 0 {
				t.Errorf("strategy %v: expected a visit for %s, got none", strategy, path)
			}
		}
	}
}

func TestEngineStatEagerlyPopulatesCache(t *testing.T) {
	root := mustMkTree(t)
	e := New(Config{Strategy: types.BFS, MaxDepth: -1, StatEagerly: true})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, v := range cb.visits {
		if v.Path == root {
			continue // root's own eager stat isn't performed by expand, only its children's
		}
		if _, cached := v.Stat.Peek(types.NoFollow); !cached {
			t.Errorf("expected %s's no-follow stat to be pre-populated by StatEagerly", v.Path)
		}
	}
}
