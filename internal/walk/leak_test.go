package walk

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/standardbeagle/bfind/internal/types"
)

// TestMain verifies that a walk using the semaphore-bounded directory
// handles and the errgroup-backed stat prefetch leaves no goroutines
// running once Walk returns, across every test in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEngineConcurrentWalkLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := mustMkTree(t)
	e := New(Config{Strategy: types.BFS, MaxDepth: -1, Threads: 4, FDBudget: 2})
	cb := &recordingCallback{}
	if err := e.Walk([]string{root}, cb); err != nil {
		t.Fatalf("Walk: %v", err)
	}
}
