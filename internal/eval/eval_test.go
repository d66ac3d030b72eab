package eval

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/idset"
	"github.com/standardbeagle/bfind/internal/types"
)

// fakeStatSource is a fixed StatInfo/error pair for both Follow and
// NoFollow, mirroring internal/predicate's test helper of the same
// name.
type fakeStatSource struct {
	info types.StatInfo
	err  error
}

func (f fakeStatSource) Stat(mode types.StatMode) (types.StatInfo, error) {
	return f.info, f.err
}

func leaf(kind expr.Kind) *expr.Node {
	a := expr.NewArena()
	return a.New(kind, nil)
}

func rec(path string, depth int, src types.StatSource) *types.FileRecord {
	return &types.FileRecord{Path: path, Depth: depth, Src: src}
}

func TestEvalAndShortCircuitsOnFirstFalse(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.And)
	first := leaf(expr.False)
	second := leaf(expr.True)
	n.Append(first)
	n.Append(second)

	result, control, err := evalNode(ctx, n, rec("a", 0, nil))
	require.NoError(t, err)
	assert.False(t, result)
	assert.Equal(t, types.ContinueWalk, control)
	assert.EqualValues(t, 1, first.Evaluations.Load())
	assert.EqualValues(t, 0, second.Evaluations.Load(), "and must not evaluate past the first false child")
}

func TestEvalAndEvaluatesAllWhenTrue(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.And)
	first := leaf(expr.True)
	second := leaf(expr.True)
	n.Append(first)
	n.Append(second)

	result, _, err := evalNode(ctx, n, rec("a", 0, nil))
	require.NoError(t, err)
	assert.True(t, result)
	assert.EqualValues(t, 1, second.Evaluations.Load())
}

func TestEvalOrShortCircuitsOnFirstTrue(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.Or)
	first := leaf(expr.True)
	second := leaf(expr.False)
	n.Append(first)
	n.Append(second)

	result, control, err := evalNode(ctx, n, rec("a", 0, nil))
	require.NoError(t, err)
	assert.True(t, result)
	assert.Equal(t, types.ContinueWalk, control)
	assert.EqualValues(t, 0, second.Evaluations.Load(), "or must not evaluate past the first true child")
}

func TestEvalNotInvertsResult(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.Not)
	n.Append(leaf(expr.True))

	result, control, err := evalNode(ctx, n, rec("a", 0, nil))
	require.NoError(t, err)
	assert.False(t, result)
	assert.Equal(t, types.ContinueWalk, control)
}

func TestEvalCommaRunsEveryChildAndReturnsLast(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.Comma)
	first := leaf(expr.False)
	second := leaf(expr.True)
	n.Append(first)
	n.Append(second)

	result, control, err := evalNode(ctx, n, rec("a", 0, nil))
	require.NoError(t, err)
	assert.True(t, result, "comma's result is the last child's value")
	assert.Equal(t, types.ContinueWalk, control)
	assert.EqualValues(t, 1, first.Evaluations.Load(), "comma still evaluates earlier children for their side effects")
}

func TestEvalPropagatesPruneFromChild(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.And)
	n.Append(leaf(expr.Prune))
	n.Append(leaf(expr.True))

	_, control, err := evalNode(ctx, n, rec("a/b", 1, nil))
	require.NoError(t, err)
	assert.Equal(t, types.Prune, control)
}

func TestRunUniquenessFilterPrunesAlreadySeenID(t *testing.T) {
	ctx := config.New([]string{"."})
	ctx.Dedup = idset.New()
	ctx.Expr = leaf(expr.True)

	src := fakeStatSource{info: types.StatInfo{Dev: 1, Ino: 7}}
	first := rec("a", 0, src)
	second := rec("b", 0, src) // same (dev, ino): a hardlink of a

	result, control, err := Run(ctx, first)
	require.NoError(t, err)
	assert.True(t, result)
	assert.Equal(t, types.ContinueWalk, control)

	result, control, err = Run(ctx, second)
	require.NoError(t, err)
	assert.False(t, result)
	assert.Equal(t, types.Prune, control, "a repeat file id must be pruned, not merely excluded from output")
}

func TestRunExcludeExpressionPrunesMatch(t *testing.T) {
	ctx := config.New([]string{"."})
	ctx.Exclude = leaf(expr.True)
	ctx.Expr = leaf(expr.True)

	result, control, err := Run(ctx, rec("a", 0, nil))
	require.NoError(t, err)
	assert.False(t, result)
	assert.Equal(t, types.Prune, control)
}

func TestRunDepthGate(t *testing.T) {
	ctx := config.New([]string{"."})
	ctx.MinDepth = 2
	ctx.MaxDepth = 3
	ctx.Expr = leaf(expr.True)

	tooShallow, _, err := Run(ctx, rec("a", 1, nil))
	require.NoError(t, err)
	assert.False(t, tooShallow)

	inRange, _, err := Run(ctx, rec("a/b", 2, nil))
	require.NoError(t, err)
	assert.True(t, inRange)

	tooDeep, _, err := Run(ctx, rec("a/b/c/d", 4, nil))
	require.NoError(t, err)
	assert.False(t, tooDeep)
}

func TestRunNilExprMatchesEverythingInDepthRange(t *testing.T) {
	ctx := config.New([]string{"."})
	result, control, err := Run(ctx, rec("a", 0, nil))
	require.NoError(t, err)
	assert.True(t, result)
	assert.Equal(t, types.ContinueWalk, control)
}

// TestIgnoreRacesSuppressesRaceClassErrorsBelowRoot: a stat failure
// classified as a race (file vanished between
// readdir and stat, at depth > 0) is swallowed when ignore_races is on,
// but a failure at depth 0 -- a root argument the user named directly --
// is never a race and must always surface.
func TestIgnoreRacesSuppressesRaceClassErrorsBelowRoot(t *testing.T) {
	n := leaf(expr.IntCmp)
	n.Payload = &expr.IntCmpPayload{Field: expr.FieldSize, Op: expr.CmpEq, Value: 0}
	vanished := fakeStatSource{err: os.ErrNotExist}

	ctx := config.New([]string{"."})
	ctx.IgnoreRaces = true
	result, control, err := evalNode(ctx, n, rec("a/b", 1, vanished))
	require.NoError(t, err, "ignore_races must suppress a race-class error at depth > 0")
	assert.False(t, result)
	assert.Equal(t, types.ContinueWalk, control)

	ctx2 := config.New([]string{"."})
	ctx2.IgnoreRaces = false
	_, _, err = evalNode(ctx2, n, rec("a/b", 1, vanished))
	assert.Error(t, err, "without ignore_races the same failure must surface")

	ctx3 := config.New([]string{"."})
	ctx3.IgnoreRaces = true
	_, _, err = evalNode(ctx3, n, rec(".", 0, vanished))
	assert.Error(t, err, "a missing root argument (depth 0) is never treated as a race")
}

func TestEvalLeafPanicsOnAlwaysTrueViolation(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.False)
	n.AlwaysTrue = true

	assert.Panics(t, func() {
		evalLeaf(ctx, n, rec("a", 0, nil))
	})
}

func TestEvalLeafPanicsOnAlwaysFalseViolation(t *testing.T) {
	ctx := config.New([]string{"."})
	n := leaf(expr.True)
	n.AlwaysFalse = true

	assert.Panics(t, func() {
		evalLeaf(ctx, n, rec("a", 0, nil))
	})
}
