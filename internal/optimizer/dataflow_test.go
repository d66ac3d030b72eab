package optimizer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

func TestDataflowFoldsContradictorySizeRange(t *testing.T) {
	a := expr.NewArena()
	gt := a.New(expr.IntCmp, nil)
	gt.Payload = &expr.IntCmpPayload{Field: expr.FieldSize, Op: expr.CmpGt, Value: 10}
	lt := a.New(expr.IntCmp, nil)
	lt.Payload = &expr.IntCmpPayload{Field: expr.FieldSize, Op: expr.CmpLt, Value: 5}
	and := a.New(expr.And, nil)
	and.Extend([]*expr.Node{gt, lt})
	annotate(and)

	var buf bytes.Buffer
	tracer := debug.NewTracer(0, &buf)
	ana := newAnalysis(tracer)
	root := ana.dataflow(and, Top())

	if root.Kind != expr.False {
		t.Fatalf("size>10 && size<5 should fold to false, got kind=%v", root.Kind)
	}
	if !strings.Contains(buf.String(), "always false") {
		t.Errorf("expected an always-false warning, got log: %q", buf.String())
	}
}

func TestDataflowTypeTestMasksAreDisjoint(t *testing.T) {
	a := expr.NewArena()
	isDir := a.New(expr.TypeTest, nil)
	isDir.Payload = &expr.TypeTestPayload{Mask: uint32(types.Dir.Mask())}
	isFile := a.New(expr.TypeTest, nil)
	isFile.Payload = &expr.TypeTestPayload{Mask: uint32(types.Regular.Mask())}
	and := a.New(expr.And, nil)
	and.Extend([]*expr.Node{isDir, isFile})
	annotate(and)

	ana := newAnalysis(debug.NewTracer(0, nil))
	root := ana.dataflow(and, Top())

	if root.Kind != expr.False {
		t.Fatalf("type==dir && type==file should fold to false, got kind=%v", root.Kind)
	}
}

// TestDataflowXTypeUsesLinkTargetMask checks that -xtype narrows the
// link-target bitmask, not the file-type one: an -xtype/-type pair over
// disjoint types is satisfiable (a symlink to a dir), while two disjoint
// -xtype tests are not.
func TestDataflowXTypeUsesLinkTargetMask(t *testing.T) {
	a := expr.NewArena()
	xDir := a.New(expr.TypeTest, nil)
	xDir.Payload = &expr.TypeTestPayload{Mask: uint32(types.Dir.Mask()), FollowLinks: true}
	isFile := a.New(expr.TypeTest, nil)
	isFile.Payload = &expr.TypeTestPayload{Mask: uint32(types.Regular.Mask())}
	and := a.New(expr.And, nil)
	and.Extend([]*expr.Node{xDir, isFile})
	annotate(and)

	ana := newAnalysis(debug.NewTracer(0, nil))
	if root := ana.dataflow(and, Top()); root.Kind != expr.And {
		t.Fatalf("xtype==dir && type==file is satisfiable and must survive, got kind=%v", root.Kind)
	}

	xFile := a.New(expr.TypeTest, nil)
	xFile.Payload = &expr.TypeTestPayload{Mask: uint32(types.Regular.Mask()), FollowLinks: true}
	xDir2 := a.New(expr.TypeTest, nil)
	xDir2.Payload = &expr.TypeTestPayload{Mask: uint32(types.Dir.Mask()), FollowLinks: true}
	and2 := a.New(expr.And, nil)
	and2.Extend([]*expr.Node{xDir2, xFile})
	annotate(and2)

	ana2 := newAnalysis(debug.NewTracer(0, nil))
	if root := ana2.dataflow(and2, Top()); root.Kind != expr.False {
		t.Fatalf("xtype==dir && xtype==file should fold to false, got kind=%v", root.Kind)
	}
}

// TestDataflowGtSaturatesAtInt64Max covers the overflow
// boundary: "> LLONG_MAX" can never hold, and the narrowing must not
// wrap around instead of going to bottom.
func TestDataflowGtSaturatesAtInt64Max(t *testing.T) {
	a := expr.NewArena()
	gt := a.New(expr.IntCmp, nil)
	gt.Payload = &expr.IntCmpPayload{Field: expr.FieldLinks, Op: expr.CmpGt, Value: maxInt64}
	annotate(gt)

	ana := newAnalysis(debug.NewTracer(0, nil))
	root := ana.dataflow(gt, Top())
	if root.Kind != expr.False {
		t.Fatalf("links > int64 max should fold to false, got kind=%v", root.Kind)
	}
}

func TestDataflowImpureNodeFlaggedNotDeleted(t *testing.T) {
	a := expr.NewArena()
	gt := a.New(expr.IntCmp, nil)
	gt.Payload = &expr.IntCmpPayload{Field: expr.FieldSize, Op: expr.CmpGt, Value: 10}
	lt := a.New(expr.IntCmp, nil)
	lt.Payload = &expr.IntCmpPayload{Field: expr.FieldSize, Op: expr.CmpLt, Value: 5}
	del := a.New(expr.Delete, nil)
	and := a.New(expr.And, nil)
	and.Extend([]*expr.Node{gt, lt, del})
	annotate(and)

	ana := newAnalysis(debug.NewTracer(0, nil))
	root := ana.dataflow(and, Top())

	if root.Kind != expr.And {
		t.Fatalf("an impure and() must survive folding, got kind=%v", root.Kind)
	}
	if !root.AlwaysFalse {
		t.Errorf("expected AlwaysFalse=true on the impure and(), since its branch is provably unreachable")
	}
}

func TestDataflowAccessNarrowsPredicate(t *testing.T) {
	a := expr.NewArena()
	readable := a.New(expr.Access, nil)
	readable.Payload = &expr.AccessPayload{Mode: expr.AccessRead}
	annotate(readable)

	ana := newAnalysis(debug.NewTracer(0, nil))
	ana.dataflow(readable, Top())
	f := ana.perNode[readable]
	if f.AfterTrue.Preds[PredReadable] != triTrueOnly {
		t.Errorf("after true branch, readable predicate should be true-only, got %v", f.AfterTrue.Preds[PredReadable])
	}
	if f.AfterFalse.Preds[PredReadable] != triFalseOnly {
		t.Errorf("after false branch, readable predicate should be false-only, got %v", f.AfterFalse.Preds[PredReadable])
	}
}
