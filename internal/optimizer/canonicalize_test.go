package optimizer

import (
	"testing"

	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
)

func TestCanonicalizeDoubleNegation(t *testing.T) {
	a := expr.NewArena()
	leaf := a.New(expr.StringMatch, nil)
	leaf.Payload = &expr.StringMatchPayload{Pattern: "x"}
	inner := a.New(expr.Not, nil)
	inner.Append(leaf)
	outer := a.New(expr.Not, nil)
	outer.Append(inner)

	got := canonicalize(a, outer, debug.NewTracer(0, nil))
	if got != leaf {
		t.Fatalf("not(not(x)) should canonicalize to x, got kind %v", got.Kind)
	}
}

func TestCanonicalizeDeMorganSinksThroughAnd(t *testing.T) {
	a := expr.NewArena()
	l1 := a.New(expr.StringMatch, nil)
	l1.Payload = &expr.StringMatchPayload{Pattern: "a"}
	l2 := a.New(expr.StringMatch, nil)
	l2.Payload = &expr.StringMatchPayload{Pattern: "b"}
	and := a.New(expr.And, nil)
	and.Extend([]*expr.Node{l1, l2})
	not := a.New(expr.Not, nil)
	not.Append(and)

	got := canonicalize(a, not, debug.NewTracer(0, nil))
	if got.Kind != expr.Or {
		t.Fatalf("not(and(a,b)) should sink to or(not a, not b), got %v", got.Kind)
	}
	if got.NumChildren() != 2 {
		t.Fatalf("expected 2 children, got %d", got.NumChildren())
	}
	for _, c := range got.Children() {
		if c.Kind != expr.Not {
			t.Errorf("expected every child to be Not, got %v", c.Kind)
		}
	}
}

func TestCanonicalizeFlattensAssociative(t *testing.T) {
	a := expr.NewArena()
	inner := a.New(expr.And, nil)
	inner.Extend([]*expr.Node{a.New(expr.True, nil), a.New(expr.True, nil)})
	outer := a.New(expr.And, nil)
	outer.Extend([]*expr.Node{inner, a.New(expr.False, nil)})

	got := canonicalize(a, outer, debug.NewTracer(0, nil))
	if got.Kind != expr.And || got.NumChildren() != 3 {
		t.Fatalf("expected flattened and() with 3 children, got kind=%v n=%d", got.Kind, got.NumChildren())
	}
}

func TestCanonicalizeCollapsesUnary(t *testing.T) {
	a := expr.NewArena()
	leaf := a.New(expr.True, nil)
	and := a.New(expr.And, nil)
	and.Append(leaf)

	got := canonicalize(a, and, debug.NewTracer(0, nil))
	if got != leaf {
		t.Fatalf("and(x) should collapse to x")
	}
}

func TestCanonicalizeEmptyAndIsTrue(t *testing.T) {
	a := expr.NewArena()
	and := a.New(expr.And, nil)
	got := canonicalize(a, and, debug.NewTracer(0, nil))
	if got.Kind != expr.True {
		t.Fatalf("empty and() should canonicalize to true, got %v", got.Kind)
	}
}
