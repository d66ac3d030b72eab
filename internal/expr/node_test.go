package expr

import "testing"

func TestArenaNewDefaults(t *testing.T) {
	a := NewArena()
	n := a.New(True, nil)
	if n.Kind != True {
		t.Fatalf("Kind = %v, want True", n.Kind)
	}
	if n.Probability != 0.5 {
		t.Errorf("Probability = %v, want 0.5", n.Probability)
	}
	if !n.Pure {
		t.Errorf("expected new node to default Pure=true")
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}

func TestNodeAppendExtend(t *testing.T) {
	a := NewArena()
	and := a.New(And, nil)
	if !and.IsParent() {
		t.Fatalf("expected And to be a parent kind")
	}
	t1, t2, t3 := a.New(True, nil), a.New(True, nil), a.New(False, nil)

	and.Append(t1)
	and.Extend([]*Node{t2, t3})

	if and.NumChildren() != 3 {
		t.Fatalf("NumChildren() = %d, want 3", and.NumChildren())
	}
	children := and.Children()
	if children[0] != t1 || children[1] != t2 || children[2] != t3 {
		t.Errorf("Children() out of order: %v", children)
	}
}

// TestAppendRecomputesAggregates checks the attach-time contract: an
// operator's Pure/PersistentFDs/EphemeralFDs track its child list as
// children arrive, not only after an annotation pass.
func TestAppendRecomputesAggregates(t *testing.T) {
	a := NewArena()
	and := a.New(And, nil)

	impure := a.New(Print, nil)
	impure.Pure = false
	impure.PersistentFDs = 1
	impure.EphemeralFDs = 1
	and.Append(impure)
	if and.Pure {
		t.Errorf("appending an impure child must clear the parent's Pure")
	}
	if and.PersistentFDs != 1 || and.EphemeralFDs != 1 {
		t.Errorf("aggregates = %d/%d, want 1/1", and.PersistentFDs, and.EphemeralFDs)
	}

	stat := a.New(IntCmp, nil)
	stat.PersistentFDs = 1
	stat.EphemeralFDs = 1
	and.Extend([]*Node{stat})
	if and.PersistentFDs != 2 {
		t.Errorf("PersistentFDs = %d, want the sum 2", and.PersistentFDs)
	}
	if and.EphemeralFDs != 1 {
		t.Errorf("EphemeralFDs = %d, want the max 1", and.EphemeralFDs)
	}

	and.SetChildren([]*Node{stat})
	if !and.Pure || and.PersistentFDs != 1 {
		t.Errorf("SetChildren must re-derive aggregates, got pure=%v fds=%d", and.Pure, and.PersistentFDs)
	}
}

func TestNodeSetChildrenReplaces(t *testing.T) {
	a := NewArena()
	or := a.New(Or, nil)
	or.Extend([]*Node{a.New(True, nil), a.New(True, nil)})

	replacement := []*Node{a.New(False, nil)}
	or.SetChildren(replacement)

	if or.NumChildren() != 1 || or.Children()[0].Kind != False {
		t.Errorf("SetChildren did not replace child list: %v", or.Children())
	}
}

func TestLeafIsNotParent(t *testing.T) {
	a := NewArena()
	n := a.New(IntCmp, nil)
	n.Payload = &IntCmpPayload{Field: FieldSize, Op: CmpGt, Value: 1024}
	if n.IsParent() {
		t.Errorf("IntCmp node should not be a parent")
	}
	p, ok := n.Payload.(*IntCmpPayload)
	if !ok || p.Value != 1024 {
		t.Fatalf("payload round-trip failed: %v", n.Payload)
	}
}

func TestCmp(t *testing.T) {
	cases := []struct {
		op       CmpOp
		actual   int64
		operand  int64
		expected bool
	}{
		{CmpEq, 5, 5, true},
		{CmpEq, 5, 6, false},
		{CmpLt, 4, 5, true},
		{CmpLt, 5, 5, false},
		{CmpGt, 6, 5, true},
		{CmpGt, 5, 5, false},
	}
	for _, c := range cases {
		if got := Cmp(c.op, c.actual, c.operand); got != c.expected {
			t.Errorf("Cmp(%v, %d, %d) = %v, want %v", c.op, c.actual, c.operand, got, c.expected)
		}
	}
}

func TestArenaClearInvokesRelease(t *testing.T) {
	a := NewArena()
	n1, n2 := a.New(Regex, nil), a.New(Print, nil)
	seen := map[*Node]bool{}
	a.Clear(func(n *Node) { seen[n] = true })

	if !seen[n1] || !seen[n2] {
		t.Errorf("Clear did not release all nodes: %v", seen)
	}
	if a.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", a.Len())
	}
}

func TestNeverReturnsMatchesQuitExit(t *testing.T) {
	for k := Not; k <= False; k++ {
		want := k == Quit || k == Exit
		if got := k.NeverReturns(); got != want {
			t.Errorf("Kind(%v).NeverReturns() = %v, want %v", k, got, want)
		}
	}
}
