package optimizer

import (
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
)

// facts is the three lattice values kept per visited
// expression: the value flowing in (Before) and the two values flowing
// out depending on which branch a caller takes (AfterTrue/AfterFalse).
type facts struct {
	Before    Lattice
	AfterTrue Lattice
	AfterFalse Lattice
}

// analysis carries the data-flow pass's working state across one
// top-down/bottom-up sweep of the tree: the per-node facts table and the
// running join of every program point that precedes an impure
// subexpression.
type analysis struct {
	perNode map[*expr.Node]facts
	impure  Lattice
	tracer  *debug.Tracer
}

func newAnalysis(tracer *debug.Tracer) *analysis {
	return &analysis{perNode: map[*expr.Node]facts{}, impure: Bottom(), tracer: tracer}
}

// dataflow runs pass 2: propagate `before` into n,
// compute `after_true`/`after_false` per n's kind-specific transfer
// function, and rewrite n to its constant result when a pure node's
// branch is unreachable (or flag always_true/always_false when n is
// impure, since an impure node can't be deleted without losing its side
// effect).
func (a *analysis) dataflow(n *expr.Node, before Lattice) *expr.Node {
	switch n.Kind {
	case expr.Not:
		return a.dataflowNot(n, before)
	case expr.And:
		return a.dataflowAnd(n, before)
	case expr.Or:
		return a.dataflowOr(n, before)
	case expr.Comma:
		return a.dataflowComma(n, before)
	default:
		return a.dataflowLeaf(n, before)
	}
}

func (a *analysis) dataflowNot(n *expr.Node, before Lattice) *expr.Node {
	child := n.Children()[0]
	rewritten := a.dataflow(child, before)
	n.SetChildren([]*expr.Node{rewritten})
	cf := a.perNode[rewritten]
	a.perNode[n] = facts{Before: before, AfterTrue: cf.AfterFalse, AfterFalse: cf.AfterTrue}
	return a.maybeFold(n, before, cf.AfterFalse, cf.AfterTrue)
}

func (a *analysis) dataflowAnd(n *expr.Node, before Lattice) *expr.Node {
	children := n.Children()
	cur := before
	afterFalseJoin := Bottom()
	out := make([]*expr.Node, 0, len(children))
	for _, c := range children {
		rewritten := a.dataflow(c, cur)
		out = append(out, rewritten)
		cf := a.perNode[rewritten]
		afterFalseJoin = Join(afterFalseJoin, cf.AfterFalse)
		cur = cf.AfterTrue
	}
	n.SetChildren(out)
	afterTrue := cur
	if len(children) == 0 {
		afterTrue = before
	}
	a.perNode[n] = facts{Before: before, AfterTrue: afterTrue, AfterFalse: afterFalseJoin}
	return a.maybeFold(n, before, afterTrue, afterFalseJoin)
}

func (a *analysis) dataflowOr(n *expr.Node, before Lattice) *expr.Node {
	children := n.Children()
	cur := before
	afterTrueJoin := Bottom()
	out := make([]*expr.Node, 0, len(children))
	for _, c := range children {
		rewritten := a.dataflow(c, cur)
		out = append(out, rewritten)
		cf := a.perNode[rewritten]
		afterTrueJoin = Join(afterTrueJoin, cf.AfterTrue)
		cur = cf.AfterFalse
	}
	n.SetChildren(out)
	afterFalse := cur
	if len(children) == 0 {
		afterFalse = before
	}
	a.perNode[n] = facts{Before: before, AfterTrue: afterTrueJoin, AfterFalse: afterFalse}
	return a.maybeFold(n, before, afterTrueJoin, afterFalse)
}

func (a *analysis) dataflowComma(n *expr.Node, before Lattice) *expr.Node {
	children := n.Children()
	cur := before
	out := make([]*expr.Node, 0, len(children))
	var lastFacts facts
	for _, c := range children {
		rewritten := a.dataflow(c, cur)
		out = append(out, rewritten)
		cf := a.perNode[rewritten]
		lastFacts = cf
		cur = Join(cf.AfterTrue, cf.AfterFalse)
	}
	n.SetChildren(out)
	if len(children) == 0 {
		lastFacts = facts{Before: before, AfterTrue: before, AfterFalse: before}
	}
	a.perNode[n] = facts{Before: before, AfterTrue: lastFacts.AfterTrue, AfterFalse: lastFacts.AfterFalse}
	return n
}

func (a *analysis) dataflowLeaf(n *expr.Node, before Lattice) *expr.Node {
	if !n.Pure {
		a.impure = Join(a.impure, before)
	}
	afterTrue, afterFalse := transferLeaf(n, before)
	a.perNode[n] = facts{Before: before, AfterTrue: afterTrue, AfterFalse: afterFalse}
	return a.maybeFold(n, before, afterTrue, afterFalse)
}

// maybeFold folds a node whose branch is unreachable: if after_true of
// a pure node is bottom, rewrite to false; if after_false is bottom,
// rewrite to true; if the node is impure, set always_true/always_false
// instead (an impure node's side effect must still run, so it can't be
// deleted, but the evaluator can skip the invariant-violation panic by
// knowing the outcome is forced).
func (a *analysis) maybeFold(n *expr.Node, before, afterTrue, afterFalse Lattice) *expr.Node {
	if before.IsBottom() {
		return n
	}
	trueBottom := afterTrue.IsBottom()
	falseBottom := afterFalse.IsBottom()
	if !trueBottom && !falseBottom {
		return n
	}
	if n.Pure {
		if trueBottom && !falseBottom {
			a.tracer.Rewrite("dataflow", n.Kind.String(), "false")
			a.tracer.Warn("this expression is always false")
			return toConst(n, false)
		}
		if falseBottom && !trueBottom {
			a.tracer.Rewrite("dataflow", n.Kind.String(), "true")
			return toConst(n, true)
		}
		return n
	}
	if trueBottom && !falseBottom {
		n.AlwaysFalse = true
	}
	if falseBottom && !trueBottom {
		n.AlwaysTrue = true
	}
	return n
}

func toConst(n *expr.Node, value bool) *expr.Node {
	if value {
		n.Kind = expr.True
	} else {
		n.Kind = expr.False
	}
	n.SetChildren(nil)
	n.AlwaysTrue = value
	n.AlwaysFalse = !value
	return n
}

// transferLeaf computes a primitive's after_true/after_false lattice
// update from its Before value: inum narrows a range, type AND-masks
// the type bitmask, access forces a predicate tri-state true.
func transferLeaf(n *expr.Node, before Lattice) (afterTrue, afterFalse Lattice) {
	afterTrue, afterFalse = before, before

	switch n.Kind {
	case expr.IntCmp:
		p := n.Payload.(*expr.IntCmpPayload)
		key, ok := rangeKeyOf(p.Field)
		if !ok {
			return
		}
		r := before.Ranges[key]
		lo, hi := operandBounds(p)
		switch p.Op {
		case expr.CmpEq:
			if lo == hi {
				afterTrue.Ranges[key] = r.narrowExact(lo)
				afterFalse.Ranges[key] = r.removePoint(lo)
			} else {
				// -size with a multi-byte unit matches a whole interval of
				// raw values (round-up-then-compare); the false branch can't
				// punch an interval-sized hole in a single range, so it
				// stays at before.
				afterTrue.Ranges[key] = r.narrowAtLeast(lo).narrowAtMost(hi)
			}
		case expr.CmpGt:
			// Saturating at the domain edge: nothing is > max int64.
			if hi == maxInt64 {
				afterTrue.Ranges[key] = bottomRange()
			} else {
				afterTrue.Ranges[key] = r.narrowAtLeast(hi + 1)
			}
			afterFalse.Ranges[key] = r.narrowAtMost(hi)
		case expr.CmpLt:
			if lo == minInt64 {
				afterTrue.Ranges[key] = bottomRange()
			} else {
				afterTrue.Ranges[key] = r.narrowAtMost(lo - 1)
			}
			afterFalse.Ranges[key] = r.narrowAtLeast(lo)
		}

	case expr.TypeTest:
		p := n.Payload.(*expr.TypeTestPayload)
		if p.FollowLinks {
			afterTrue.XTypes = before.XTypes & p.Mask
			afterFalse.XTypes = before.XTypes &^ p.Mask
		} else {
			afterTrue.Types = before.Types & p.Mask
			afterFalse.Types = before.Types &^ p.Mask
		}

	case expr.Access:
		p := n.Payload.(*expr.AccessPayload)
		key := predKeyOfAccess(p.Mode)
		afterTrue.Preds[key] = before.Preds[key].narrowTrue()
		afterFalse.Preds[key] = before.Preds[key].narrowFalse()

	case expr.Tristate:
		p := n.Payload.(*expr.TristatePayload)
		key := predKeyOfTristate(p.Test)
		afterTrue.Preds[key] = before.Preds[key].narrowTrue()
		afterFalse.Preds[key] = before.Preds[key].narrowFalse()
	}
	return
}

// operandBounds maps a comparison operand to the closed interval of raw
// field values it names. For every field but -size that's the single
// point [Value, Value]; -size's operand is a unit count, and "round
// bytes up to the unit, then compare" means a count of v covers raw
// sizes ((v-1)*unit, v*unit], saturating rather than overflowing at the
// int64 edges.
func operandBounds(p *expr.IntCmpPayload) (lo, hi int64) {
	if p.Field != expr.FieldSize {
		return p.Value, p.Value
	}
	unit := p.SizeUnit.Bytes()
	if unit <= 1 {
		return p.Value, p.Value
	}
	v := p.Value
	if v <= 0 {
		return 0, 0
	}
	if v > maxInt64/unit {
		return maxInt64, maxInt64
	}
	hi = v * unit
	lo = hi - unit + 1
	return lo, hi
}

func rangeKeyOf(f expr.IntField) (RangeKey, bool) {
	switch f {
	case expr.FieldDepth:
		return RangeDepth, true
	case expr.FieldUID:
		return RangeUID, true
	case expr.FieldGID:
		return RangeGID, true
	case expr.FieldInode:
		return RangeInum, true
	case expr.FieldLinks:
		return RangeLinks, true
	case expr.FieldSize:
		return RangeSize, true
	default:
		return 0, false
	}
}

func predKeyOfAccess(m expr.AccessMode) PredKey {
	switch m {
	case expr.AccessRead:
		return PredReadable
	case expr.AccessWrite:
		return PredWritable
	default:
		return PredExecutable
	}
}

func predKeyOfTristate(t expr.TristateTest) PredKey {
	switch t {
	case expr.TestEmpty:
		return PredEmpty
	case expr.TestHidden:
		return PredHidden
	case expr.TestACL:
		return PredACL
	case expr.TestCapable:
		return PredCapable
	case expr.TestNoUser:
		return PredNoUser
	case expr.TestNoGroup:
		return PredNoGroup
	case expr.TestSparse:
		return PredSparse
	default:
		return PredXattr
	}
}
