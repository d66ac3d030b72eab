// Package optimizer implements the five-pass expression-tree
// optimizer: annotation, canonicalization, data-flow analysis over a
// per-file-fact lattice, cost-based reordering, and simplification,
// driven to a fixpoint and followed by depth-tightening post-processing
// and a heuristic eager-stat decision.
package optimizer

import "github.com/standardbeagle/bfind/internal/types"

// RangeKey names one of the six integer-valued facts the lattice tracks
// as a closed interval.
type RangeKey uint8

const (
	RangeDepth RangeKey = iota
	RangeUID
	RangeGID
	RangeInum
	RangeLinks
	RangeSize
	rangeKeyCount
)

// IntRange is a closed interval [Min, Max]. Bottom when Min > Max.
type IntRange struct {
	Min, Max int64
}

// topRange spans the full int64 domain: unconstrained.
func topRange() IntRange { return IntRange{Min: minInt64, Max: maxInt64} }

// bottomRange is unreachable: no integer satisfies Min <= x <= Max.
func bottomRange() IntRange { return IntRange{Min: 1, Max: 0} }

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

func (r IntRange) isBottom() bool { return r.Min > r.Max }

// narrowAtLeast intersects r with [v, +inf).
func (r IntRange) narrowAtLeast(v int64) IntRange {
	if v > r.Min {
		r.Min = v
	}
	return r
}

// narrowAtMost intersects r with (-inf, v].
func (r IntRange) narrowAtMost(v int64) IntRange {
	if v < r.Max {
		r.Max = v
	}
	return r
}

// narrowExact intersects r with the single point v.
func (r IntRange) narrowExact(v int64) IntRange {
	if v < r.Min || v > r.Max {
		return bottomRange()
	}
	return IntRange{Min: v, Max: v}
}

// removePoint saturates Min/Max inward when v sits exactly on a bound;
// it is a no-op (keeps top/whatever shape) when v is interior, since a
// closed interval can't punch a hole without becoming two intervals.
func (r IntRange) removePoint(v int64) IntRange {
	switch {
	case r.isBottom():
		return r
	case v == r.Min && v == r.Max:
		return bottomRange()
	case v == r.Min:
		if r.Min == maxInt64 {
			return bottomRange()
		}
		r.Min++
		return r
	case v == r.Max:
		if r.Max == minInt64 {
			return bottomRange()
		}
		r.Max--
		return r
	default:
		return r
	}
}

func joinRange(a, b IntRange) IntRange {
	if a.isBottom() {
		return b
	}
	if b.isBottom() {
		return a
	}
	out := a
	if b.Min < out.Min {
		out.Min = b.Min
	}
	if b.Max > out.Max {
		out.Max = b.Max
	}
	return out
}

// PredKey names one of the recognized yes/no tri-state tests:
// readable/writable/executable/acl/capable/empty/hidden/nogroup/
// nouser/sparse/xattr.
type PredKey uint8

const (
	PredReadable PredKey = iota
	PredWritable
	PredExecutable
	PredACL
	PredCapable
	PredEmpty
	PredHidden
	PredNoGroup
	PredNoUser
	PredSparse
	PredXattr
	predKeyCount
)

// triState is the four-value element of the predicate lattice
// component: bottom (unreachable), false-only, true-only, top
// (unconstrained) — distinct from types.Tristate, which is the
// three-value yes/no/indeterminate a platform capability probe reports
// at runtime, not a static-analysis lattice element.
type triState uint8

const (
	triBottom triState = iota
	triFalseOnly
	triTrueOnly
	triTop
)

func joinTri(a, b triState) triState {
	if a == b {
		return a
	}
	if a == triBottom {
		return b
	}
	if b == triBottom {
		return a
	}
	return triTop
}

func (t triState) narrowTrue() triState {
	switch t {
	case triFalseOnly:
		return triBottom
	case triTop:
		return triTrueOnly
	default:
		return t
	}
}

func (t triState) narrowFalse() triState {
	switch t {
	case triTrueOnly:
		return triBottom
	case triTop:
		return triFalseOnly
	default:
		return t
	}
}

// Lattice is one program point's product-of-facts value:
// ranges for the six integer fields, tri-states for the eleven
// recognized yes/no tests, and file-type/link-target-type bitmasks.
type Lattice struct {
	Ranges [rangeKeyCount]IntRange
	Preds  [predKeyCount]triState
	Types  uint32 // types.FileType bitmask; AllTypesMask is top
	XTypes uint32
}

// Top is the fully unconstrained lattice value.
func Top() Lattice {
	var l Lattice
	for i := range l.Ranges {
		l.Ranges[i] = topRange()
	}
	for i := range l.Preds {
		l.Preds[i] = triTop
	}
	l.Types = uint32(types.AllTypesMask)
	l.XTypes = uint32(types.AllTypesMask)
	return l
}

// Entry is the lattice value a real file enters the expression with:
// Top narrowed to the facts every file satisfies before any test runs.
// All six tracked integers are non-negative, which is what proves a
// query like "-depth -1" always false rather than merely improbable.
func Entry() Lattice {
	l := Top()
	for i := range l.Ranges {
		l.Ranges[i] = l.Ranges[i].narrowAtLeast(0)
	}
	return l
}

// Bottom is the unreachable lattice value: at least one component is
// already bottom, so no file can satisfy it.
func Bottom() Lattice {
	var l Lattice
	for i := range l.Ranges {
		l.Ranges[i] = bottomRange()
	}
	return l
}

// IsBottom reports whether l describes an unreachable program point: any
// range is empty, the type mask is empty, or any tri-state is bottom.
func (l Lattice) IsBottom() bool {
	for _, r := range l.Ranges {
		if r.isBottom() {
			return true
		}
	}
	for _, p := range l.Preds {
		if p == triBottom {
			return true
		}
	}
	return l.Types == 0 || l.XTypes == 0
}

// Join computes the least upper bound of a and b component-wise: the
// join may only widen, never fabricate new constraints.
func Join(a, b Lattice) Lattice {
	var out Lattice
	for i := range out.Ranges {
		out.Ranges[i] = joinRange(a.Ranges[i], b.Ranges[i])
	}
	for i := range out.Preds {
		out.Preds[i] = joinTri(a.Preds[i], b.Preds[i])
	}
	out.Types = a.Types | b.Types
	out.XTypes = a.XTypes | b.XTypes
	return out
}
