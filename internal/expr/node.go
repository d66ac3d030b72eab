package expr

import "sync/atomic"

// Node is one tagged node in the expression tree built by internal/cli's
// parser, rewritten in place by internal/optimizer, and walked by
// internal/eval. Its Payload field holds the variant data of the
// node's Kind (see payload.go).
//
// A Node owns an ordinary Go slice of children rather than a
// singly-linked next-sibling chain: Go's garbage collector already breaks
// reference cycles, so the sibling-pointer trick's only purpose here
// (freeing a whole tree without recursion) isn't needed. The Arena is
// kept anyway, because -exec/-regex/-printf nodes hold OS resources
// (compiled regexes, open -fprint files) that do need an explicit,
// single-pass release when a Context is torn down.
type Node struct {
	Kind     Kind
	ArgvSpan []string // the argv tokens this node was parsed from, for diagnostics

	// Optimizer-computed annotations.
	PersistentFDs int
	EphemeralFDs  int
	Pure          bool
	AlwaysTrue    bool
	AlwaysFalse   bool
	CallsStat     bool
	Cost          float64
	Probability   float64

	// Rate-debug counters (internal/debug FlagRates). Accessed from the
	// single evaluator goroutine during a run and read by the trace
	// writer after; atomics keep `go test -race` quiet if a caller ever
	// does read them concurrently.
	Evaluations  atomic.Int64
	Successes    atomic.Int64
	ElapsedNanos atomic.Int64

	children []*Node

	// Payload holds the Kind-specific variant data; see payload.go. Kept
	// as interface{} rather than one pointer field per variant so that
	// adding a Kind never touches every existing node literal.
	Payload interface{}

	// Runtime holds mutable execution-time state a predicate
	// implementation attaches lazily on first evaluation (e.g. an
	// internal/exec.Machine accumulating -exec's batched argv). Separate
	// from Payload because Payload is the immutable parsed configuration
	// and Runtime is per-run state the optimizer must never inspect.
	Runtime interface{}
}

// IsParent reports whether n has children, i.e. n.Kind.IsOperator().
func (n *Node) IsParent() bool {
	return n.Kind.IsOperator()
}

// Children returns n's child nodes in evaluation order. Callers must not
// retain the returned slice past a subsequent Append/Extend on n.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren is len(n.Children()), exposed separately so hot paths in
// the optimizer don't need to materialize the slice header.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// Append adds child as n's new last child, recomputing the aggregate
// header fields that depend on the child list.
func (n *Node) Append(child *Node) {
	n.children = append(n.children, child)
	n.refreshAggregates()
}

// Extend appends every node in children, in order.
func (n *Node) Extend(children []*Node) {
	n.children = append(n.children, children...)
	n.refreshAggregates()
}

// SetChildren replaces n's entire child list, for optimizer passes that
// rebuild a filtered or reordered list rather than mutating in place.
func (n *Node) SetChildren(children []*Node) {
	n.children = children
	n.refreshAggregates()
}

// refreshAggregates recomputes the structural aggregates an operator
// carries over its children as they attach: Pure is the conjunction,
// PersistentFDs the sum, EphemeralFDs the max. Leaf-kind fields and the
// cost/probability model stay the annotation pass's responsibility;
// this only keeps the child-derived header fields live between passes.
func (n *Node) refreshAggregates() {
	if !n.IsParent() {
		return
	}
	pure := true
	sum, max := 0, 0
	for _, c := range n.children {
		if !c.Pure {
			pure = false
		}
		sum += c.PersistentFDs
		if c.EphemeralFDs > max {
			max = c.EphemeralFDs
		}
	}
	n.Pure = pure
	n.PersistentFDs = sum
	n.EphemeralFDs = max
}

// Arena owns every Node allocated for one parsed expression tree so the
// tree's OS-backed resources (compiled regexes, -fprint file handles,
// -exec argv buffers) can be released together when a search ends,
// without a recursive tree walk. It has no relation to memory
// reclamation: Go's GC handles that regardless of what Clear does.
type Arena struct {
	nodes []*Node
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates a Node of the given Kind, tracks it in the arena, and
// returns it with Probability defaulted to 0.5, the optimizer's prior
// before any cost-model estimate runs.
func (a *Arena) New(kind Kind, argv []string) *Node {
	n := &Node{Kind: kind, ArgvSpan: argv, Probability: 0.5, Pure: true}
	a.nodes = append(a.nodes, n)
	return n
}

// Len returns the number of nodes ever allocated from the arena.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Clear releases every node's variant resources (closing compiled
// regexes holds no OS resource in Go, but -fprint destinations and
// -exec child-process plumbing do) and forgets the arena's node list.
// It must run exactly once, after the search that owns the tree is
// finished evaluating it.
func (a *Arena) Clear(release func(*Node)) {
	if release != nil {
		for _, n := range a.nodes {
			release(n)
		}
	}
	a.nodes = nil
}

// Cmp evaluates a CmpOp against the three-way result of comparing two
// int64s, matching find(1)'s "+n matches greater, n matches equal, -n
// matches less" convention used throughout -mtime/-size/-links/etc.
func Cmp(op CmpOp, actual, operand int64) bool {
	switch op {
	case CmpLt:
		return actual < operand
	case CmpGt:
		return actual > operand
	default:
		return actual == operand
	}
}
