package optimizer

import (
	"strings"

	"github.com/standardbeagle/bfind/internal/expr"
)

// annotate is pass 0: a pure bottom-up walk that fills in
// every node's Pure/AlwaysTrue/AlwaysFalse/CallsStat/Cost/Probability
// fields from its Kind and payload, then aggregates PersistentFDs (sum
// of children) and EphemeralFDs (max of children) the same way
// expr.Node.Append would if the tree had been built bottom-up in one
// pass instead of by a parser that appends children before siblings
// exist.
func annotate(n *expr.Node) {
	for _, c := range n.Children() {
		annotate(c)
	}

	switch n.Kind {
	case expr.Not:
		c := n.Children()[0]
		n.Pure = c.Pure
		n.CallsStat = c.CallsStat
		n.Cost = c.Cost
		n.Probability = 1 - c.Probability
		n.AlwaysTrue = c.AlwaysFalse
		n.AlwaysFalse = c.AlwaysTrue

	case expr.And, expr.Or, expr.Comma:
		annotateOperator(n)

	default:
		annotateLeaf(n)
	}

	n.PersistentFDs = sumPersistentFDs(n.Children())
	n.EphemeralFDs = maxEphemeralFDs(n.Children())
	if leafPersistentFDs(n) > 0 {
		n.PersistentFDs += leafPersistentFDs(n)
	}
	if leafEphemeralFDs(n) > n.EphemeralFDs {
		n.EphemeralFDs = leafEphemeralFDs(n)
	}
}

func sumPersistentFDs(children []*expr.Node) int {
	sum := 0
	for _, c := range children {
		sum += c.PersistentFDs
	}
	return sum
}

func maxEphemeralFDs(children []*expr.Node) int {
	max := 0
	for _, c := range children {
		if c.EphemeralFDs > max {
			max = c.EphemeralFDs
		}
	}
	return max
}

// leafPersistentFDs names the nodes that hold an fd open across the
// whole run: a -fprint family sink to a file (not stdout), and -execdir
// /-okdir's dup'd working-directory handle.
func leafPersistentFDs(n *expr.Node) int {
	switch n.Kind {
	case expr.Print:
		if p, ok := n.Payload.(*expr.PrintPayload); ok && p.ToFile != "" {
			return 1
		}
	case expr.Execute:
		if p, ok := n.Payload.(*expr.ExecPayload); ok {
			if p.Action == expr.ExecDir || p.Action == expr.ExecDirConfirm {
				return 1
			}
		}
	}
	return 0
}

// leafEphemeralFDs names nodes that open and close a transient fd per
// evaluation (stat, readlink) rather than holding one open.
func leafEphemeralFDs(n *expr.Node) int {
	if n.CallsStat {
		return 1
	}
	return 0
}

func annotateOperator(n *expr.Node) {
	children := n.Children()
	pure := true
	calls := false
	var prob float64
	switch n.Kind {
	case expr.And:
		prob = 1
	case expr.Or:
		prob = 0
	}
	var cost float64
	for i, c := range children {
		if !c.Pure {
			pure = false
		}
		if c.CallsStat {
			calls = true
		}
		switch n.Kind {
		case expr.And:
			cost += prefixProbability(n.Kind, children, i) * c.Cost
			prob *= c.Probability
		case expr.Or:
			cost += prefixProbability(n.Kind, children, i) * c.Cost
			prob = prob + c.Probability - prob*c.Probability
		case expr.Comma:
			cost += c.Cost
			if i == len(children)-1 {
				prob = c.Probability
			}
		}
	}
	n.Pure = pure
	n.CallsStat = calls
	n.Cost = cost
	n.Probability = clampProbability(prob)

	if len(children) == 0 {
		switch n.Kind {
		case expr.And:
			n.AlwaysTrue = true
		case expr.Or:
			n.AlwaysFalse = true
		}
		return
	}

	switch n.Kind {
	case expr.And:
		n.AlwaysFalse = anyAlwaysFalse(children)
		n.AlwaysTrue = allAlwaysTrue(children)
	case expr.Or:
		n.AlwaysTrue = anyAlwaysTrue(children)
		n.AlwaysFalse = allAlwaysFalse(children)
	case expr.Comma:
		last := children[len(children)-1]
		n.AlwaysTrue = last.AlwaysTrue
		n.AlwaysFalse = last.AlwaysFalse
	}
}

// prefixProbability is the probability that evaluation actually reaches
// child index i under short-circuiting and/or semantics: the product
// (and) or complement-product (or) of every earlier sibling's
// probability of continuing evaluation.
func prefixProbability(kind expr.Kind, children []*expr.Node, i int) float64 {
	p := 1.0
	for j := 0; j < i; j++ {
		if kind == expr.Or {
			p *= 1 - children[j].Probability
		} else {
			p *= children[j].Probability
		}
	}
	return p
}

func anyAlwaysFalse(children []*expr.Node) bool {
	for _, c := range children {
		if c.AlwaysFalse {
			return true
		}
	}
	return false
}

func anyAlwaysTrue(children []*expr.Node) bool {
	for _, c := range children {
		if c.AlwaysTrue {
			return true
		}
	}
	return false
}

func allAlwaysTrue(children []*expr.Node) bool {
	for _, c := range children {
		if !c.AlwaysTrue {
			return false
		}
	}
	return true
}

func allAlwaysFalse(children []*expr.Node) bool {
	for _, c := range children {
		if !c.AlwaysFalse {
			return false
		}
	}
	return true
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// annotateLeaf assigns the baseline cost/probability/purity/calls-stat
// facts for one predicate or action kind: the cost tiers plus the
// refined per-kind probability rules (literal vs wildcard string match,
// type base rates, narrow-range intcmp).
func annotateLeaf(n *expr.Node) {
	n.Pure = isPureKind(n.Kind)
	n.CallsStat = callsStatKind(n)
	n.Cost = costOfKind(n)
	n.Probability = probabilityOfKind(n)
	n.AlwaysTrue = n.Kind == expr.True
	n.AlwaysFalse = n.Kind == expr.False
	switch n.Kind {
	case expr.Print, expr.Delete, expr.Prune:
		// These actions report true on every evaluation that completes.
		n.AlwaysTrue = true
	case expr.Quit, expr.Exit:
		// Never returns normally: both flags set, per the node invariant.
		n.AlwaysTrue = true
		n.AlwaysFalse = true
	}

	if intCmp, ok := n.Payload.(*expr.IntCmpPayload); ok && intCmp.Op == expr.CmpEq {
		// A single-value range narrows probability sharply: treat it as
		// far less likely than a default 0.5 prior, since "exactly n" is
		// a much narrower target than "greater/less than n".
		n.Probability = 0.05
	}
}

func isPureKind(k expr.Kind) bool {
	switch k {
	case expr.Print, expr.Execute, expr.Delete, expr.Prune, expr.Quit, expr.Exit:
		return false
	default:
		return true
	}
}

func callsStatKind(n *expr.Node) bool {
	switch n.Kind {
	case expr.IntCmp:
		p, ok := n.Payload.(*expr.IntCmpPayload)
		return !ok || p.Field != expr.FieldDepth
	case expr.ModeCmp, expr.TypeTest, expr.Access, expr.SameFile, expr.Newer, expr.Delete:
		return true
	case expr.Tristate:
		p, ok := n.Payload.(*expr.TristatePayload)
		return !ok || p.Test != expr.TestHidden
	case expr.StringMatch:
		p, ok := n.Payload.(*expr.StringMatchPayload)
		return ok && p.Field == expr.FieldLName
	case expr.Print:
		p, ok := n.Payload.(*expr.PrintPayload)
		if !ok {
			return false
		}
		for _, d := range p.Directives {
			if d.CallsStat {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func costOfKind(n *expr.Node) float64 {
	switch n.Kind {
	case expr.True, expr.False, expr.Prune, expr.Quit, expr.Exit:
		return costFast
	case expr.StringMatch:
		p, ok := n.Payload.(*expr.StringMatchPayload)
		if ok && isLiteralPattern(p.Pattern) {
			return costFast
		}
		return costFnmatch
	case expr.Regex:
		return costFnmatch
	case expr.IntCmp:
		p, ok := n.Payload.(*expr.IntCmpPayload)
		if ok && p.Field == expr.FieldDepth {
			return costFast
		}
		if ok && p.Field == expr.FieldUsedSince {
			return costEmpty
		}
		return costStat
	case expr.ModeCmp, expr.TypeTest, expr.Access, expr.SameFile, expr.Newer:
		return costStat
	case expr.Tristate:
		p, ok := n.Payload.(*expr.TristatePayload)
		if ok && p.Test == expr.TestHidden {
			return costFast
		}
		if ok && p.Test == expr.TestEmpty {
			return costEmpty
		}
		return costStat
	case expr.Print, expr.Delete, expr.Execute:
		return costPrint
	default:
		return costFast
	}
}

func probabilityOfKind(n *expr.Node) float64 {
	switch n.Kind {
	case expr.True, expr.Print, expr.Delete, expr.Prune, expr.Quit, expr.Exit:
		return 1
	case expr.False:
		return 0
	case expr.StringMatch:
		p, ok := n.Payload.(*expr.StringMatchPayload)
		if ok && isLiteralPattern(p.Pattern) {
			return 0.02 // a literal name rarely matches any given file
		}
		return 0.2 // a wildcard glob matches a broader slice
	case expr.TypeTest:
		p, ok := n.Payload.(*expr.TypeTestPayload)
		if ok {
			return typeMaskBaseProbability(p.Mask)
		}
		return 0.5
	case expr.Access:
		// AND of R/W/X component odds: each bit independently likely.
		return 0.9
	default:
		return 0.5
	}
}

func isLiteralPattern(pattern string) bool {
	return !strings.ContainsAny(pattern, "*?[\\")
}
