// Package expr implements the expression tree: a tagged
// tree of operator, predicate, and action nodes, each carrying the
// per-node metadata the optimizer and evaluator both read.
package expr

// Kind is the discriminant for the tagged node variant. Exactly one
// variant's payload is populated for a given Kind.
type Kind uint8

const (
	// Operators.
	Not Kind = iota
	And
	Or
	Comma

	// Predicates and actions.
	IntCmp      // time/size/depth/links/inode/uid/gid comparisons
	ModeCmp     // -perm
	StringMatch // -name/-path/-lname
	Regex       // -regex/-iregex
	TypeTest    // -type/-xtype
	Access      // -readable/-writable/-executable
	SameFile    // -samefile
	Newer       // -newer
	Tristate    // -empty/-hidden/-acl/-capable/-nouser/-nogroup/-sparse/-xattr
	Print       // -print/-print0/-printf/-fprint/-fprint0/-fprintf/-fls
	Execute     // -exec/-execdir/-ok/-okdir
	Delete      // -delete
	Prune
	Quit
	Exit
	True
	False
)

var kindNames = map[Kind]string{
	Not:         "not",
	And:         "and",
	Or:          "or",
	Comma:       "comma",
	IntCmp:      "intcmp",
	ModeCmp:     "modecmp",
	StringMatch: "stringmatch",
	Regex:       "regex",
	TypeTest:    "type",
	Access:      "access",
	SameFile:    "samefile",
	Newer:       "newer",
	Tristate:    "tristate",
	Print:       "print",
	Execute:     "execute",
	Delete:      "delete",
	Prune:       "prune",
	Quit:        "quit",
	Exit:        "exit",
	True:        "true",
	False:       "false",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsOperator reports whether a Kind is one of the associative/unary
// operators (not/and/or/comma) rather than a leaf predicate or action.
func (k Kind) IsOperator() bool {
	switch k {
	case Not, And, Or, Comma:
		return true
	default:
		return false
	}
}

// IsAssociative reports whether a Kind's children are an ordered, n-ary,
// flattenable list (and/or/comma), as opposed to Not's exactly-one child.
func (k Kind) IsAssociative() bool {
	switch k {
	case And, Or, Comma:
		return true
	default:
		return false
	}
}

// NeverReturns reports whether evaluating a node of this kind means
// control never resumes normally at the caller (quit, exit); these are
// exactly the kinds whose `always_true && always_false` both hold.
func (k Kind) NeverReturns() bool {
	return k == Quit || k == Exit
}
