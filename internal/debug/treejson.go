package debug

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/standardbeagle/bfind/internal/expr"
)

// TreeNode is the JSON shape `-D tree-json` emits for one optimized
// expression node: its kind, the cost/probability the reordering pass
// scored it with, the annotation flags the optimizer set, and its
// children in evaluation order. It mirrors FlagTree's text dump but as
// a machine-readable document rather than a log line.
type TreeNode struct {
	Kind        string      `json:"kind"`
	Cost        float64     `json:"cost"`
	Probability float64     `json:"probability"`
	Pure        bool        `json:"pure"`
	AlwaysTrue  bool        `json:"always_true"`
	AlwaysFalse bool        `json:"always_false"`
	CallsStat   bool        `json:"calls_stat"`
	Children    []*TreeNode `json:"children,omitempty"`
}

// treeNodeSchema describes the TreeNode document. It is built by hand
// rather than via reflection, since TreeNode is self-referential
// through Children: the node shape lives under $defs and both the root
// and the children array refer to it by $ref, so the *Schema graph
// itself stays a tree.
var treeNodeSchema = func() *jsonschema.Schema {
	node := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"kind":         {Type: "string"},
			"cost":         {Type: "number"},
			"probability":  {Type: "number"},
			"pure":         {Type: "boolean"},
			"always_true":  {Type: "boolean"},
			"always_false": {Type: "boolean"},
			"calls_stat":   {Type: "boolean"},
			"children":     {Type: "array", Items: &jsonschema.Schema{Ref: "#/$defs/node"}},
		},
		Required: []string{"kind"},
	}
	return &jsonschema.Schema{
		Ref:  "#/$defs/node",
		Defs: map[string]*jsonschema.Schema{"node": node},
	}
}()

// BuildTreeJSON converts an optimized expression tree into the
// document -D tree-json serializes.
func BuildTreeJSON(n *expr.Node) *TreeNode {
	if n == nil {
		return nil
	}
	tn := &TreeNode{
		Kind:        n.Kind.String(),
		Cost:        n.Cost,
		Probability: n.Probability,
		Pure:        n.Pure,
		AlwaysTrue:  n.AlwaysTrue,
		AlwaysFalse: n.AlwaysFalse,
		CallsStat:   n.CallsStat,
	}
	for _, c := range n.Children() {
		tn.Children = append(tn.Children, BuildTreeJSON(c))
	}
	return tn
}

// MarshalTreeJSON renders an expression tree as -D tree-json's wire
// format: a newline-terminated, schema-validated JSON document.
// Validation failure here would mean the shape above and the schema
// diverged, a programmer error rather than anything a caller can act
// on, so it is reported as an error instead of panicking.
func MarshalTreeJSON(n *expr.Node) ([]byte, error) {
	raw, err := json.Marshal(BuildTreeJSON(n))
	if err != nil {
		return nil, fmt.Errorf("tree-json: encoding: %w", err)
	}
	if err := ValidateTreeJSON(raw); err != nil {
		return nil, fmt.Errorf("tree-json: %w", err)
	}
	return append(raw, '\n'), nil
}

// ValidateTreeJSON checks a previously encoded TreeNode document
// against treeNodeSchema.
func ValidateTreeJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	resolved, err := treeNodeSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving schema: %w", err)
	}
	return resolved.Validate(doc)
}
