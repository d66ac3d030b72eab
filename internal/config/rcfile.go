package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// RC is the subset of Context state a `.bfindrc.kdl` file can set:
// defaults applied before CLI flags, which always win on conflict.
type RC struct {
	OptLevel    *int
	IgnoreRaces *bool
	Strategy    string // "bfs", "dfs", "ids", "eds"; empty means unset
	Color       *bool
	Excludes    []string // patterns merged into an implicit top-level -name exclude

	// Presets maps a name to a stored run of expression tokens, spliced
	// into argv where `--preset NAME` appears:
	//   preset "recent-logs" "-name" "*.log" "-mtime" "-1"
	Presets map[string][]string
}

// LoadRC reads `.bfindrc.kdl` from dir, returning (nil, nil) if the file
// does not exist. The document.Node tree is hand-walked rather than fed
// to a struct-tag unmarshaler, since kdl-go has no reflection-based
// decode path.
func LoadRC(dir string) (*RC, error) {
	path := filepath.Join(dir, ".bfindrc.kdl")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	rc := &RC{}
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "optimize":
			if v, ok := firstIntArg(n); ok {
				rc.OptLevel = &v
			}
		case "ignore_races":
			if b, ok := firstBoolArg(n); ok {
				rc.IgnoreRaces = &b
			}
		case "strategy":
			if s, ok := firstStringArg(n); ok {
				rc.Strategy = s
			}
		case "color":
			if b, ok := firstBoolArg(n); ok {
				rc.Color = &b
			}
		case "exclude":
			rc.Excludes = append(rc.Excludes, collectStringArgs(n)...)
		case "preset":
			args := collectStringArgs(n)
			if len(args) < 2 {
				return nil, fmt.Errorf("config: %s: preset needs a name and at least one token", path)
			}
			if rc.Presets == nil {
				rc.Presets = map[string][]string{}
			}
			rc.Presets[args[0]] = args[1:]
		}
	}
	return rc, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
