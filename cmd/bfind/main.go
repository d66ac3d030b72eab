// Command bfind is a breadth-first find(1)-family filesystem search
// tool: it parses a find-style expression, optimizes it, and walks the
// named roots, applying the expression to every file visited.
package main

import (
	"bufio"
	"fmt"
	"os"

	urfave "github.com/urfave/cli/v2"

	"github.com/standardbeagle/bfind/internal/capability"
	"github.com/standardbeagle/bfind/internal/cli"
	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/eval"
	"github.com/standardbeagle/bfind/internal/exec"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/optimizer"
	"github.com/standardbeagle/bfind/internal/types"
	"github.com/standardbeagle/bfind/internal/version"
	"github.com/standardbeagle/bfind/internal/walk"
)

func main() {
	exitCode := 0

	app := &urfave.App{
		Name:    "bfind",
		Usage:   "breadth-first find(1)-family filesystem search",
		Version: version.FullInfo(),
		// find(1)'s own grammar interleaves flags, roots, and expression
		// atoms (many single-dash and unregistered with urfave) freely;
		// the only way to let internal/cli's hand-rolled parser see the
		// raw argv is to keep urfave out of flag parsing entirely. Its
		// -h/--help and --version handling still works, since those are
		// scanned for directly rather than routed through the flag set.
		SkipFlagParsing: true,
		Action: func(c *urfave.Context) error {
			code, err := runSearch(c.Args().Slice())
			exitCode = code
			return err
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bfind:", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// runSearch parses args into an expression, optimizes it, walks the
// named roots, and returns the process exit code the run earned.
func runSearch(args []string) (int, error) {
	ctx := config.New(nil)
	ctx.Capabilities = capability.New()

	env := config.LoadEnvPolicy()
	if !env.POSIXLYCorrect {
		rc, err := applyRC(ctx)
		if err != nil {
			return 2, err
		}
		if args, err = expandPresets(args, rc); err != nil {
			return 2, err
		}
	}

	opts, err := cli.Parse(ctx, args)
	if err != nil {
		return 2, err
	}

	optimizer.Optimize(ctx)

	opts.Walk.MaxDepth = ctx.MaxDepth
	if opts.Walk.FDBudget > 0 && ctx.Expr != nil {
		// The engine's budget covers directory handles only; descriptors
		// the expression holds open for the whole run (-fprint sinks,
		// -execdir working directories) come out of the same pool.
		opts.Walk.FDBudget -= ctx.Expr.PersistentFDs
		if opts.Walk.FDBudget < 1 {
			opts.Walk.FDBudget = 1
		}
	}
	opts.Walk.StatEagerly = opts.Walk.StatEagerly || ctx.StatEagerly
	opts.Walk.Mounts = ctx.Capabilities.Mounts
	if opts.Walk.Tracer == nil {
		opts.Walk.Tracer = ctx.Tracer
	}

	if ctx.Tracer.Enabled(debug.FlagTreeJSON) {
		raw, err := debug.MarshalTreeJSON(ctx.Expr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bfind: tree-json:", err)
		} else {
			os.Stdout.Write(raw)
		}
	}

	engine := walk.New(opts.Walk)
	walkErr := engine.Walk(ctx.Roots, &evalCallback{ctx: ctx})

	execErr := finishExecNodes(ctx)
	sinkErr := ctx.CloseSinks()
	ctx.Arena.Clear(releaseNode)

	for _, reportErr := range []error{walkErr, execErr, sinkErr} {
		if reportErr != nil {
			fmt.Fprintln(os.Stderr, "bfind:", reportErr)
		}
	}
	if engine.Errors().HasErrors() {
		fmt.Fprintln(os.Stderr, "bfind:", engine.Errors())
	}

	if ctx.ExitRequested() {
		return ctx.ExitCode, nil
	}
	if walkErr != nil || execErr != nil || sinkErr != nil || engine.Errors().HasErrors() {
		return 1, nil
	}
	return 0, nil
}

// evalCallback adapts internal/eval's predicate evaluator to
// walk.Callback; the evaluator's own boolean match result has already
// been consumed by the time it reaches here (-print and friends act on
// it as a side effect during Run), so only the control-flow signal
// matters to the engine.
type evalCallback struct {
	ctx *config.Context
}

func (cb *evalCallback) Visit(rec *types.FileRecord) (types.Control, error) {
	_, ctrl, err := eval.Run(cb.ctx, rec)
	return ctrl, err
}

// applyRC loads `.bfindrc.kdl` from the working directory, falling back
// to $HOME, and applies it to ctx before the command line is parsed so
// that explicit flags always win over rc-file defaults. The loaded RC
// is returned so runSearch can also splice its presets into argv.
func applyRC(ctx *config.Context) (*config.RC, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("bfind: %w", err)
	}
	rc, err := config.LoadRC(dir)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		if home, ok := os.LookupEnv("HOME"); ok {
			if rc, err = config.LoadRC(home); err != nil {
				return nil, err
			}
		}
	}
	if rc == nil {
		return nil, nil
	}

	if rc.OptLevel != nil {
		ctx.OptLevel = *rc.OptLevel
	}
	if rc.IgnoreRaces != nil {
		ctx.IgnoreRaces = *rc.IgnoreRaces
	}
	if rc.Strategy != "" {
		strategy, err := strategyByName(rc.Strategy)
		if err != nil {
			return nil, errors.New(errors.KindConfig, "rcfile", err)
		}
		ctx.Strategy = strategy
	}
	if len(rc.Excludes) > 0 {
		ctx.Exclude = buildExcludeExpr(ctx, rc.Excludes)
	}
	return rc, nil
}

// expandPresets replaces every `--preset NAME` pair in args with the
// named token run from the rc file, before the tokenizer ever sees it;
// a preset is pure argv substitution, not a grammar construct.
func expandPresets(args []string, rc *config.RC) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] != "--preset" && args[i] != "-preset" {
			out = append(out, args[i])
			continue
		}
		if i+1 >= len(args) {
			return nil, errors.New(errors.KindParse, "preset", fmt.Errorf("%s requires a name", args[i]))
		}
		name := args[i+1]
		i++
		if rc == nil || rc.Presets[name] == nil {
			return nil, errors.New(errors.KindParse, "preset", fmt.Errorf("no preset %q in .bfindrc.kdl", name))
		}
		out = append(out, rc.Presets[name]...)
	}
	return out, nil
}

// strategyByName mirrors internal/cli's own -S flag mapping; it is
// duplicated here (rather than exported from internal/cli) because
// applyRC must resolve a traversal strategy before cli.Parse has run.
func strategyByName(name string) (types.Strategy, error) {
	switch name {
	case "bfs":
		return types.BFS, nil
	case "dfs":
		return types.DFS, nil
	case "ids":
		return types.IDS, nil
	case "eds":
		return types.EDS, nil
	default:
		return types.BFS, fmt.Errorf("strategy: unknown strategy %q (want bfs, dfs, ids, or eds)", name)
	}
}

// buildExcludeExpr turns a .bfindrc.kdl "exclude" node's patterns into
// the Or-of-StringMatch tree ctx.Exclude expects: a name glob per
// pattern, matching internal/cli's own -name atom construction.
func buildExcludeExpr(ctx *config.Context, patterns []string) *expr.Node {
	if ctx.Arena == nil {
		ctx.Arena = expr.NewArena()
	}
	nodes := make([]*expr.Node, 0, len(patterns))
	for _, pattern := range patterns {
		n := ctx.Arena.New(expr.StringMatch, []string{"-name", pattern})
		n.Payload = &expr.StringMatchPayload{Field: expr.FieldName, Pattern: pattern}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0]
	}
	or := ctx.Arena.New(expr.Or, nil)
	or.Extend(nodes)
	return or
}

// finishExecNodes flushes every batch-mode -exec/-execdir/-ok/-okdir
// machine the tree still holds accumulated argv for, and releases its
// working-directory handle. internal/predicate only feeds machines
// during the walk; nothing else calls Finish, so this must run exactly
// once per process, after the walk completes.
func finishExecNodes(ctx *config.Context) error {
	var multi errors.MultiError
	finish := func(n *expr.Node) {
		m, ok := n.Runtime.(*exec.Machine)
		if !ok || m == nil {
			return
		}
		var confirm func(argv []string) (bool, error)
		if m.Confirm {
			confirm = func(argv []string) (bool, error) {
				return exec.ConfirmPrompt(bufio.NewReader(os.Stdin), os.Stderr, argv)
			}
		}
		if _, err := m.Finish("", confirm); err != nil {
			multi.Append(err)
		}
		if err := m.Close(); err != nil {
			multi.Append(err)
		}
	}
	walkTree(ctx.Expr, finish)
	walkTree(ctx.Exclude, finish)
	if multi.HasErrors() {
		return &multi
	}
	return nil
}

// releaseNode closes any exec.Machine still attached to a node being
// released from the arena, defensively covering the case where a
// parse error or early exit skipped finishExecNodes.
func releaseNode(n *expr.Node) {
	if m, ok := n.Runtime.(*exec.Machine); ok && m != nil {
		m.Close()
	}
}

func walkTree(n *expr.Node, fn func(*expr.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children() {
		walkTree(c, fn)
	}
}
