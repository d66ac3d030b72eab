// Package cli tokenizes argv into root paths, global flags, and the
// expression-atom sub-grammar, building the expr.Node tree the rest of
// bfind's core runs. urfave/cli (wired in cmd/bfind) renders
// help/usage/version, while the actual option parsing — since find(1)'s
// grammar interleaves flags, paths, and expression atoms in any order —
// stays entirely hand-rolled.
package cli

import (
	"fmt"

	"github.com/standardbeagle/bfind/internal/config"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/walk"
)

// Options bundles the traversal-policy flags the global pre-pass
// recognizes that config.Context has no field for (config.Context
// covers the evaluator's view; walk.Config covers the traversal
// engine's). cmd/bfind combines this with ctx to construct the engine.
//
// Walk.MaxDepth is deliberately left unset here: the optimizer may
// tighten ctx.MaxDepth after Parse returns, so cmd/bfind must copy
// ctx.MaxDepth into
// Walk.MaxDepth itself, after calling optimizer.Optimize, not before.
type Options struct {
	Walk walk.Config
}

// parser holds one Parse call's mutable state: the token stream, a
// cursor, the arena new nodes are allocated from, and the one piece of
// state a global flag can change for every atom parsed after it (the
// regex dialect -E selects).
type parser struct {
	ctx   *config.Context
	arena *expr.Arena
	toks  []string
	pos   int

	regexDialect expr.RegexDialect

	// walkCfg lets positional options that live inside the expression
	// grammar (bare -depth) reach the traversal config the way find(1)'s
	// own "options" do: parsed as an always-true primary, applied as a
	// global side effect.
	walkCfg *walk.Config
}

// Parse tokenizes argv (the process's own os.Args[1:]) into ctx.Roots
// and ctx.Expr, and returns the traversal-policy Options the global
// flags selected. ctx must already have Capabilities set (internal/cli
// resolves -user/-group/-samefile/-newer against it while parsing) and
// Arena may be nil, in which case Parse allocates one.
func Parse(ctx *config.Context, argv []string) (*Options, error) {
	if ctx.Arena == nil {
		ctx.Arena = expr.NewArena()
	}

	g := newGlobalScan(ctx)
	exprStart, err := g.scan(argv)
	if err != nil {
		return nil, err
	}
	ctx.Roots = g.roots
	if len(ctx.Roots) == 0 {
		ctx.Roots = []string{"."}
	}

	p := &parser{ctx: ctx, arena: ctx.Arena, toks: argv[exprStart:], regexDialect: g.regexDialect, walkCfg: &g.walk}
	var root *expr.Node
	if len(p.toks) == 0 {
		root = defaultPrintNode(p.arena)
	} else {
		root, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.pos != len(p.toks) {
			return nil, p.errf("unexpected token %q", p.toks[p.pos])
		}
		if !hasAction(root) {
			and := p.arena.New(expr.And, nil)
			and.Append(root)
			and.Append(defaultPrintNode(p.arena))
			root = and
		}
	}
	ctx.Expr = root

	return &Options{Walk: g.walk}, nil
}

// defaultPrintNode builds the implicit "-print" find(1) appends when an
// expression names no action.
func defaultPrintNode(arena *expr.Arena) *expr.Node {
	n := arena.New(expr.Print, []string{"-print"})
	n.Payload = &expr.PrintPayload{}
	return n
}

// hasAction reports whether the tree contains at least one action node
// (print/exec/delete), the set find(1) considers "has a side effect" for
// purposes of deciding whether to append an implicit -print.
func hasAction(n *expr.Node) bool {
	switch n.Kind {
	case expr.Print, expr.Execute, expr.Delete:
		return true
	}
	for _, c := range n.Children() {
		if hasAction(c) {
			return true
		}
	}
	return false
}

// errf builds a parse-kind SearchError anchored at the parser's current
// token, for diagnostics that need the offending argv span.
func (p *parser) errf(format string, args ...interface{}) *bfinderrors.SearchError {
	tok := ""
	if p.pos < len(p.toks) {
		tok = p.toks[p.pos]
	}
	return bfinderrors.New(bfinderrors.KindParse, "cli.parse", fmt.Errorf(format, args...)).WithPath(tok)
}
