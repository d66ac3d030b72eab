package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/debug"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/idset"
	"github.com/standardbeagle/bfind/internal/predicate"
	"github.com/standardbeagle/bfind/internal/types"
	"github.com/standardbeagle/bfind/internal/walk"
)

// globalScan is the pre-pass over argv's three interleaved token
// categories: it picks off every recognized
// global flag and root path, in any order, stopping at the first token
// that opens the expression (an atom name, "(", "!", or "-not"). The
// remaining tokens, from that point on, belong to the grammar parser.
type globalScan struct {
	ctx   *config.Context
	walk  walk.Config
	roots []string

	// regexDialect is what -E switches: the dialect every -regex/-iregex
	// atom parsed afterward compiles under.
	regexDialect expr.RegexDialect
}

func newGlobalScan(ctx *config.Context) *globalScan {
	return &globalScan{
		ctx:          ctx,
		regexDialect: expr.RegexDialectGo,
		walk: walk.Config{
			DetectCycles: true,
			Recover:      true,
			Buffer:       true,
			// Strategy defaults from whatever the caller (cmd/bfind,
			// applying a .bfindrc.kdl "strategy" node) already set on
			// ctx before Parse runs; an explicit -S still overrides it.
			Strategy: ctx.Strategy,
		},
	}
}

// exprOpeners names every token that begins the expression grammar
// rather than a root path or a global flag's own value.
func isExprOpener(tok string) bool {
	switch tok {
	case "(", ")", "!", ",", "-not", "-a", "-and", "-o", "-or":
		return true
	}
	if !strings.HasPrefix(tok, "-") {
		return false
	}
	_, ok := atomParsers[tok]
	return ok
}

// scan consumes argv's leading run of flags/roots and returns the index
// where the expression grammar begins (len(argv) if the command line
// names no atoms at all, meaning the implicit -print applies to every
// root).
func (g *globalScan) scan(argv []string) (int, error) {
	i := 0
	for i < len(argv) {
		tok := argv[i]
		if tok == "--" {
			i++
			break
		}
		if isExprOpener(tok) {
			break
		}
		if !strings.HasPrefix(tok, "-") {
			g.roots = append(g.roots, tok)
			i++
			continue
		}
		consumed, err := g.applyFlag(argv, i)
		if err != nil {
			return 0, err
		}
		if consumed == 0 {
			// Not a recognized global flag, not an expression atom: report a
			// parse error, with a typo suggestion if one is close.
			if suggestion, ok := predicate.Suggest(tok); ok {
				return 0, bfinderrors.New(bfinderrors.KindParse, "cli.globals",
					fmt.Errorf("unrecognized flag %q (did you mean %q?)", tok, suggestion)).WithPath(tok)
			}
			return 0, bfinderrors.New(bfinderrors.KindParse, "cli.globals",
				fmt.Errorf("unrecognized flag %q", tok)).WithPath(tok)
		}
		i += consumed
	}
	return i, nil
}

// applyFlag recognizes one global flag at argv[i], applies its effect to
// g.ctx/g.walk, and returns how many tokens it consumed (0 if argv[i] is
// not a recognized global flag).
func (g *globalScan) applyFlag(argv []string, i int) (int, error) {
	tok := argv[i]
	arg := func() (string, error) {
		if i+1 >= len(argv) {
			return "", fmt.Errorf("flag %q requires an argument", tok)
		}
		return argv[i+1], nil
	}

	switch tok {
	case "-P":
		g.walk.FollowRoots, g.walk.FollowAll = false, false
		return 1, nil
	case "-H":
		g.walk.FollowRoots, g.walk.FollowAll = true, false
		return 1, nil
	case "-L":
		g.walk.FollowRoots, g.walk.FollowAll = true, true
		return 1, nil

	// -depth is an expression atom (bare: post-order option; with a
	// number: a depth test), so it never reaches here; -d is the
	// flag-only spelling.
	case "-d":
		g.walk.PostOrder = true
		return 1, nil

	case "-xdev":
		// Don't descend across device boundaries; the mount point itself
		// is still delivered.
		g.walk.PruneMounts = true
		g.walk.Mounts = g.ctx.Capabilities.Mounts
		return 1, nil
	case "-mount":
		// The stricter variant: the mount point is omitted entirely.
		g.walk.SkipMounts = true
		g.walk.Mounts = g.ctx.Capabilities.Mounts
		return 1, nil

	case "-sorted", "-s":
		g.walk.Sort = true
		return 1, nil

	case "-0", "--null":
		g.ctx.NulDefault = true
		return 1, nil

	case "-X":
		g.ctx.XargsSafe = true
		return 1, nil

	case "-E":
		g.regexDialect = expr.RegexDialectPOSIXExtended
		return 1, nil

	case "-unique", "-u":
		g.ctx.Dedup = idset.New()
		return 1, nil

	case "-ignore_readdir_race":
		g.ctx.IgnoreRaces = true
		return 1, nil
	case "-noignore_readdir_race":
		g.ctx.IgnoreRaces = false
		return 1, nil

	case "-mindepth":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("-mindepth: %w", err)
		}
		g.ctx.MinDepth = n
		return 2, nil
	case "-maxdepth":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("-maxdepth: %w", err)
		}
		g.ctx.MaxDepth = n
		return 2, nil

	case "-O":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("-O: %w", err)
		}
		g.ctx.OptLevel = n
		return 2, nil

	case "-S":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		s, err := parseStrategy(v)
		if err != nil {
			return 0, err
		}
		g.ctx.Strategy = s
		g.walk.Strategy = s
		return 2, nil

	case "-j":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("-j: %w", err)
		}
		g.walk.Threads = n
		return 2, nil

	case "-fd-max":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("-fd-max: %w", err)
		}
		g.ctx.FDBudget = n
		g.walk.FDBudget = n
		return 2, nil

	case "-D":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		flags, err := debug.ParseFlags(v)
		if err != nil {
			return 0, err
		}
		g.ctx.Debug |= flags
		g.ctx.Tracer = debug.NewTracer(g.ctx.Debug, os.Stderr)
		g.walk.Tracer = g.ctx.Tracer
		return 2, nil

	case "-files0-from":
		v, err := arg()
		if err != nil {
			return 0, err
		}
		roots, err := readFiles0(v)
		if err != nil {
			return 0, err
		}
		g.roots = append(g.roots, roots...)
		return 2, nil

	default:
		return 0, nil
	}
}

func parseStrategy(v string) (types.Strategy, error) {
	switch strings.ToLower(v) {
	case "bfs":
		return types.BFS, nil
	case "dfs":
		return types.DFS, nil
	case "ids":
		return types.IDS, nil
	case "eds":
		return types.EDS, nil
	default:
		return types.BFS, fmt.Errorf("-S: unknown strategy %q (want bfs, dfs, ids, or eds)", v)
	}
}

// readFiles0 reads a NUL-separated sequence of paths from path, "-"
// meaning standard input.
func readFiles0(path string) ([]string, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("-files0-from: %w", err)
		}
		defer f.Close()
	}
	r := bufio.NewReader(f)
	var out []string
	for {
		line, err := r.ReadString(0)
		line = strings.TrimSuffix(line, "\x00")
		if line != "" {
			out = append(out, line)
		}
		if err != nil {
			break
		}
	}
	return out, nil
}
