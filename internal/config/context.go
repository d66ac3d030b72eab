// Package config builds and owns the long-lived Context of one run:
// parsed roots, the main and exclude expression trees,
// traversal limits, capability probes, and the sink/dedup state shared
// across one run.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/bfind/internal/capability"
	"github.com/standardbeagle/bfind/internal/debug"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/idset"
	"github.com/standardbeagle/bfind/internal/types"
)

// Context is the object a parsed command line builds once and every
// other component borrows for the duration of a run.
type Context struct {
	Roots []string

	Arena   *expr.Arena
	Expr    *expr.Node
	Exclude *expr.Node // nil if -not-empty: an always-false exclude short-circuits to "never matches"

	MinDepth int
	MaxDepth int // -1 means unbounded

	Strategy    types.Strategy
	OptLevel    int
	IgnoreRaces bool
	StatEagerly bool // set by the optimizer's heuristic pass

	// XargsSafe is the -X flag: refuse to print a path whose bytes would
	// be mangled by a downstream `xargs` without -0 (quotes, whitespace,
	// backslashes), reporting it as a per-file error instead.
	XargsSafe bool

	Debug  debug.Flag
	Tracer *debug.Tracer

	// NulDefault is set by internal/cli's -0/--null global flag: every
	// bare -print/-fprint atom parsed after it defaults to NUL
	// termination instead of newline, matching xargs -0's expectations
	// without requiring -print0 spelled out at every print site.
	NulDefault bool

	Capabilities capability.Set

	// Dedup is non-nil only when the uniqueness filter is enabled
	//; nil means every visited file is evaluated.
	Dedup *idset.Dedup

	// FDBudget caps how many directory file descriptors the traversal
	// engine may hold open concurrently; internal/walk owns the
	// semaphore itself, this just records the width configured with
	// -fd-max, for diagnostics.
	FDBudget int

	ExitCode  int
	exitIsSet bool
	StartTime time.Time

	sinks     map[string]io.WriteCloser
	uidByName map[string]uint32
	gidByName map[string]uint32
}

// New builds a Context with the given roots and defaults matching
// find(1): MaxDepth unbounded, optimization level 2. BFS strategy is
// NOT the POSIX default — callers set Strategy explicitly from CLI
// flags.
func New(roots []string) *Context {
	return &Context{
		Roots:     roots,
		MaxDepth:  -1,
		OptLevel:  2,
		Tracer:    debug.NewTracer(0, nil),
		StartTime: time.Now(),
		sinks:     map[string]io.WriteCloser{},
		uidByName: map[string]uint32{},
		gidByName: map[string]uint32{},
	}
}

// Sink returns the io.Writer for a -fprint-family destination path,
// opening it (truncating, like find(1)) on first use and reusing the
// same handle for every later reference to the same underlying target
// within this run. Deduplication keys on the resolved absolute path,
// then falls back to os.SameFile against the already-open sinks so a
// second spelling of one target ("out" vs "./out", or a symlink to it)
// never re-truncates what an open handle is mid-writing. The empty
// path means stdout.
func (c *Context) Sink(path string) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	if w, ok := c.sinks[key]; ok {
		return w, nil
	}
	// Alias check before os.Create: creating first would truncate the
	// target while an aliased handle still writes to it.
	if fi, err := os.Stat(key); err == nil {
		for _, w := range c.sinks {
			of, ok := w.(*os.File)
			if !ok {
				continue
			}
			if ofi, err := of.Stat(); err == nil && os.SameFile(fi, ofi) {
				c.sinks[key] = of
				return of, nil
			}
		}
	}
	f, err := os.Create(key)
	if err != nil {
		return nil, fmt.Errorf("config: opening sink %q: %w", path, err)
	}
	c.sinks[key] = f
	return f, nil
}

// CloseSinks closes every file opened through Sink. Callers must invoke
// this exactly once, after the search finishes. Aliased map entries
// share one handle, which is closed once.
func (c *Context) CloseSinks() error {
	var first error
	closed := map[io.WriteCloser]bool{}
	for _, w := range c.sinks {
		if closed[w] {
			continue
		}
		closed[w] = true
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.sinks = map[string]io.WriteCloser{}
	return first
}

// SetExit records an -exit-triggered process exit code. Only the first
// call takes effect, matching "first exit wins" under comma/or chains
// that might evaluate more than one -exit in rare expressions.
func (c *Context) SetExit(code int) {
	if !c.exitIsSet {
		c.ExitCode = code
		c.exitIsSet = true
	}
}

// ExitRequested reports whether an -exit predicate has already fired.
func (c *Context) ExitRequested() bool {
	return c.exitIsSet
}

// ResolveUID looks up a username's uid, memoizing the result for the
// life of the Context.
func (c *Context) ResolveUID(name string) (uint32, error) {
	if uid, ok := c.uidByName[name]; ok {
		return uid, nil
	}
	if c.Capabilities.Identity == nil {
		return 0, fmt.Errorf("config: no identity resolver configured")
	}
	uid, err := c.Capabilities.Identity.UIDForName(name)
	if err != nil {
		return 0, err
	}
	c.uidByName[name] = uid
	return uid, nil
}

// ResolveGID looks up a group name's gid, memoizing the result.
func (c *Context) ResolveGID(name string) (uint32, error) {
	if gid, ok := c.gidByName[name]; ok {
		return gid, nil
	}
	if c.Capabilities.Identity == nil {
		return 0, fmt.Errorf("config: no identity resolver configured")
	}
	gid, err := c.Capabilities.Identity.GIDForName(name)
	if err != nil {
		return 0, err
	}
	c.gidByName[name] = gid
	return gid, nil
}
