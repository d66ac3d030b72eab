// Package debug implements bfind's `-D <flag>` diagnostic tracing: a
// bitmask of named categories gating writes to a shared, mutex-protected
// sink. Nothing here is on by default; a run with no -D flags pays no
// formatting cost because every call short-circuits on the bitmask check
// before touching the writer.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Flag is one named debug category. Flags combine with bitwise OR.
type Flag uint32

const (
	FlagTree     Flag = 1 << iota // expression tree before/after optimization
	FlagOpt                       // individual optimizer rewrites
	FlagRates                     // per-node evaluation/success/elapsed counters
	FlagExec                      // execute-action state transitions
	FlagStat                      // stat cache hits/misses
	FlagSearch                    // traversal engine scheduling decisions
	FlagTreeJSON                  // schema-validated JSON dump of the optimized tree, instead of the text form FlagTree prints
)

var flagNames = map[string]Flag{
	"tree":      FlagTree,
	"opt":       FlagOpt,
	"rates":     FlagRates,
	"exec":      FlagExec,
	"stat":      FlagStat,
	"search":    FlagSearch,
	"tree-json": FlagTreeJSON,
}

// ParseFlags turns a comma-separated list of flag names (as taken from a
// repeated -D argument) into a Flag bitmask. An unrecognized name is
// reported as an error rather than silently ignored, since a typoed -D
// flag should not look like debugging is enabled when it isn't.
func ParseFlags(spec string) (Flag, error) {
	var out Flag
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, ok := flagNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown debug flag %q", name)
		}
		out |= f
	}
	return out, nil
}

// Tracer is a debug sink gated by a flag bitmask. The zero value has no
// flags enabled and no writer, so it discards everything.
type Tracer struct {
	mu     sync.Mutex
	flags  Flag
	output io.Writer
	file   *os.File
}

// NewTracer creates a Tracer that writes to w whenever a category in flags
// is active. Pass a nil writer to mute output while still tracking which
// flags are "on" for callers that branch on Enabled.
func NewTracer(flags Flag, w io.Writer) *Tracer {
	return &Tracer{flags: flags, output: w}
}

// Enabled reports whether the given category is active.
func (t *Tracer) Enabled(f Flag) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flags&f != 0
}

// OpenLogFile redirects the tracer's output to a timestamped file under
// os.TempDir()/bfind-debug-logs, returning the path. Callers should defer
// Close to flush and release the handle.
func (t *Tracer) OpenLogFile() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := filepath.Join(os.TempDir(), "bfind-debug-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("create debug log file: %w", err)
	}
	t.file = f
	t.output = f
	return path, nil
}

// Close releases the log file opened by OpenLogFile, if any.
func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	t.output = nil
	return err
}

// Logf writes a formatted line tagged with category if category is active.
func (t *Tracer) Logf(category Flag, tag, format string, args ...interface{}) {
	if !t.Enabled(category) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.output == nil {
		return
	}
	fmt.Fprintf(t.output, "[%s] "+format+"\n", append([]interface{}{tag}, args...)...)
}

// Rewrite logs an optimizer rewrite as a "before ↔ after" one-liner.
func (t *Tracer) Rewrite(pass, before, after string) {
	t.Logf(FlagOpt, "OPT", "%s: %s ↔ %s", pass, before, after)
}

// Warn logs a user-visible optimizer warning (e.g. "this expression is
// always false") regardless of which -D flags are set, since these are
// correctness signals, not pure tracing; it still respects a nil writer.
func (t *Tracer) Warn(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.output == nil {
		return
	}
	fmt.Fprintf(t.output, "bfind: warning: "+format+"\n", args...)
}
