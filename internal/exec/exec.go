// Package exec implements the -exec/-execdir/-ok/-okdir action as an
// explicit state machine: idle -> open_wd ->
// accumulate -> flush -> idle, covering the single, -execdir (chdir),
// and `+`-terminated batch ("multi") variants.
package exec

import (
	"bufio"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
)

// State is one node of the execute-action state machine.
type State uint8

const (
	Idle State = iota
	OpenWD
	Accumulate
	Flush
)

func (s State) String() string {
	switch s {
	case OpenWD:
		return "open_wd"
	case Accumulate:
		return "accumulate"
	case Flush:
		return "flush"
	default:
		return "idle"
	}
}

// Spawner runs one child process. internal/cli wires the concrete
// os/exec-backed adapter (OSSpawner); tests supply a fake that never forks.
type Spawner interface {
	Run(argv []string, dir string) (exitCode int, err error)
}

// OSSpawner runs argv via os/exec, in dir if dir is non-empty.
type OSSpawner struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Run spawns argv[0] with argv[1:], in dir if non-empty, and waits for
// it to finish, matching os/exec's normal exit-code extraction.
func (s OSSpawner) Run(argv []string, dir string) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("exec: empty argv")
	}
	cmd := osexec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*osexec.ExitError); ok {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

// Result is the deferred outcome of one flush, mirroring the
// success/exit-code/error shape find(1)-family tools report per spawn.
type Result struct {
	Success  bool
	ExitCode int
	Err      error
}

// ArgMaxBudget is the argv+environ size ceiling (bytes) NewMachine gives
// every Machine; the platform's real ARG_MAX is not queried. It matches
// the POSIX floor (_POSIX_ARG_MAX) rather than Linux's typically much larger
// limit, so batching stays conservative on any platform.
const ArgMaxBudget = 4096

// Machine is the runtime state for one Execute node: template argv (with
// "{}" placeholders), whether this is `+`-batched, and the accumulated
// argv for the current or next flush.
type Machine struct {
	Template []string
	ArgIndex int // index of the first "{}" in Template, or -1 if none
	Batch    bool
	Confirm  bool
	Chdir    bool
	Budget   int

	state       State
	accumulated []string // batch mode: the substituted per-file arguments only
	dirHandle   *os.File
	wdPath      string // the directory dirHandle was opened against
	Spawner     Spawner
}

// NewMachine constructs a Machine in the Idle state.
func NewMachine(template []string, argIndex int, batch, confirm, chdir bool, spawner Spawner) *Machine {
	budget := ArgMaxBudget
	return &Machine{
		Template: template,
		ArgIndex: argIndex,
		Batch:    batch,
		Confirm:  confirm,
		Chdir:    chdir,
		Budget:   budget,
		state:    Idle,
		Spawner:  spawner,
	}
}

// State returns the machine's current state, for debug tracing.
func (m *Machine) State() State { return m.state }

// substitute replaces every "{}" argument with path.
func (m *Machine) substitute(path string) []string {
	if m.ArgIndex < 0 {
		out := make([]string, len(m.Template)+1)
		copy(out, m.Template)
		out[len(m.Template)] = path
		return out
	}
	out := make([]string, len(m.Template))
	copy(out, m.Template)
	for i, a := range out {
		if a == "{}" {
			out[i] = path
		}
	}
	return out
}

// sizeOf estimates the argv-budget cost of adding path's substitution.
func sizeOf(argv []string) int {
	n := 0
	for _, a := range argv {
		n += len(a) + 1
	}
	return n
}

// templateParts splits the batch template around its placeholder: the
// argv prefix spawned before the accumulated paths, and the suffix
// appended after them when a batch flushes.
func (m *Machine) templateParts() (prefix, suffix []string) {
	if m.ArgIndex < 0 || m.ArgIndex >= len(m.Template) {
		return m.Template, nil
	}
	return m.Template[:m.ArgIndex], m.Template[m.ArgIndex+1:]
}

// openWD (re)binds the working-directory handle to workDir, flushing any
// accumulated batch first: argv already queued was formatted relative to
// the previous directory and must not spawn against the new one.
func (m *Machine) openWD(workDir string, openDir func() (*os.File, error), confirm func(argv []string) (bool, error)) (*Result, error) {
	if m.dirHandle != nil && m.wdPath == workDir {
		return nil, nil
	}
	var flushed *Result
	if len(m.accumulated) > 0 {
		var err error
		flushed, err = m.flushBatch(m.wdPath, confirm)
		if err != nil {
			return nil, err
		}
	}
	m.state = OpenWD
	if m.dirHandle != nil {
		m.dirHandle.Close()
		m.dirHandle = nil
	}
	if openDir != nil {
		f, err := openDir()
		if err != nil {
			m.state = Idle
			return flushed, fmt.Errorf("exec: opening working directory: %w", err)
		}
		m.dirHandle = f
	}
	m.wdPath = workDir
	return flushed, nil
}

// Feed delivers one matched path to the machine. For non-batch mode
// this always flushes immediately and returns a Result. For batch mode
// it accumulates and returns (nil, nil) until the argv budget is full
// (or the working directory changes under -execdir), at which point it
// flushes and returns the Result; the caller must call Finish at
// end-of-run to flush any remainder.
func (m *Machine) Feed(path, workDir string, openDir func() (*os.File, error), confirm func(argv []string) (bool, error)) (*Result, error) {
	if m.Chdir {
		flushed, err := m.openWD(workDir, openDir, confirm)
		if err != nil {
			return flushed, err
		}
		if flushed != nil {
			m.accumulated = append(m.accumulated, path)
			m.state = Accumulate
			return flushed, nil
		}
	}

	if !m.Batch {
		return m.runOne(m.substitute(path), workDir, confirm)
	}

	m.state = Accumulate
	prefix, suffix := m.templateParts()
	base := sizeOf(prefix) + sizeOf(suffix)
	if len(m.accumulated) > 0 && base+sizeOf(m.accumulated)+len(path)+1 > m.Budget {
		res, err := m.flushBatch(workDir, confirm)
		if err != nil {
			return nil, err
		}
		m.accumulated = append(m.accumulated, path)
		m.state = Accumulate
		return res, nil
	}
	m.accumulated = append(m.accumulated, path)
	return nil, nil
}

// Finish flushes any accumulated batch argv. A no-op for non-batch
// machines or an empty accumulation.
func (m *Machine) Finish(workDir string, confirm func(argv []string) (bool, error)) (*Result, error) {
	if !m.Batch || len(m.accumulated) == 0 {
		m.state = Idle
		return nil, nil
	}
	if m.Chdir && m.wdPath != "" {
		workDir = m.wdPath
	}
	res, err := m.flushBatch(workDir, confirm)
	m.state = Idle
	return res, err
}

func (m *Machine) flushBatch(workDir string, confirm func(argv []string) (bool, error)) (*Result, error) {
	m.state = Flush
	prefix, suffix := m.templateParts()
	argv := append([]string(nil), prefix...)
	argv = append(argv, m.accumulated...)
	argv = append(argv, suffix...)
	m.accumulated = nil
	return m.runOne(argv, workDir, confirm)
}

func (m *Machine) runOne(argv []string, workDir string, confirm func(argv []string) (bool, error)) (*Result, error) {
	m.state = Flush
	if m.Confirm {
		ok, err := confirm(argv)
		if err != nil {
			m.state = Idle
			return nil, err
		}
		if !ok {
			m.state = Idle
			return &Result{Success: false, ExitCode: -1}, nil
		}
	}
	dir := ""
	if m.Chdir && m.dirHandle != nil {
		dir = m.dirHandle.Name()
	} else if workDir != "" {
		dir = workDir
	}
	code, err := m.Spawner.Run(argv, dir)
	m.state = Idle
	if err != nil {
		return &Result{Success: false, ExitCode: code, Err: err}, nil
	}
	return &Result{Success: code == 0, ExitCode: code}, nil
}

// Close releases the machine's working-directory handle, if one was
// opened for -execdir/-okdir.
func (m *Machine) Close() error {
	if m.dirHandle != nil {
		err := m.dirHandle.Close()
		m.dirHandle = nil
		return err
	}
	return nil
}

// ConfirmPrompt renders -ok/-okdir's "< argv ... >? " prompt and reads an
// answer from r, matching find(1)'s own confirmation wording. The
// answer is affirmative if it begins with 'y' or 'Y'
// (so "yes", "Yeah", and "y" all proceed); anything else declines.
func ConfirmPrompt(r *bufio.Reader, w *os.File, argv []string) (bool, error) {
	fmt.Fprintf(w, "< %s >? ", strings.Join(argv, " "))
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return strings.HasPrefix(line, "y"), nil
}
