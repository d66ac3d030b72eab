// Package walk implements the traversal engine: a
// configurable file-tree walker (bfs/dfs/ids/eds) with a bounded
// file-descriptor budget, optional parallel per-entry stat prefetch, cycle
// detection, and mount-boundary policy, driving a single-consumer
// callback in the strategy-determined order.
package walk

import (
	"io"
	"os"

	"github.com/standardbeagle/bfind/internal/types"
)

// Entry is one directory member as the reader yields it: a name plus
// whatever type hint the filesystem/dirent supplied without a stat
// call. TypeHint is types.Unknown when the platform can't say.
type Entry struct {
	Name     string
	TypeHint types.FileType
}

// Dir is the cross-platform directory handle: it
// opens once, yields entries lazily (or all at once under buffered
// mode), and closes once. "." and ".." are never yielded.
type Dir struct {
	f       *os.File
	path    string
	buffer  bool
	batch   []os.DirEntry
	pos     int
	drained bool
}

// AllocDir returns an unopened handle; allocating handle memory
// separately from opening it lets the traversal engine reuse handle
// storage across directories. The returned Dir is only valid after
// Open.
func AllocDir() *Dir {
	return &Dir{}
}

// Open associates h with the directory at path, replacing any previous
// association. buffer, when true, reads the entire directory into
// memory on the first ReadNext call instead of streaming it in batches,
// trading memory for immunity to readdir invalidation caused by
// deletion-during-walk.
func (h *Dir) Open(path string, buffer bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	h.f = f
	h.path = path
	h.buffer = buffer
	h.batch = nil
	h.pos = 0
	h.drained = false
	return nil
}

// Fd returns the underlying directory file descriptor, for predicates
// and stat sources that want to operate relative to it rather than
// re-walking the path.
func (h *Dir) Fd() uintptr {
	if h.f == nil {
		return ^uintptr(0)
	}
	return h.f.Fd()
}

// Path returns the directory path this handle was opened against.
func (h *Dir) Path() string { return h.path }

// readBatchSize is how many entries a non-buffered Dir reads per
// underlying ReadDir call: large enough to amortize the syscall, small
// enough to stay a real generator rather than silently buffering like
// the `buffer` option does.
const readBatchSize = 128

// ReadNext yields the next entry, io.EOF at end of directory, or an
// error. After an error the handle remains safely closable, but
// ReadNext must not be called again.
func (h *Dir) ReadNext() (Entry, error) {
	for {
		if h.pos >= len(h.batch) {
			if h.drained {
				return Entry{}, io.EOF
			}
			n := readBatchSize
			if h.buffer {
				n = -1
			}
			batch, err := h.f.ReadDir(n)
			if err != nil && err != io.EOF {
				return Entry{}, err
			}
			h.batch = batch
			h.pos = 0
			if len(batch) < n || n < 0 {
				h.drained = true
			}
			if len(batch) == 0 {
				return Entry{}, io.EOF
			}
		}
		e := h.batch[h.pos]
		h.pos++
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}
		return Entry{Name: name, TypeHint: typeHintOf(e)}, nil
	}
}

// Close releases the handle. Safe to call more than once.
func (h *Dir) Close() error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

func typeHintOf(e os.DirEntry) types.FileType {
	switch {
	case e.Type()&os.ModeSymlink != 0:
		return types.Symlink
	case e.Type().IsDir():
		return types.Dir
	case e.Type()&os.ModeDevice != 0 && e.Type()&os.ModeCharDevice != 0:
		return types.CharDev
	case e.Type()&os.ModeDevice != 0:
		return types.BlockDev
	case e.Type()&os.ModeNamedPipe != 0:
		return types.FIFO
	case e.Type()&os.ModeSocket != 0:
		return types.Socket
	case e.Type().IsRegular():
		return types.Regular
	default:
		return types.Unknown
	}
}
