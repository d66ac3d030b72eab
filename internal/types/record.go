package types

// StatInfo is the metadata one stat(2)-family call produces: just the
// fields the predicates and optimizer lattice actually consult. A real
// platform adapter (internal/walk) populates this from os.FileInfo and
// its syscall.Stat_t; keeping it as a flat struct here means internal/predicate
// and internal/eval never import the syscall layer directly.
type StatInfo struct {
	Dev, Ino     uint64
	Nlink        uint64
	Mode         uint32 // permission plus setuid/setgid/sticky bits (07777); the file type is in Type
	UID, GID     uint32
	Size         int64
	ATimeUnix    int64
	MTimeUnix    int64
	CTimeUnix    int64
	Type         FileType
	BlockSize512 int64 // st_blocks, in 512-byte units, for -sparse's allocation math
}

// FileID returns the (dev, ino) identity this stat result names.
func (s StatInfo) FileID() FileID {
	return NewFileID(s.Dev, s.Ino)
}

// statSlot is one lazily populated (result, error) pair for a single
// StatMode. A slot is populated at most once; filled distinguishes "not
// yet queried" from "queried, got benign zero value" which StatInfo
// alone cannot, since Go has no sum type for "value or error or absent".
type statSlot struct {
	info   StatInfo
	err    error
	filled bool
}

// StatCache holds the follow- and no-follow-symlink stat results for one
// file record, populated on first demand and reused for the life of the
// record.
type StatCache struct {
	slots [2]statSlot // indexed by Follow/NoFollow; TryFollow reuses Follow's slot
}

// StatSource performs the actual platform stat call. internal/walk
// implements this against the file's path (walk.NewStatSource); tests
// can supply a fake.
type StatSource interface {
	Stat(mode StatMode) (StatInfo, error)
}

// Get returns the cached stat result for mode, querying src at most once
// per distinct underlying slot. TryFollow first attempts Follow and
// falls back to NoFollow on error, without querying
// Follow twice if a caller already forced it earlier.
func (c *StatCache) Get(mode StatMode, src StatSource) (StatInfo, error) {
	switch mode {
	case NoFollow:
		return c.fill(1, NoFollow, src)
	case TryFollow:
		info, err := c.fill(0, Follow, src)
		if err == nil {
			return info, nil
		}
		return c.fill(1, NoFollow, src)
	default:
		return c.fill(0, Follow, src)
	}
}

// Peek reports whether mode's slot has already been populated, and its
// cached value if so, without ever calling the underlying StatSource.
// Used by diagnostics (-D stat) and tests observing stat_eagerly
// prefetching, where forcing a stat would defeat the point of looking.
func (c *StatCache) Peek(mode StatMode) (StatInfo, bool) {
	idx := 0
	if mode == NoFollow {
		idx = 1
	}
	s := &c.slots[idx]
	return s.info, s.filled
}

func (c *StatCache) fill(slot int, mode StatMode, src StatSource) (StatInfo, error) {
	s := &c.slots[slot]
	if !s.filled {
		s.info, s.err = src.Stat(mode)
		s.filled = true
	}
	return s.info, s.err
}

// FileRecord is the immutable-to-predicates per-visit snapshot the
// traversal engine builds for each file and hands to the evaluator.
// Fields set at construction never change
// during one visit; StatCache is the one field that mutates, lazily, as
// predicates demand metadata.
type FileRecord struct {
	Path       string // root-relative or absolute, as the user will see it
	Root       string // the user-supplied root argument this descended from
	RootIndex  int    // index of Root among the user-supplied roots
	NameOffset int    // byte offset of the final path component within Path
	Depth      int
	Type       FileType
	Phase      VisitPhase

	// Src resolves Follow/NoFollow stat calls against this record's
	// path; nil only for synthetic records built by tests.
	Src StatSource

	Stat StatCache
}

// Name returns the final path component, per the NameOffset invariant.
func (r *FileRecord) Name() string {
	if r.NameOffset < 0 || r.NameOffset > len(r.Path) {
		return r.Path
	}
	return r.Path[r.NameOffset:]
}
