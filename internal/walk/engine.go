package walk

import (
	"context"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/bfind/internal/capability"
	"github.com/standardbeagle/bfind/internal/debug"
	bfinderrors "github.com/standardbeagle/bfind/internal/errors"
	"github.com/standardbeagle/bfind/internal/idset"
	"github.com/standardbeagle/bfind/internal/types"
	"github.com/standardbeagle/bfind/pkg/pathutil"
)

// Config bundles every traversal-policy flag the walker honors.
type Config struct {
	Strategy types.Strategy
	Threads  int // >1 enables parallel per-directory stat prefetch
	FDBudget int // max directory handles held open concurrently; <=0 means effectively unbounded

	StatEagerly  bool
	Recover      bool
	PostOrder    bool
	FollowRoots  bool
	FollowAll    bool
	DetectCycles bool
	SkipMounts   bool
	PruneMounts  bool
	Sort         bool
	Buffer       bool
	Whiteouts    bool

	MaxDepth int // -1 means unbounded; bounds descent, independent of the evaluator's own mindepth/maxdepth gate

	Mounts capability.MountTable // authoritative device lookup for Skip/PruneMounts; nil falls back to the stat-reported device id
	Tracer *debug.Tracer
}

// Callback is what the traversal engine drives: one
// call per delivered file event, returning the evaluator's boolean
// result's control-flow side effect.
type Callback interface {
	Visit(rec *types.FileRecord) (types.Control, error)
}

// Engine is one configured traversal. It is not safe for concurrent
// Walk calls; a Context borrows one Engine for the duration of a run.
type Engine struct {
	cfg     Config
	sem     *semaphore.Weighted
	stopped bool
	recErr  *bfinderrors.MultiError
	fatal   error
}

// New constructs an Engine for one run.
func New(cfg Config) *Engine {
	budget := cfg.FDBudget
	if budget <= 0 {
		budget = 1 << 16
	}
	return &Engine{cfg: cfg, sem: semaphore.NewWeighted(int64(budget))}
}

// dirNode tracks one directory whose children have been (or are being)
// expanded, so post-order visits and pending-child bookkeeping can
// propagate upward without a recursive tree walk.
type dirNode struct {
	rec       *types.FileRecord
	parent    *dirNode
	pending   int
	rootDev   uint64
	haveDev   bool
	ancestors []types.FileID
}

// Errors returns the accumulated per-file errors recorded when Recover
// is set; nil if none were recorded.
func (e *Engine) Errors() *bfinderrors.MultiError {
	return e.recErr
}

func (e *Engine) recordErr(err error) {
	if e.recErr == nil {
		e.recErr = &bfinderrors.MultiError{}
	}
	e.recErr.Append(err)
}

// Walk visits every reachable file beneath roots exactly once (modulo
// the uniqueness filter and prune/stop cut-offs the callback requests),
// in the order the configured Strategy prescribes.
func (e *Engine) Walk(roots []string, cb Callback) error {
	var err error
	switch e.cfg.Strategy {
	case types.DFS:
		err = e.runFrontier(roots, cb, true)
	case types.IDS:
		err = e.runIterativeDeepening(roots, cb, false)
	case types.EDS:
		err = e.runIterativeDeepening(roots, cb, true)
	default:
		err = e.runFrontier(roots, cb, false)
	}
	if err != nil {
		return err
	}
	return e.fatal
}

// runFrontier drives the bfs (FIFO) and dfs (LIFO) strategies from one
// shared queue/stack implementation: the only difference is which end
// of frontier new work is popped from.
func (e *Engine) runFrontier(roots []string, cb Callback, lifo bool) error {
	var frontier []*dirNode

	push := func(n *dirNode) {
		frontier = append(frontier, n)
	}
	pop := func() *dirNode {
		if lifo {
			n := frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
			return n
		}
		n := frontier[0]
		frontier = frontier[1:]
		return n
	}

	for i, root := range roots {
		if e.stopped {
			break
		}
		if err := e.visitRoot(root, i, cb, push); err != nil {
			return err
		}
	}

	for len(frontier) > 0 && !e.stopped {
		node := pop()
		e.expand(node, cb, push)
	}
	return nil
}

// visitRoot resolves and delivers the top-level visit for one root
// argument (depth 0), enqueuing it for expansion if it is a directory
// the walk should descend into.
func (e *Engine) visitRoot(root string, rootIndex int, cb Callback, push func(*dirNode)) error {
	mode := types.NoFollow
	if e.cfg.FollowRoots || e.cfg.FollowAll {
		mode = types.TryFollow
	}
	rec := e.buildRecord(root, root, rootIndex, 0, types.Unknown)
	info, err := rec.Stat.Get(mode, rec.Src)
	isDir := err == nil && info.Type == types.Dir
	if err != nil {
		rec.Type = types.ErrorType
		// A root the user named directly failing to stat is a per-file
		// error in its own right, not just an error-typed record: it must
		// mark the run's exit code failed even if no predicate ever
		// demands the metadata again.
		e.recordErr(bfinderrors.New(bfinderrors.KindPerFile, "stat", err).WithPath(root))
	} else {
		rec.Type = info.Type
	}

	node := &dirNode{rec: rec}
	if isDir && info.Dev != 0 {
		node.rootDev = info.Dev
		node.haveDev = true
	}

	if e.cfg.PostOrder && isDir {
		push(node)
		return nil
	}

	control, verr := cb.Visit(rec)
	if verr != nil {
		e.handleVisitErr(verr)
	}
	switch control {
	case types.Stop:
		e.stopped = true
	case types.Prune:
		// do not descend
	default:
		if isDir {
			push(node)
		}
	}
	return nil
}

// handleVisitErr records an error surfaced by a predicate or a
// directory read. Per-file and per-directory errors
// mark the run failed and do not stop the walk here (expand itself
// stops it after a directory read error unless Recover is set); only a
// resource exhaustion at the engine level is fatal. Race-class errors
// (non-existence at depth > 0) are expected to already have been
// swallowed by internal/eval when ignore_races applies, so by the time
// one reaches here it is always worth recording.
func (e *Engine) handleVisitErr(err error) {
	e.recordErr(err)
	if se, ok := err.(*bfinderrors.SearchError); ok && se.Kind == bfinderrors.KindResourceExhaustion {
		e.fatal = err
		e.stopped = true
	}
}

// expand opens node's directory, delivers a visit for each child, and
// either enqueues subdirectories (via push) or closes node immediately
// if it turned out to have nothing left pending.
func (e *Engine) expand(node *dirNode, cb Callback, push func(*dirNode)) {
	if e.stopped {
		return
	}
	if e.cfg.MaxDepth >= 0 && node.rec.Depth >= e.cfg.MaxDepth {
		// Every child would sit below the depth bound: read nothing, and
		// only complete node (its post-order visit, if configured).
		e.closeNode(node, cb)
		return
	}
	e.cfg.Tracer.Logf(debug.FlagSearch, "WALK", "expand %s depth=%d", node.rec.Path, node.rec.Depth)
	if err := e.sem.Acquire(context.Background(), 1); err != nil {
		e.handleVisitErr(bfinderrors.New(bfinderrors.KindResourceExhaustion, "fd-budget", err))
		return
	}

	d := AllocDir()
	openErr := d.Open(node.rec.Path, e.cfg.Buffer)
	if openErr != nil {
		e.sem.Release(1)
		errRec := e.buildRecord(node.rec.Path, node.rec.Root, node.rec.RootIndex, node.rec.Depth, types.ErrorType)
		errRec.Type = types.ErrorType
		control, verr := cb.Visit(errRec)
		e.handleVisitErr(wrapOpenErr(node.rec.Path, openErr))
		if verr != nil {
			e.handleVisitErr(verr)
		}
		if control == types.Stop || !e.cfg.Recover {
			e.stopped = true
		}
		e.closeNode(node, cb)
		return
	}
	defer func() {
		d.Close()
		e.sem.Release(1)
	}()

	entries, err := e.readAll(d)
	if err != nil {
		e.handleVisitErr(wrapOpenErr(node.rec.Path, err))
		if !e.cfg.Recover {
			e.stopped = true
		}
	}

	if e.cfg.Sort {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	}

	prefetch := e.prefetchStats(node, entries)

	childDepth := node.rec.Depth + 1
	var toDescend []*dirNode
	for _, ent := range entries {
		if e.stopped {
			break
		}
		childPath := pathutil.Join(node.rec.Path, ent.Name)
		resolved, isDir, skipEntirely := e.resolveEntry(node, childPath, ent, prefetch)
		if skipEntirely {
			continue
		}
		rec := e.buildRecord(childPath, node.rec.Root, node.rec.RootIndex, childDepth, resolved.typ)
		if e.cfg.StatEagerly {
			// Best-effort: populate the no-follow stat slot now so later
			// predicates hit the cache instead of paying for the call
			// lazily; errors are cached
			// the same way a lazy call would cache them, so nothing here
			// needs to branch on failure.
			_, _ = rec.Stat.Get(types.NoFollow, rec.Src)
		}

		beyondDepth := e.cfg.MaxDepth >= 0 && childDepth > e.cfg.MaxDepth
		descend := isDir && !beyondDepth && !resolved.cycle && !resolved.pruneMount

		if e.cfg.PostOrder && descend {
			child := &dirNode{rec: rec, parent: node, rootDev: node.rootDev, haveDev: node.haveDev, ancestors: resolved.ancestors}
			node.pending++
			toDescend = append(toDescend, child)
			continue
		}

		control, verr := cb.Visit(rec)
		if verr != nil {
			e.handleVisitErr(verr)
		}
		switch control {
		case types.Stop:
			e.stopped = true
		case types.Prune:
			descend = false
		}
		if descend {
			child := &dirNode{rec: rec, parent: node, rootDev: node.rootDev, haveDev: node.haveDev, ancestors: resolved.ancestors}
			node.pending++
			toDescend = append(toDescend, child)
		}
	}

	for _, c := range toDescend {
		push(c)
	}
	if node.pending == 0 {
		e.closeNode(node, cb)
	}
}

// readAll drains every entry from d, returning whatever was read so far
// alongside a read error partway through a directory; the caller
// decides (via handleVisitErr/Recover) whether a partial listing is
// acceptable.
func (e *Engine) readAll(d *Dir) ([]Entry, error) {
	var out []Entry
	for {
		ent, err := d.ReadNext()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ent)
	}
}

type entryResolution struct {
	typ        types.FileType
	cycle      bool
	pruneMount bool
	ancestors  []types.FileID
}

// prefetchEntry is one entry's speculative stat result, computed ahead
// of the sequential classification loop when the configured thread
// count allows it.
type prefetchEntry struct {
	info types.StatInfo
	err  error
}

// prefetchStats issues, concurrently across up to cfg.Threads workers,
// the same stat calls resolveEntry would otherwise make one at a time
// for every entry whose type needs resolving (unknown dirent hint, or a
// symlink under -follow). Results are delivered back to resolveEntry
// through the returned map so the actual classification/cycle/mount
// decisions — which must stay single-threaded to keep callback order
// deterministic — are unchanged. With Threads <= 1 this is a no-op:
// resolveEntry falls back to statting inline as before.
func (e *Engine) prefetchStats(node *dirNode, entries []Entry) map[string]prefetchEntry {
	if e.cfg.Threads <= 1 {
		return nil
	}
	type job struct {
		path string
		mode types.StatMode
	}
	needsIdentity := e.cfg.DetectCycles || e.cfg.SkipMounts || e.cfg.PruneMounts
	var jobs []job
	for _, ent := range entries {
		if ent.TypeHint == types.Unknown || (ent.TypeHint == types.Symlink && e.cfg.FollowAll) || (ent.TypeHint == types.Dir && needsIdentity) {
			mode := types.NoFollow
			if ent.TypeHint == types.Symlink && e.cfg.FollowAll {
				mode = types.Follow
			}
			jobs = append(jobs, job{path: pathutil.Join(node.rec.Path, ent.Name), mode: mode})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	results := make(map[string]prefetchEntry, len(jobs))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Threads)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			info, err := NewStatSource(j.path).Stat(j.mode)
			mu.Lock()
			results[j.path] = prefetchEntry{info: info, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// resolveEntry classifies one directory entry's real type, applying
// symlink-follow policy, cycle detection, and mount-boundary policy.
// skipEntirely reports the skip_mounts case, which omits the entry from
// output altogether rather than merely refusing to descend. prefetch is
// the (possibly nil) result of prefetchStats's parallel pass; when it
// already holds this entry's stat, resolveEntry uses it instead of
// calling Stat again.
func (e *Engine) resolveEntry(node *dirNode, childPath string, ent Entry, prefetch map[string]prefetchEntry) (res entryResolution, isDir bool, skipEntirely bool) {
	res.typ = ent.TypeHint

	if ent.TypeHint == types.Symlink && e.cfg.Whiteouts {
		// whiteout entries surface as a distinct dirent type on some
		// platforms but are reported through the same hint channel as
		// symlinks by Go's os package; nothing further to resolve here.
	}

	needsIdentity := ent.TypeHint == types.Dir && (e.cfg.DetectCycles || e.cfg.SkipMounts || e.cfg.PruneMounts)
	needsStat := ent.TypeHint == types.Unknown || (ent.TypeHint == types.Symlink && e.cfg.FollowAll) || needsIdentity
	var info types.StatInfo
	var statErr error
	if needsStat {
		if pre, ok := prefetch[childPath]; ok {
			info, statErr = pre.info, pre.err
		} else {
			mode := types.NoFollow
			if ent.TypeHint == types.Symlink && e.cfg.FollowAll {
				mode = types.Follow
			}
			info, statErr = NewStatSource(childPath).Stat(mode)
		}
		if statErr == nil {
			res.typ = info.Type
		} else if ent.TypeHint == types.Symlink {
			res.typ = types.Symlink // dangling link under -follow: report as symlink, not error
		} else {
			res.typ = types.ErrorType
		}
	}

	isDir = res.typ == types.Dir
	if !isDir {
		return res, false, false
	}

	if statErr == nil && (info.Dev != 0 || info.Ino != 0) {
		if e.cfg.DetectCycles {
			id := info.FileID()
			for _, a := range append(node.ancestors, nodeFileID(node)...) {
				if a == id {
					res.cycle = true
					e.cfg.Tracer.Logf(debug.FlagSearch, "WALK", "cycle detected, pruning %s", childPath)
					return res, true, false
				}
			}
			res.ancestors = append(append([]types.FileID(nil), node.ancestors...), nodeFileID(node)...)
		}
		childDev := info.Dev
		if e.cfg.Mounts != nil {
			if dev, err := e.cfg.Mounts.DeviceOf(childPath); err == nil {
				childDev = dev
			}
		}
		if (e.cfg.SkipMounts || e.cfg.PruneMounts) && node.haveDev && childDev != node.rootDev {
			if e.cfg.SkipMounts {
				e.cfg.Tracer.Logf(debug.FlagSearch, "WALK", "mount boundary, omitting %s", childPath)
				return res, false, true
			}
			e.cfg.Tracer.Logf(debug.FlagSearch, "WALK", "mount boundary, not descending into %s", childPath)
			res.pruneMount = true
		}
	}
	return res, true, false
}

func nodeFileID(node *dirNode) []types.FileID {
	if node == nil || !node.haveDev {
		return nil
	}
	info, err := NewStatSource(node.rec.Path).Stat(types.NoFollow)
	if err != nil {
		return nil
	}
	return []types.FileID{info.FileID()}
}

// closeNode delivers node's deferred post-order visit (if configured)
// and propagates completion up the parent chain, so a directory's post
// visit occurs strictly after every event for its descendants.
func (e *Engine) closeNode(node *dirNode, cb Callback) {
	if e.cfg.PostOrder {
		node.rec.Phase = types.PhasePost
		control, verr := cb.Visit(node.rec)
		if verr != nil {
			e.handleVisitErr(verr)
		}
		if control == types.Stop {
			e.stopped = true
		}
	}
	if node.parent != nil {
		node.parent.pending--
		if node.parent.pending == 0 {
			e.closeNode(node.parent, cb)
		}
	}
}

func (e *Engine) buildRecord(path, root string, rootIndex, depth int, typ types.FileType) *types.FileRecord {
	return &types.FileRecord{
		Path:       path,
		Root:       root,
		RootIndex:  rootIndex,
		NameOffset: pathutil.NameOffset(path),
		Depth:      depth,
		Type:       typ,
		Phase:      types.PhasePre,
		Src:        NewStatSource(path),
	}
}

func wrapOpenErr(path string, err error) error {
	return bfinderrors.New(bfinderrors.KindPerFile, "readdir", err).WithPath(path).WithRecoverable(true)
}

// maxDepthTracker wraps a Callback to record the deepest file delivered
// this round, for the iterative/exponential-deepening strategies' "no
// new work produced" termination test.
type maxDepthTracker struct {
	Callback
	maxSeen int
}

func (t *maxDepthTracker) Visit(rec *types.FileRecord) (types.Control, error) {
	if rec.Depth > t.maxSeen {
		t.maxSeen = rec.Depth
	}
	return t.Callback.Visit(rec)
}

// dedupCallback filters out files already delivered by an earlier,
// shallower round of runIterativeDeepening before they reach the real
// callback. Every ids/eds round re-walks from the roots, so without this
// every file below the previous round's bound would be redelivered once
// per remaining round, violating the "files delivered equals files
// reachable" invariant. This is a separate set from the
// user-facing -unique filter in internal/idset, scoped to one
// runIterativeDeepening call and never exposed to the evaluator.
type dedupCallback struct {
	Callback
	seen *idset.Dedup
}

func (d *dedupCallback) Visit(rec *types.FileRecord) (types.Control, error) {
	if info, err := rec.Stat.Get(types.NoFollow, rec.Src); err == nil {
		if !d.seen.Insert(info.FileID()) {
			return types.ContinueWalk, nil
		}
	}
	return d.Callback.Visit(rec)
}

// runIterativeDeepening implements the ids/eds strategies: repeated
// bounded-depth walks with an increasing (ids) or doubling (eds) depth
// bound, stopping once a round fails to reach any deeper file than the
// previous round did.
func (e *Engine) runIterativeDeepening(roots []string, cb Callback, exponential bool) error {
	bound := 0
	prevMax := -1
	seen := idset.New()
	for {
		tracker := &maxDepthTracker{Callback: &dedupCallback{Callback: cb, seen: seen}, maxSeen: -1}
		roundCfg := e.cfg
		roundCfg.MaxDepth = bound
		if e.cfg.MaxDepth >= 0 && bound > e.cfg.MaxDepth {
			// The widening bound never exceeds a user-configured depth cap.
			roundCfg.MaxDepth = e.cfg.MaxDepth
		}
		round := New(roundCfg)
		if err := round.runFrontier(roots, tracker, false); err != nil {
			return err
		}
		if round.recErr != nil {
			if e.recErr == nil {
				e.recErr = &bfinderrors.MultiError{}
			}
			e.recErr.Errors = append(e.recErr.Errors, round.recErr.Errors...)
		}
		if round.stopped {
			e.stopped = true
			return nil
		}
		if tracker.maxSeen <= prevMax {
			return nil
		}
		prevMax = tracker.maxSeen
		if exponential {
			if bound == 0 {
				bound = 1
			} else {
				bound *= 2
			}
		} else {
			bound++
		}
	}
}
