// Package idset implements the uniqueness filter the evaluator
// consults before running the main expression: a set of file ids, keyed by
// (device, inode), that reports whether an id has been seen before.
package idset

import (
	"github.com/cespare/xxhash/v2"
	"github.com/standardbeagle/bfind/internal/container"
	"github.com/standardbeagle/bfind/internal/types"
)

const shardCount = 256

// Dedup is the file-id uniqueness structure: 256 shards selected by
// the low byte of an xxhash of the id, each
// shard a small container.Trie keyed by the full 16-byte id. A single
// 16-byte patricia trie would work too, but real runs can touch millions
// of files; sharding keeps any one trie shallow. Dedup is only ever
// touched from the evaluator's single consumer goroutine, so
// it holds no internal lock.
type Dedup struct {
	shards [shardCount]*container.Trie
}

// New creates an empty dedup set.
func New() *Dedup {
	d := &Dedup{}
	for i := range d.shards {
		d.shards[i] = container.NewTrie()
	}
	return d
}

// Insert reports whether id is new (true) or has been seen already
// (false). It never returns an error: insertion into an in-memory trie
// cannot fail short of the runtime's own out-of-memory abort, so there
// is nothing to surface as a resource-exhaustion error.
func (d *Dedup) Insert(id types.FileID) (isNew bool) {
	shard, key := d.locate(id)
	_, existed := shard.InsertBytes(key)
	return !existed
}

// Contains reports whether id has already been recorded, without
// inserting it.
func (d *Dedup) Contains(id types.FileID) bool {
	shard, key := d.locate(id)
	_, ok := shard.FindBytes(key)
	return ok
}

// Len returns the total number of distinct ids recorded.
func (d *Dedup) Len() int {
	n := 0
	for _, s := range d.shards {
		n += s.Len()
	}
	return n
}

func (d *Dedup) locate(id types.FileID) (*container.Trie, []byte) {
	h := xxhash.Sum64(id[:])
	shard := d.shards[byte(h)]
	return shard, id[:]
}
