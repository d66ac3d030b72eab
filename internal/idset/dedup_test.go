package idset

import (
	"testing"

	"github.com/standardbeagle/bfind/internal/types"
)

func TestDedupInsertReportsNewOnce(t *testing.T) {
	d := New()
	id := types.NewFileID(1, 42)

	if !d.Insert(id) {
		t.Fatalf("expected first insert to report new")
	}
	if d.Insert(id) {
		t.Errorf("expected second insert of same id to report not-new")
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestDedupDistinguishesIDs(t *testing.T) {
	d := New()
	ids := []types.FileID{
		types.NewFileID(1, 1),
		types.NewFileID(1, 2),
		types.NewFileID(2, 1),
	}
	for _, id := range ids {
		if !d.Insert(id) {
			t.Errorf("expected %v to be new", id)
		}
	}
	if d.Len() != len(ids) {
		t.Errorf("Len() = %d, want %d", d.Len(), len(ids))
	}
}

func TestDedupContains(t *testing.T) {
	d := New()
	id := types.NewFileID(7, 7)
	if d.Contains(id) {
		t.Fatalf("expected Contains false before insert")
	}
	d.Insert(id)
	if !d.Contains(id) {
		t.Errorf("expected Contains true after insert")
	}
}

func TestDedupManyShardsSpread(t *testing.T) {
	d := New()
	for i := uint64(0); i < 2000; i++ {
		if !d.Insert(types.NewFileID(1, i)) {
			t.Fatalf("id %d should be new", i)
		}
	}
	if d.Len() != 2000 {
		t.Errorf("Len() = %d, want 2000", d.Len())
	}
}
