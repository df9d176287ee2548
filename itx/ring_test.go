package itx

import (
	"testing"

	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/txg"
)

func asyncItx(foid uint64) *Itx {
	it := Create(chain.TxWrite, 8)
	it.Sync = false
	it.Foid = foid
	return it
}

func syncItx() *Itx {
	return Create(chain.TxCreate, 8)
}

func TestAssignSeparatesSyncAndAsync(t *testing.T) {
	r := NewRing()
	s := syncItx()
	a := asyncItx(42)

	r.Assign(s, 5)
	r.Assign(a, 5)

	spliced := r.Splice(5)
	if len(spliced) != 1 || spliced[0] != s {
		t.Fatalf("Splice should return only the sync itx, got %v", spliced)
	}

	// async itx must still be reachable by a later rename promotion,
	// i.e. it was never drained by Splice.
	rn := Create(chain.TxRename, 8)
	rn.Foid = 42
	r.Assign(rn, 5)
	spliced2 := r.Splice(5)
	found := false
	for _, it := range spliced2 {
		if it == a {
			found = true
		}
	}
	if !found {
		t.Fatal("TX_RENAME assign should have promoted the pending async itx for its foid to sync")
	}
}

func TestAssignReassignsStaleSlot(t *testing.T) {
	r := NewRing()
	r.Assign(syncItx(), 1)
	if got := r.SlotTxg(1); got != 1 {
		t.Fatalf("slot txg = %d, want 1", got)
	}

	// Assigning a higher txg to the same slot (mod Size) must reset it,
	// draining whatever was still attached rather than mixing epochs.
	r.Assign(syncItx(), 1+txg.Size)
	if got := r.SlotTxg(1); got != 1+txg.Size {
		t.Fatalf("slot txg after reassignment = %d, want %d", got, 1+txg.Size)
	}
}

func TestPurgeRemovedDropsAsync(t *testing.T) {
	r := NewRing()
	a := asyncItx(7)
	r.Assign(a, 2)
	r.PurgeRemoved(2, 7)

	rn := Create(chain.TxRename, 8)
	rn.Foid = 7
	r.Assign(rn, 2)
	spliced := r.Splice(2)
	for _, it := range spliced {
		if it == a {
			t.Fatal("purged async itx must not resurface via a later rename promotion")
		}
	}
}

func TestCleanDrainsWholeSlot(t *testing.T) {
	r := NewRing()
	s := syncItx()
	a := asyncItx(1)
	r.Assign(s, 3)
	r.Assign(a, 3)

	out := r.Clean(3)
	if len(out) != 2 {
		t.Fatalf("Clean should drain both sync and async itxs, got %d", len(out))
	}
	if r.SlotTxg(3) != 0 {
		t.Fatal("Clean must reset the slot to empty (txg=0)")
	}
}

func TestSpliceOnEmptySlotIsNil(t *testing.T) {
	r := NewRing()
	if out := r.Splice(9); out != nil {
		t.Fatalf("Splice on a never-assigned slot should return nil, got %v", out)
	}
}
