package chain

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/zilcore/zilcore/blockstore"
)

// BPTree is the per-parse block-pointer dedup set: it bounds work and
// detects cycles while claim/check/free walk a chain whose blocks can
// legitimately repeat across a retried parse.
//
// A cuckoo filter (github.com/seiflotfy/cuckoofilter) fronts the exact
// map as a fast-reject for the overwhelmingly common case ("this
// address was definitely not seen yet"); every filter hit still falls
// through to the exact set before anything is skipped, so a false
// positive never causes a block to be silently treated as already
// claimed — only the exact map is authoritative.
type BPTree struct {
	mu     sync.Mutex
	filter *cuckoo.Filter
	seen   map[blockstore.Addr]struct{}
}

// NewBPTree sizes the cuckoo filter for an expected chain length;
// undersizing only costs extra map probes, never correctness.
func NewBPTree(expected uint) *BPTree {
	return &BPTree{
		filter: cuckoo.NewFilter(expected),
		seen:   make(map[blockstore.Addr]struct{}, expected),
	}
}

func addrKey(a blockstore.Addr) []byte {
	b := make([]byte, 16)
	putU64(b[0:8], a.Vdev)
	putU64(b[8:16], a.Offset)
	return b
}

func putU64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// Add records addr as seen, returning true iff it was already present
// (the caller should then skip re-claiming/re-freeing it).
func (t *BPTree) Add(addr blockstore.Addr) (alreadySeen bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := addrKey(addr)
	if t.filter.Lookup(key) {
		if _, ok := t.seen[addr]; ok {
			return true
		}
	}
	if _, ok := t.seen[addr]; ok {
		return true
	}
	t.seen[addr] = struct{}{}
	t.filter.Insert(key)
	return false
}

func (t *BPTree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
