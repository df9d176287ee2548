package lwb

import (
	"fmt"
	"sync"
	"time"

	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/cos/cksum"
	"github.com/zilcore/zilcore/cos/debug"
	"github.com/zilcore/zilcore/itx"
	"github.com/zilcore/zilcore/txg"
)

// Lwb is a log write block: a staging buffer plus the state machine
// that tracks it from allocation through durable completion.
type Lwb struct {
	mu sync.Mutex

	BlkPtr blockstore.Ptr // lwb_blk: where this block will be/was written

	Sz      int  // allocated capacity
	Nmax    int  // usable capacity for records
	Nused   int  // reserved
	Nfilled int  // copied
	Slim    bool // new on-disk layout vs legacy
	Slog    bool // chose a dedicated log device

	AllocErr error

	Buf []byte // nil once freed (state >= WriteDone)

	Itxs    []*itx.Itx
	Waiters []*Waiter

	VdevSet map[uint64]struct{}

	AllocTxg txg.Txg
	MaxTxg   txg.Txg
	IssuedTxg txg.Txg

	OpenedAt time.Time

	state State

	// Next links this lwb into its zilog's ordered list; zil owns the
	// list head/tail but the link lives here so the deferred vdev-flush
	// merge can walk to the successor without a separate index.
	Next *Lwb
}

// NewOpened allocates an lwb already transitioned new->opened under
// the given block pointer and target size.
func NewOpened(ptr blockstore.Ptr, sz, trailerSize int, slim, slog bool, at txg.Txg) *Lwb {
	l := &Lwb{
		BlkPtr:   ptr,
		Sz:       sz,
		Nmax:     sz - trailerSize,
		Slim:     slim,
		Slog:     slog,
		Buf:      globalBufPool.Get(sz),
		VdevSet:  make(map[uint64]struct{}),
		AllocTxg: at,
		OpenedAt: time.Now(),
		state:    Opened,
	}
	return l
}

func (l *Lwb) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Transition enforces the lwb state machine: any attempt to skip a
// state is a programming-error assertion, not a recoverable condition.
func (l *Lwb) Transition(next State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	debug.Assertf(l.state.CanTransitionTo(next), "lwb: invalid transition %s -> %s", l.state, next)
	l.state = next
	if next == WriteDone {
		// invariant: buffer freed once in WRITE_DONE or later
		globalBufPool.Put(l.Buf)
		l.Buf = nil
	}
}

// Invariant checks nfilled <= nused <= nmax <= sz, exposed for tests
// to assert on directly.
func (l *Lwb) Invariant() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !(l.Nfilled <= l.Nused && l.Nused <= l.Nmax && l.Nmax <= l.Sz) {
		return fmt.Errorf("lwb: invariant violated: nfilled=%d nused=%d nmax=%d sz=%d",
			l.Nfilled, l.Nused, l.Nmax, l.Sz)
	}
	return nil
}

// CanAttachWaiter reports whether a waiter may still be linked to this
// lwb: only while it's somewhere between opened and issued.
func (l *Lwb) CanAttachWaiter() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state >= Opened && l.state <= Issued
}

// SetSeed overwrites the chain checksum seed embedded in this lwb's
// block pointer — used once its predecessor computes the seed that
// chains into it.
func (l *Lwb) SetSeed(seed cksum.Sum) {
	l.mu.Lock()
	l.BlkPtr.Seed = seed
	l.mu.Unlock()
}

func (l *Lwb) AddVdev(vdev uint64) {
	l.mu.Lock()
	l.VdevSet[vdev] = struct{}{}
	l.mu.Unlock()
}

// MergeVdevsInto merges l's vdev set into next's — the deferred
// cache-flush path taken when l has no waiters of its own to satisfy
// immediately — and clears l's own set.
func (l *Lwb) MergeVdevsInto(next *Lwb) {
	l.mu.Lock()
	vdevs := l.VdevSet
	l.VdevSet = make(map[uint64]struct{})
	l.mu.Unlock()

	next.mu.Lock()
	for v := range vdevs {
		next.VdevSet[v] = struct{}{}
	}
	next.mu.Unlock()
}

func (l *Lwb) VdevsSnapshot() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint64, 0, len(l.VdevSet))
	for v := range l.VdevSet {
		out = append(out, v)
	}
	return out
}

func (l *Lwb) AttachWaiter(w *Waiter) {
	l.mu.Lock()
	l.Waiters = append(l.Waiters, w)
	w.Lwb = l
	l.mu.Unlock()
}

func (l *Lwb) AttachItx(it *itx.Itx) {
	l.mu.Lock()
	l.Itxs = append(l.Itxs, it)
	l.mu.Unlock()
}

// FlushDone transitions write-done->flush-done, invokes every attached
// itx's callback, and signals every attached waiter with err.
func (l *Lwb) FlushDone(err error) (itxs []*itx.Itx, waiters []*Waiter) {
	l.mu.Lock()
	debug.Assertf(l.state == WriteDone, "lwb: FlushDone from state %s", l.state)
	l.state = FlushDone
	itxs = l.Itxs
	waiters = l.Waiters
	l.Itxs = nil
	l.Waiters = nil
	l.mu.Unlock()

	for _, it := range itxs {
		if it.Callback != nil {
			it.Callback(it, err == nil)
		}
	}
	for _, w := range waiters {
		w.Done(err)
	}
	return itxs, waiters
}
