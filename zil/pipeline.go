package zil

import (
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos"
	"github.com/zilcore/zilcore/cos/cmnerr"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/itx"
	"github.com/zilcore/zilcore/lwb"
	"github.com/zilcore/zilcore/txg"
)

// commitList is the batch of itxs a single writer pass is responsible
// for packing into lwbs, along with the running size totals the
// sizing predictor needs.
type commitList struct {
	itxs    []*itx.Itx
	curSize int
	curMax  int
}

// getCommitList splices every concurrently-open txg slot's sync list
// onto the commit list, or raises waitTxg instead if the zilog is
// suspending and this writer pass has nothing it may safely touch.
func (z *Zilog) getCommitList() (cl commitList, waitTxg txg.Txg) {
	lastSynced := z.Txgs.LastSynced()
	otxg := lastSynced + 1

	for i := txg.Txg(0); i < txg.ConcurrentStates; i++ {
		t := otxg + i
		if z.Suspended() {
			if t > waitTxg {
				waitTxg = t
			}
			continue
		}
		spliced := z.ring.Splice(t)
		for _, it := range spliced {
			cl.itxs = append(cl.itxs, it)
			if it.IsCommit() {
				continue
			}
			size := int(it.Header.Reclen)
			cl.curSize += size
			if size > cl.curMax {
				cl.curMax = size
			}
		}
	}
	return cl, waitTxg
}

// pruneCommitList trims the commit list: trailing TX_COMMIT itxs with
// nothing packed after them don't need a fresh lwb — they attach
// straight to the currently open tail, or are skipped if none exists
// and no data precedes them either. A trailing commit with real data
// still ahead of it in cl is left for processCommitList itself to
// attach, since that data is about to get a fresh lwb anyway.
func (z *Zilog) pruneCommitList(cl *commitList, tail *lwb.Lwb) {
	anyData := false
	for _, it := range cl.itxs {
		if !it.IsCommit() {
			anyData = true
			break
		}
	}

	i := len(cl.itxs)
	for i > 0 && cl.itxs[i-1].IsCommit() {
		it := cl.itxs[i-1]
		if tail != nil && tail.CanAttachWaiter() {
			if w, ok := it.Waiter.(*lwb.Waiter); ok {
				tail.AttachWaiter(w)
			}
			tail.AttachItx(it)
			i--
			continue
		}
		if anyData {
			break
		}
		if w, ok := it.Waiter.(*lwb.Waiter); ok {
			w.Skip()
		}
		i--
	}
	cl.itxs = cl.itxs[:i]
}

// wasteThreshold is max_log_data/16: once a block's remaining room
// drops below this, it's closed rather than risk packing the next
// record so tightly that leftover space goes to waste.
func wasteThreshold(maxData int) int { return maxData / 16 }

// processCommitList packs cl's itxs into lwbs, closing, allocating,
// and issuing blocks as needed to fit everything in chain order.
func (z *Zilog) processCommitList(cl commitList, tail *lwb.Lwb) (*lwb.Lwb, error) {
	cfg := z.config()
	trailerSize := chain.TrailerSize
	maxBlockSize := cfg.MaxBlockSize
	if maxBlockSize <= 0 {
		maxBlockSize = 128 * cos.KiB
	}
	maxData := maxBlockSize - trailerSize

	var stalled []*lwb.Lwb
	lastSynced := z.Txgs.LastSynced()

	for idx := 0; idx < len(cl.itxs); idx++ {
		it := cl.itxs[idx]

		if !it.IsCommit() && it.Txg <= lastSynced {
			continue // already durable via the main pool's sync
		}

		if it.IsCommit() {
			if tail == nil {
				var err error
				tail, err = z.allocLwb(cl, maxBlockSize, trailerSize)
				if err != nil {
					return z.stallAndReturn(stalled, err)
				}
			}
			if w, ok := it.Waiter.(*lwb.Waiter); ok {
				tail.AttachWaiter(w)
			}
			tail.AttachItx(it)
			continue
		}

		need := int(it.Header.Reclen)
		if tail == nil || tail.Nmax-tail.Nused < need || tail.Nmax-tail.Nused < wasteThreshold(maxData) {
			if tail != nil {
				closed, next, err := z.writeClose(tail, cl, maxBlockSize, trailerSize)
				if err != nil {
					stalled = append(stalled, closed)
					return z.stallAndReturn(stalled, err)
				}
				stalled = append(stalled, closed)
				tail = next
			} else {
				var err error
				tail, err = z.allocLwb(cl, maxBlockSize, trailerSize)
				if err != nil {
					return z.stallAndReturn(stalled, err)
				}
			}
		}

		z.packRecord(tail, it)
	}

	for _, l := range stalled {
		if err := z.writeIssue(l); err != nil {
			nlog.Errorf("zil: issue of closed lwb failed: %v", err)
		}
	}

	return tail, nil
}

func (z *Zilog) allocLwb(cl commitList, maxBlockSize, trailerSize int) (*lwb.Lwb, error) {
	sz := z.predictor.targetSize(cl.curSize, cl.curMax, maxBlockSize, trailerSize)
	t := z.Txgs.Open()
	ptr, err := z.Engine.Alloc(t, sz)
	if err != nil {
		z.allocFailures.Inc()
		if z.reg != nil {
			z.reg.AllocFailures.WithLabelValues(z.dataset).Inc()
		}
		return nil, cmnerr.AllocFailed(err)
	}
	l := lwb.NewOpened(ptr, sz, trailerSize, z.Layout == chain.Slim, false, t)
	z.appendLwb(l)
	return l, nil
}

// writeClose transitions l from opened to closed and allocates its
// successor in the chain.
func (z *Zilog) writeClose(l *lwb.Lwb, cl commitList, maxBlockSize, trailerSize int) (closed, next *lwb.Lwb, err error) {
	l.Transition(lwb.Closed)
	if l.AllocErr != nil {
		return l, nil, l.AllocErr
	}
	next, err = z.allocLwb(cl, maxBlockSize, trailerSize)
	return l, next, err
}

// packRecord copies it into l's buffer: its header followed by its
// Body, verbatim. The itx's write state is not consulted; whatever the
// producer put in Body (inline data, or only a block pointer for
// WR_INDIRECT) is what gets packed, and no data is fetched here.
func (z *Zilog) packRecord(l *lwb.Lwb, it *itx.Itx) {
	need := int(it.Header.Reclen)
	off := l.Nused
	it.Header.Encode(l.Buf[off:])
	copy(l.Buf[off+chain.HeaderSize:off+need], it.Body)
	l.Nused += need
	l.Nfilled += need
	if it.Txg > l.MaxTxg {
		l.MaxTxg = it.Txg
	}
	l.AttachItx(it)
}

func (z *Zilog) stallAndReturn(stalled []*lwb.Lwb, err error) (*lwb.Lwb, error) {
	for _, l := range stalled {
		if ierr := z.writeIssue(l); ierr != nil {
			nlog.Errorf("zil: issue during stall failed: %v", ierr)
		}
	}
	z.writerStall()
	return nil, err
}

// writerStall implements the allocation-failure fallback: block on
// txg_wait_synced so the next writer starts from a clean chain.
func (z *Zilog) writerStall() {
	z.Txgs.WaitSynced(z.Txgs.Open())
}
