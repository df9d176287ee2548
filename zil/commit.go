package zil

import (
	"time"

	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/itx"
	"github.com/zilcore/zilcore/lwb"
	"github.com/zilcore/zilcore/txg"
)

// Commit writes every pending synchronous itx in the not-yet-synced txg
// slots (of every object, not only foid) to durable storage, blocking
// the caller until that's true. Async itxs are not moved to the sync
// list or written by Commit; only a TX_RENAME assign promotes them.
func (z *Zilog) Commit(foid uint64) error {
	if !z.syncEnabled {
		return nil
	}
	if !z.Txgs.Writable() {
		return nil // no open txg to commit against
	}
	if z.Suspended() {
		z.Txgs.WaitSynced(z.Txgs.Open())
		return nil
	}

	start := time.Now()
	err := z.commitWithWaiter(foid, z.Txgs.Open())
	if z.reg != nil {
		z.reg.CommitLatency.WithLabelValues(z.dataset).Observe(time.Since(start).Seconds())
	}
	return err
}

// commitWithWaiter assigns a TX_COMMIT itx carrying a fresh waiter,
// runs the pipeline, then blocks until the waiter completes.
func (z *Zilog) commitWithWaiter(foid uint64, t txg.Txg) error {
	w := lwb.GlobalWaiterPool().Get()
	defer lwb.GlobalWaiterPool().Put(w)

	commitItx := itx.CreateCommit(w)
	commitItx.Foid = foid
	z.ring.Assign(commitItx, t)

	waitTxg, err := z.commitWriter()
	if err != nil {
		return err
	}
	if waitTxg != 0 {
		z.Txgs.WaitSynced(waitTxg)
		return nil
	}

	z.commitWaiter(w)

	if werr := w.Err(); werr != nil {
		z.Txgs.WaitSynced(t)
		return werr
	}
	return nil
}

// commitWriter gathers, prunes, and packs the pending commit list into
// lwbs, all under issuerLock so only one goroutine ever builds blocks
// at a time.
func (z *Zilog) commitWriter() (waitTxg txg.Txg, err error) {
	z.issuerLock.Lock()
	defer z.issuerLock.Unlock()

	cl, wait := z.getCommitList()
	if wait != 0 {
		return wait, nil
	}

	z.lock.Lock()
	tail := z.lastLwbOpened
	z.lock.Unlock()

	z.pruneCommitList(&cl, tail)

	newTail, perr := z.processCommitList(cl, tail)
	if perr != nil {
		return 0, perr
	}

	z.lock.Lock()
	z.lastLwbOpened = newTail
	z.lock.Unlock()
	return 0, nil
}

// commitWaiter waits on w with an adaptive timeout — a percentage of
// the current EWMA lwb latency. If that budget expires and w's lwb is
// still open, this goroutine takes responsibility for closing and
// issuing it itself rather than waiting indefinitely for some other
// caller to fill it; after that it waits untimed.
func (z *Zilog) commitWaiter(w *lwb.Waiter) {
	budget := z.config().CommitTimeout(z.EWMA())
	if budget <= 0 {
		budget = 10 * time.Millisecond
	}

	if w.Wait(budget) {
		return
	}

	if l := w.Lwb; l != nil && l.State() == lwb.Opened {
		z.issuerLock.Lock()
		cfg := z.config()
		closed, next, err := z.writeClose(l, commitList{}, cfg.MaxBlockSize, chain.TrailerSize)
		z.lock.Lock()
		z.lastLwbOpened = next
		z.lock.Unlock()
		z.issuerLock.Unlock()

		if err == nil {
			if ierr := z.writeIssue(closed); ierr != nil {
				nlog.Errorf("zil: commit_waiter issue failed: %v", ierr)
			}
		}
	}

	w.Wait(0)
}
