package zil

import (
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos/cmnerr"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/lwb"
)

// Suspend takes the log offline for a dataset: it drains any lwb
// currently being built, waits for everything inflight to land, then
// destroys the chain so a later Resume starts clean. Suspending an
// already-empty or already-suspending log is just a refcount bump.
func (z *Zilog) Suspend(replayNeeded bool, encrypted, keyBound bool) error {
	if replayNeeded {
		return cmnerr.ErrReplayNeeded
	}

	z.lock.Lock()
	noChain := z.header.Log.IsHole()
	z.lock.Unlock()

	if noChain || z.suspending.Load() {
		z.suspendCnt.Inc()
		return nil
	}

	if encrypted && !keyBound {
		return cmnerr.ErrKeyUnavailable
	}

	z.suspending.Store(true)
	z.suspendCnt.Inc()

	z.drainAllOpenLwbs()
	z.Txgs.WaitSynced(z.Txgs.Open())
	if err := z.Destroy(false); err != nil {
		z.suspending.Store(false)
		return err
	}

	z.suspending.Store(false)
	z.suspendMu.Lock()
	z.suspendCond.Broadcast()
	z.suspendMu.Unlock()
	return nil
}

// Resume decrements the suspend refcount, re-enabling the log once it
// reaches zero.
func (z *Zilog) Resume() {
	z.suspendCnt.Dec()
}

// drainAllOpenLwbs forces the currently open tail lwb through to
// flush-done. Lwbs already closed/ready/issued drain on their own via
// the inflight wait that follows.
func (z *Zilog) drainAllOpenLwbs() {
	z.issuerLock.Lock()
	defer z.issuerLock.Unlock()

	z.lock.Lock()
	tail := z.lastLwbOpened
	z.lock.Unlock()

	if tail == nil || tail.State() != lwb.Opened {
		return
	}

	cfg := z.config()
	closed, _, err := z.writeClose(tail, commitList{}, cfg.MaxBlockSize, chain.TrailerSize)
	if err == nil {
		if ierr := z.writeIssue(closed); ierr != nil {
			nlog.Errorf("zil: suspend drain issue failed: %v", ierr)
		}
	}
	z.lock.Lock()
	z.lastLwbOpened = nil
	z.lock.Unlock()
}
