package zil

import (
	"time"

	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos/cksum"
	"github.com/zilcore/zilcore/cos/debug"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/lwb"
)

// writeIssue fills in l's trailer, writes the block, transitions
// closed->ready->issued, and drives the block through to flush-done.
//
// The successor lwb (and its block pointer) already exists by the
// time its predecessor issues, since processCommitList allocates a new
// lwb's block up front rather than deferring that allocation into the
// issue path — block N's trailer names block N+1's address and
// checksum seed regardless of which moment did the allocating.
func (z *Zilog) writeIssue(l *lwb.Lwb) error {
	debug.Assertf(l.State() == lwb.Closed, "zil: writeIssue from state %s", l.State())

	recStart, recEnd := chain.RecordsRegion(z.Layout, l.Sz)
	_ = recEnd

	var next blockstore.Ptr
	if l.Next != nil {
		next = l.Next.BlkPtr
	}

	bytesUsed := uint32(l.Nused)
	if z.Layout == chain.Slim {
		bytesUsed += uint32(chain.TrailerSize)
	}

	trailer := chain.Trailer{BytesUsed: bytesUsed, Next: next}
	tStart, tEnd := chain.TrailerRegion(z.Layout, l.Sz)

	// Checksum covers the records and the trailer as encoded before the
	// successor's seed is filled in; the trailer's own checksum field is
	// left out, which would otherwise be self-referential. The
	// successor's seed is derived from this checksum and stamped into the
	// trailer (and onto the successor lwb) before the block is written.
	sumInput := make([]byte, 0, l.Sz)
	sumInput = append(sumInput, l.Buf[recStart:recStart+l.Nused]...)
	hdrBuf := make([]byte, chain.TrailerSize)
	trailer.Encode(hdrBuf)
	sumInput = append(sumInput, hdrBuf[:len(hdrBuf)-cksum.EncodedSize]...)

	stored := cksum.Of(l.BlkPtr.Seed, sumInput)
	if l.Next != nil {
		l.Next.SetSeed(cksum.Next(stored))
		trailer.Next = l.Next.BlkPtr
	}
	trailer.ThisCksum = stored
	trailer.Encode(l.Buf[tStart:tEnd])

	if _, err := z.Engine.Write(l.BlkPtr, l.BlkPtr.Seed, l.Buf); err != nil {
		return err
	}
	l.AddVdev(l.BlkPtr.Addr.Vdev)

	z.blocksWritten.Inc()
	z.bytesWritten.Add(int64(l.Nused))
	z.recordsWritten.Add(int64(len(l.Itxs)))
	if z.reg != nil {
		z.reg.BlocksWritten.WithLabelValues(z.dataset).Inc()
		z.reg.BytesWritten.WithLabelValues(z.dataset).Add(float64(l.Nused))
		z.reg.RecordsWritten.WithLabelValues(z.dataset).Add(float64(len(l.Itxs)))
	}

	l.Transition(lwb.Ready)

	// l's own block pointer is never a hole by the time it reaches
	// issue (processCommitList always allocates it up front). l's
	// trailer.Next legitimately stays a hole here when no successor
	// lwb exists yet; that's simply the current end of the chain, not
	// a reason to stall this lwb's own completion.
	l.Transition(lwb.Issued)
	z.onWritten(l)
	return nil
}

// onWritten runs the write-completion and deferred-flush logic for a
// block that has just hit storage. Real async I/O callbacks are
// collapsed into a synchronous call here since Engine.Write already
// blocks for durability; ordering is preserved because the pipeline
// issues lwbs strictly in chain order under issuerLock.
func (z *Zilog) onWritten(l *lwb.Lwb) {
	l.Transition(lwb.WriteDone)
	z.updateEWMA(time.Since(l.OpenedAt))

	if len(l.Waiters) == 0 && l.Next != nil {
		l.MergeVdevsInto(l.Next)
		z.inflightDecr(l.AllocTxg)
		return
	}

	z.flushVdevsDone(l)
}

// flushVdevsDone flushes every vdev the lwb touched, then transitions
// write-done->flush-done, releases attached itxs, and signals every
// waiter.
//
// A flush error is logged and counted but deliberately not written
// into the waiter's error: device-level cache flush failures are a
// pool-level concern handled below this layer, not a reason to fail a
// commit that otherwise landed. See TestFlushErrorNotPropagated.
func (z *Zilog) flushVdevsDone(l *lwb.Lwb) {
	if cfg := z.config(); !cfg.NoCacheFlush {
		for _, v := range l.VdevsSnapshot() {
			if err := z.Engine.FlushVdev(v); err != nil {
				nlog.Warningf("zil: vdev %d cache flush failed: %v", v, err)
				z.flushErrors.Inc()
				if z.reg != nil {
					z.reg.FlushErrors.WithLabelValues(z.dataset).Inc()
				}
			}
		}
	}
	l.FlushDone(nil)
	z.inflightDecr(l.AllocTxg)
}
