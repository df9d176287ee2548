package zil

import (
	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos/cmnerr"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/lwb"
	"github.com/zilcore/zilcore/txg"
)

// Sync runs one pass for txg t: drain this txg's inflight lwbs,
// optionally destroy on a matching armed destroy txg, then pop every
// flush-done lwb at the chain head whose alloc/max txgs have synced,
// advancing header.Log past each and freeing its block.
func (z *Zilog) Sync(t txg.Txg) error {
	z.WaitInflightDrained(t)

	z.lock.Lock()
	destroying := z.destroyArmed && z.destroyTxg == t
	z.lock.Unlock()

	if destroying {
		if err := z.destroyLocked(false); err != nil {
			return err
		}
		z.lock.Lock()
		z.destroyArmed = false
		z.lock.Unlock()
		return nil
	}

	z.lock.Lock()
	defer z.lock.Unlock()

	for z.lwbHead != nil {
		l := z.lwbHead
		if l.State() != lwb.FlushDone {
			break
		}
		if l.AllocTxg > t || l.MaxTxg > t {
			break
		}

		// This block's data is now also durable in the main pool (txg
		// t has synced), so it no longer needs to stay part of the
		// replay chain: advance header.Log past it and free it.
		if err := z.Engine.Free(l.BlkPtr); err != nil {
			nlog.Warningf("zil: sync: free retired block: %v", err)
		}

		z.lwbHead = l.Next
		if z.lwbHead != nil {
			z.header.Log = z.lwbHead.BlkPtr
		} else {
			z.lwbTail = nil
			z.header.Log = blockstore.Ptr{}
		}
	}

	return nil
}

// Clean detaches the synced slot's itxs and runs their callbacks with
// synced=true: they reached durability via the main pool's own sync,
// not through the log.
func (z *Zilog) Clean(synced txg.Txg) {
	for _, it := range z.ring.Clean(synced) {
		if it.Callback != nil {
			it.Callback(it, true)
		}
	}
}

// Destroy frees every block reachable from the current header, or —
// if keepFirst is set — every block except the first, which stays
// live as the new chain root.
func (z *Zilog) Destroy(keepFirst bool) error {
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.destroyLocked(keepFirst)
}

func (z *Zilog) destroyLocked(keepFirst bool) error {
	header := z.header
	if keepFirst && !header.Log.IsHole() {
		first := header.Log
		tmp := header
		// Walk past the first block only: Destroy frees everything
		// reachable from header.Log, so to keep the first block we
		// read its trailer to resume the walk at its successor.
		data, _, err := z.Engine.Read(first, first.Seed)
		if err != nil && err != cmnerr.ErrChainEnd {
			return err
		}
		if err == nil {
			tStart, tEnd := chain.TrailerRegion(z.Layout, len(data))
			if tEnd <= len(data) {
				tr := chain.DecodeTrailer(data[tStart:tEnd])
				tmp.Log = tr.Next
			}
		}
		if err := chain.Destroy(z.Engine, z.Layout, blockSizeHint(z), tmp); err != nil {
			return err
		}
		z.header = chain.Header{Log: first}
		return nil
	}

	if err := chain.Destroy(z.Engine, z.Layout, blockSizeHint(z), header); err != nil {
		return err
	}
	z.header = chain.NewHeader()
	return nil
}

func blockSizeHint(z *Zilog) int {
	if cfg := z.config(); cfg.MaxBlockSize > 0 {
		return cfg.MaxBlockSize
	}
	return 128 * 1024
}

