package chain

import (
	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/cos/cmnerr"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/txg"
)

// ReplayFn is one replay_table entry: apply a single record at txg,
// honoring byteswap if the containing block was byteswapped.
type ReplayFn func(txg uint64, hdr RecordHeader, body []byte, byteswap bool) error

// ReplayTable is the replay dispatch contract: a vector indexed by
// txtype, each entry (record, byteswap) -> error.
type ReplayTable map[Txtype]ReplayFn

// NoByteswapTxCloneRange marks a known registry gap: TX_CLONE_RANGE
// has no byteswap function. Callers that register a TX_CLONE_RANGE
// entry must accept body already in native order regardless of the
// block's byteswap flag.
const NoByteswapTxCloneRange = TxCloneRange

// Replayer walks a claimed chain and dispatches every record to table,
// implementing C9.
type Replayer struct {
	Engine     blockstore.Engine
	Layout     Layout
	BlockSize  int
	Table      ReplayTable
	Txgs       txg.Manager
	Byteswap   bool // whole-chain byteswap flag observed at claim time
}

// Replay runs the C9 entry point: parse the chain, skip out-of-order
// records targeting already-gone objects, retry a failed dispatch once
// with byteswap forced off after waiting for pending removes to settle.
// Replay does not destroy the chain; the caller does that afterwards
// (zil.Zilog.Replay calls Destroy once replay succeeds).
func (r *Replayer) Replay(header Header) error {
	limits := ClaimLimits{
		MaxBlockSeq: header.MaxBlkSeq,
		MaxLrSeq:    header.MaxLrSeq,
		Valid:       header.ClaimLrSeqValid(),
	}

	visit := func(hdr RecordHeader, body []byte) error {
		txtype := hdr.Txtype &^ CiBit
		fn, ok := r.Table[txtype]
		if !ok {
			return cmnerr.ErrUnknownRecord
		}

		err := fn(hdr.Txg, hdr, body, r.Byteswap)
		if err == nil {
			return nil
		}
		if OutOfOrderMask[txtype] && err == cmnerr.ErrTargetGone {
			return nil // target no longer exists, expected and silent
		}

		// txg_wait_synced lets pending removes (from earlier records in
		// this same replay) settle before the retry.
		r.Txgs.WaitSynced(txg.Txg(hdr.Txg))
		if retryErr := fn(hdr.Txg, hdr, body, false); retryErr == nil {
			return nil
		} else if OutOfOrderMask[txtype] && retryErr == cmnerr.ErrTargetGone {
			return nil
		} else {
			nlog.Errorf("replay: record txtype=%d seq=%d: %v", txtype, hdr.Seq, retryErr)
			return retryErr
		}
	}

	_, err := Parse(r.Engine, r.Layout, r.BlockSize, header, limits, NoopBlock, visit, r.Byteswap)
	return err
}

// Destroy frees every block in the chain (keep_first=false: even the
// first block is released) — the tail of C9's replay contract, also
// used directly by dataset destruction outside of replay.
func Destroy(engine blockstore.Engine, layout Layout, blockSize int, header Header) error {
	tree := NewBPTree(64)
	v := FreeVisitors(engine, tree)
	_, err := Parse(engine, layout, blockSize, header, ClaimLimits{}, v.Block, v.Record, false)
	return err
}
