package chain

import "github.com/zilcore/zilcore/blockstore"

// ClaimOpts carries the pool-import-time conditions claim must branch
// on.
type ClaimOpts struct {
	LogClearMode          bool // pool is in log-clear mode
	CheckpointedUnclaimed bool // uberblock is checkpointed and header unclaimed
}

// Claim is run once per dataset at pool import, reserving every block
// and record the chain references so the allocator never hands that
// space to anything else before replay has had a chance to read it.
//
// Idempotence: if header.ClaimTxg is already non-zero for this chain,
// Claim is a no-op — re-running claim after a crash mid-import must
// not re-reserve or double-count anything.
func Claim(engine blockstore.Engine, layout Layout, blockSize int, header *Header, firstTxg uint64, brt BlockRefTracker, opts ClaimOpts) error {
	if opts.LogClearMode || opts.CheckpointedUnclaimed {
		tree := NewBPTree(64)
		v := ClearVisitors(engine, tree)
		if _, err := Parse(engine, layout, blockSize, *header, ClaimLimits{}, v.Block, v.Record, false); err != nil {
			return err
		}
		*header = NewHeader()
		return nil
	}

	if header.ClaimTxg != 0 {
		return nil // already claimed for this chain — idempotent
	}

	tree := NewBPTree(64)
	v := ClaimVisitors(engine, tree, brt, nil)
	res, err := Parse(engine, layout, blockSize, *header, ClaimLimits{}, v.Block, v.Record, false)
	if err != nil {
		return err
	}

	header.ClaimTxg = firstTxg
	header.FirstTxg = firstTxg
	header.MaxBlkSeq = res.MaxBlockSeq
	header.MaxLrSeq = res.MaxLrSeq
	header.Flags |= FlagReplayNeeded | FlagClaimLrSeqValid
	return nil
}

// Check runs a read-only validation pass over the chain without
// claiming or freeing anything.
func Check(engine blockstore.Engine, layout Layout, blockSize int, header Header) (Result, error) {
	v := CheckVisitors()
	return Parse(engine, layout, blockSize, header, ClaimLimits{}, v.Block, v.Record, false)
}
