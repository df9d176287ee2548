package chain

import (
	"github.com/teris-io/shortid"

	"github.com/zilcore/zilcore/blockstore"
)

// Flag bits stamped into Header.Flags by claim.
const (
	FlagReplayNeeded uint32 = 1 << iota
	FlagClaimLrSeqValid
)

// Header is the log header stored in the dataset's own metadata
// (external to this package): the root a reimport starts claim,
// replay, and destroy from.
type Header struct {
	Guid      string         // identifies this incarnation of the chain
	ClaimTxg  uint64         // 0 until claimed for this import
	FirstTxg  uint64         // txg stamped into ClaimTxg on first claim
	Log       blockstore.Ptr // header.log: pointer (with seed) to the first block
	ReplaySeq uint64         // highest record seq already replayed
	Flags     uint32
	MaxBlkSeq uint64
	MaxLrSeq  uint64
}

func (h Header) ReplayNeeded() bool     { return h.Flags&FlagReplayNeeded != 0 }
func (h Header) ClaimLrSeqValid() bool  { return h.Flags&FlagClaimLrSeqValid != 0 }

// NewHeader returns a fresh, empty header carrying a new chain GUID —
// used whenever a chain is destroyed in full or cleared by a log-clear
// claim, so a stale replay can never mistake one incarnation's blocks
// for another's.
func NewHeader() Header {
	return Header{Guid: shortid.MustGenerate()}
}

// ClaimLimits are the bounds a non-genesis parse (claim, replay) must
// respect: a block or record sequence beyond what claim recorded means
// the reader has run off the end of what was reserved at import time.
type ClaimLimits struct {
	MaxBlockSeq uint64
	MaxLrSeq    uint64
	Valid       bool // CLAIM_LR_SEQ_VALID
}
