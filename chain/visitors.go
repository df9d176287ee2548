package chain

import (
	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/cos/nlog"
)

// Visitors bundles the block/record pair a single parse runs with —
// the block and record handlers a claim, check, free, or clear pass
// plugs into Parse.
type Visitors struct {
	Block  VisitBlock
	Record VisitRecord
}

// ClaimVisitors speculatively reserves every unique block (and every
// TX_WRITE's indirect data block) via engine.Claim, and registers
// TX_CLONE_RANGE pending adds with brt (the external block-reference
// tracker; nil is accepted for tests that don't exercise clone).
//
// tree dedupes so a retried claim (e.g. after a partial import) is
// idempotent: a block already in tree is never claimed twice.
func ClaimVisitors(engine blockstore.Engine, tree *BPTree, brt BlockRefTracker, getWriteData DataProvider) Visitors {
	return Visitors{
		Block: func(ptr blockstore.Ptr, _ Trailer) error {
			if tree.Add(ptr.Addr) {
				return nil
			}
			return engine.Claim(ptr)
		},
		Record: func(hdr RecordHeader, body []byte) error {
			switch hdr.Txtype &^ CiBit {
			case TxWrite:
				if ptr, ok := writeIndirectPtr(body); ok {
					if !tree.Add(ptr.Addr) {
						if err := engine.Claim(ptr); err != nil {
							return err
						}
					}
				} else if getWriteData != nil {
					// WR_COPIED/WR_NEED_COPY carry the bytes inline;
					// nothing further to claim for them.
					_ = getWriteData
				}
			case TxCloneRange:
				if brt != nil {
					brt.PendingAdd(hdr, body)
				}
			}
			return nil
		},
	}
}

// CheckVisitors runs a read-only pass: every block/record is visited
// but nothing is claimed or freed, used to validate a chain without
// mutating allocator state.
func CheckVisitors() Visitors {
	return Visitors{Block: NoopBlock, Record: NoopRecord}
}

// FreeVisitors releases every unique block (and write's indirect
// block) back to the allocator — used by destroy.
func FreeVisitors(engine blockstore.Engine, tree *BPTree) Visitors {
	return Visitors{
		Block: func(ptr blockstore.Ptr, _ Trailer) error {
			if tree.Add(ptr.Addr) {
				return nil
			}
			return engine.Free(ptr)
		},
		Record: func(hdr RecordHeader, body []byte) error {
			if hdr.Txtype&^CiBit != TxWrite {
				return nil
			}
			ptr, ok := writeIndirectPtr(body)
			if !ok || tree.Add(ptr.Addr) {
				return nil
			}
			return engine.Free(ptr)
		},
	}
}

// ClearVisitors erases invalidated blocks during a rewind: it frees
// every block but ignores records entirely.
func ClearVisitors(engine blockstore.Engine, tree *BPTree) Visitors {
	return Visitors{
		Block: func(ptr blockstore.Ptr, _ Trailer) error {
			if tree.Add(ptr.Addr) {
				return nil
			}
			if err := engine.Free(ptr); err != nil {
				nlog.Warningln("clear: free block", err)
			}
			return nil
		},
		Record: NoopRecord,
	}
}

// BlockRefTracker is the external block-reference tracker TX_CLONE_RANGE
// registers pending adds with. The dedup accounting itself lives
// outside this package; BlockRefTracker is a narrow interface so claim
// can exercise it without depending on that implementation.
type BlockRefTracker interface {
	PendingAdd(hdr RecordHeader, body []byte)
}

// DataProvider is the producer callback supplying WR_NEED_COPY/
// WR_INDIRECT payload bytes at issue time. See chain/provider.go for
// the record-level helpers.
type DataProvider interface {
	GetData(gen uint64, hdr RecordHeader, dest []byte) (indirect bool, err error)
}
