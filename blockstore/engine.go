// Package blockstore defines the external block-I/O and allocator
// contract: allocation, the general block I/O engine that issues
// writes, flushes, and checksums blocks, sits behind a deliberately
// narrow boundary so the log core never needs to know what's on the
// other side of it. The ZIL core only ever talks to the narrow Engine
// interface below; this package additionally ships two concrete
// implementations (an in-memory one for unit tests and a file-backed
// one for cmd/zilcat) so the core is exercisable without a real
// storage pool underneath it.
package blockstore

import (
	"github.com/zilcore/zilcore/cos/cksum"
	"github.com/zilcore/zilcore/txg"
)

// Addr is the {vdev_id, offset} pair a block pointer tree dedupes on.
type Addr struct {
	Vdev   uint64
	Offset uint64
}

// Ptr is an on-disk block pointer: the address and length of a block,
// plus the checksum seed a reader must use to validate that block's
// contents against the chain's checksum-seeding scheme.
type Ptr struct {
	Addr Addr
	Len  uint32
	Seed cksum.Sum
}

// IsHole reports whether ptr points at nothing — the lwb has no
// block pointer yet, e.g. an lwb still waiting on the txg to allocate
// its successor block.
func (p Ptr) IsHole() bool { return p.Addr == Addr{} && p.Len == 0 }

// Engine is the narrow external collaborator contract: allocation,
// durable write/read of a single block, speculative claim/free at
// import time, and per-vdev cache flush.
type Engine interface {
	// Alloc reserves a block of size bytes, chargeable to txg.
	Alloc(t txg.Txg, size int) (Ptr, error)
	// Write durably writes data under ptr, having been checksummed
	// with seed; returns the checksum actually stored in the block's
	// trailer so the caller can derive the next chain seed from it.
	Write(ptr Ptr, seed cksum.Sum, data []byte) (cksum.Sum, error)
	// Read fetches the block at ptr and validates it against seed. A
	// mismatch (or a hole/EOF) returns cmnerr.ErrChainEnd, which
	// parse/claim/replay treat as the expected chain terminator, not
	// a hard failure.
	Read(ptr Ptr, seed cksum.Sum) (data []byte, stored cksum.Sum, err error)
	// Claim speculatively reserves ptr at import time so the
	// allocator cannot reuse it before replay decides its fate.
	Claim(ptr Ptr) error
	// Free releases ptr back to the allocator.
	Free(ptr Ptr) error
	// FlushVdev issues (and waits for) a cache flush to vdev.
	FlushVdev(vdev uint64) error
}
