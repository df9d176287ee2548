package blockstore

import (
	"sync"

	"github.com/zilcore/zilcore/cos/cmnerr"
	"github.com/zilcore/zilcore/cos/cksum"
	"github.com/zilcore/zilcore/cos/ratomic"
	"github.com/zilcore/zilcore/txg"
)

// MemEngine is an in-memory Engine used by unit and scenario tests. It
// supports injected allocation failure (FailAllocAfter) to exercise
// the writer's stall-and-retry path when an allocation fails midway
// through closing a block.
type MemEngine struct {
	mu sync.Mutex

	nextOffset uint64
	blocks     map[Addr][]byte
	sums       map[Addr]cksum.Sum // checksum computed at Write time, for Read's corruption check
	claimed    map[Addr]bool
	freed      map[Addr]bool

	allocCount   ratomic.Int64
	failAllocAt  int64 // 0 means never fail
	flushCount   map[uint64]int64
	flushErr     map[uint64]error
}

func NewMemEngine() *MemEngine {
	return &MemEngine{
		blocks:     make(map[Addr][]byte),
		sums:       make(map[Addr]cksum.Sum),
		claimed:    make(map[Addr]bool),
		freed:      make(map[Addr]bool),
		flushCount: make(map[uint64]int64),
		flushErr:   make(map[uint64]error),
	}
}

var _ Engine = (*MemEngine)(nil)

// FailAllocAfter makes the n-th call to Alloc (1-indexed) return an
// error, simulating pool-out-of-space or a vdev going away mid-burst.
func (e *MemEngine) FailAllocAfter(n int64) {
	e.mu.Lock()
	e.failAllocAt = n
	e.mu.Unlock()
}

func (e *MemEngine) Alloc(_ txg.Txg, size int) (Ptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.allocCount.Inc()
	if e.failAllocAt != 0 && n == e.failAllocAt {
		return Ptr{}, cmnerr.AllocFailed(errAllocExhausted)
	}

	off := e.nextOffset
	e.nextOffset += uint64(size)
	return Ptr{Addr: Addr{Vdev: 0, Offset: off}, Len: uint32(size)}, nil
}

func (e *MemEngine) Write(ptr Ptr, seed cksum.Sum, data []byte) (cksum.Sum, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.freed[ptr.Addr] {
		return cksum.Sum{}, errAddrFreed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	e.blocks[ptr.Addr] = buf
	stored := cksum.Of(seed, data)
	e.sums[ptr.Addr] = stored
	return stored, nil
}

// Read recomputes the block's checksum from seed and the bytes on
// file, and validates it against the checksum this same engine stored
// when it wrote that block — a corruption check, not a comparison
// against ptr.Seed (which is merely the hash input, not an expected
// result).
func (e *MemEngine) Read(ptr Ptr, seed cksum.Sum) ([]byte, cksum.Sum, error) {
	e.mu.Lock()
	data, ok := e.blocks[ptr.Addr]
	wantSum, sumOK := e.sums[ptr.Addr]
	e.mu.Unlock()
	if ptr.IsHole() || !ok || !sumOK {
		return nil, cksum.Sum{}, cmnerr.ErrChainEnd
	}
	got := cksum.Of(seed, data)
	if !got.Equal(wantSum) {
		return nil, cksum.Sum{}, cmnerr.ErrChainEnd
	}
	return data, got, nil
}

func (e *MemEngine) Claim(ptr Ptr) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.claimed[ptr.Addr] = true
	return nil
}

func (e *MemEngine) Free(ptr Ptr) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.blocks, ptr.Addr)
	delete(e.sums, ptr.Addr)
	e.freed[ptr.Addr] = true
	return nil
}

func (e *MemEngine) FlushVdev(vdev uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.flushErr[vdev]; err != nil {
		return err
	}
	e.flushCount[vdev]++
	return nil
}

// SetFlushErr injects a flush failure on vdev, used by
// TestFlushErrorNotPropagated to confirm that a device-level cache
// flush failure stays a pool-level concern and never blocks a commit
// waiter.
func (e *MemEngine) SetFlushErr(vdev uint64, err error) {
	e.mu.Lock()
	e.flushErr[vdev] = err
	e.mu.Unlock()
}

func (e *MemEngine) FlushCount(vdev uint64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushCount[vdev]
}

func (e *MemEngine) IsClaimed(a Addr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claimed[a]
}
