// Package zil owns the per-dataset intent log: the in-memory itx
// pipeline, the lwb chain it produces, and the sync/clean/destroy/
// suspend state machine that keeps the chain's on-disk header
// consistent with what's actually durable. A single mutex serializes
// the writer pipeline while data-plane callers still touch the itx
// ring under their own finer-grained locks. There is no separate writer
// goroutine: each committing caller runs the writer pipeline itself
// under issuerLock (packing and writing blocks), then blocks on its own
// commit waiter until the block carrying it is flushed.
package zil

import (
	"sync"
	"time"

	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cmn"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/cos/ratomic"
	"github.com/zilcore/zilcore/itx"
	"github.com/zilcore/zilcore/lwb"
	"github.com/zilcore/zilcore/stats"
	"github.com/zilcore/zilcore/txg"
)

// Bursts is the bounded history length kept by the sizing predictor.
const Bursts = 8

// MinBlockSize is the granularity predicted block sizes round up to.
const MinBlockSize = 4 << 10

// Zilog is the per-dataset log controller: it owns the itx ring, the
// chain of lwbs currently being built or in flight, and the on-disk
// header those blocks hang off of.
type Zilog struct {
	// issuerLock serializes the writer pipeline; never acquired while
	// holding a waiter's lock.
	issuerLock sync.Mutex
	// lock protects the lwb list, lastLwbOpened, and the header
	// snapshot.
	lock sync.Mutex
	// ioLock protects inflight and its condvar.
	ioLock sync.Mutex
	ioCond *sync.Cond

	Engine blockstore.Engine
	Txgs   txg.Manager
	Layout chain.Layout

	header chain.Header

	ring *itx.Ring

	lwbHead, lwbTail *lwb.Lwb
	lastLwbOpened    *lwb.Lwb

	inflight [txg.Size]int

	predictor predictor

	suspending  ratomic.Bool
	suspendCnt  ratomic.Int32
	suspendCond *sync.Cond
	suspendMu   sync.Mutex

	destroyTxg   txg.Txg
	destroyArmed bool

	syncEnabled bool

	ewmaMu sync.Mutex
	ewma   time.Duration

	replayTable chain.ReplayTable

	dataset string
	reg     *stats.Registry

	blocksWritten  ratomic.Int64
	recordsWritten ratomic.Int64
	bytesWritten   ratomic.Int64
	flushErrors    ratomic.Int64
	allocFailures  ratomic.Int64
}

// SetStatsRegistry wires this zilog's per-dataset counters into a
// process-wide Prometheus registry.
func (z *Zilog) SetStatsRegistry(dataset string, reg *stats.Registry) {
	z.dataset = dataset
	z.reg = reg
}

// Snap returns a read-only point-in-time summary of this zilog's
// counters, safe to call concurrently with the writer pipeline.
func (z *Zilog) Snap() *stats.Snap {
	inflight := 0
	for i := txg.Txg(0); i < txg.Size; i++ {
		inflight += z.Inflight(i)
	}
	return &stats.Snap{
		NumLwbsInflight:   inflight,
		NumBlocksWritten:  z.blocksWritten.Load(),
		NumRecordsWritten: z.recordsWritten.Load(),
		BytesWritten:      z.bytesWritten.Load(),
		LastLwbLatency:    z.EWMA(),
		FlushErrors:       z.flushErrors.Load(),
		AllocFailures:     z.allocFailures.Load(),
	}
}

// New creates a zilog over an already-claimed (or fresh/empty) header.
// If the live config has Compression enabled, engine is transparently
// wrapped with lz4 compression.
func New(engine blockstore.Engine, txgs txg.Manager, layout chain.Layout, header chain.Header) *Zilog {
	if cmn.GCO.Get().Compression {
		engine = blockstore.NewCompressingEngine(engine)
	}
	z := &Zilog{
		Engine:      engine,
		Txgs:        txgs,
		Layout:      layout,
		header:      header,
		ring:        itx.NewRing(),
		syncEnabled: true,
	}
	z.ioCond = sync.NewCond(&z.ioLock)
	z.suspendCond = sync.NewCond(&z.suspendMu)
	z.predictor.init()
	lwb.GlobalBufPool().Init()
	lwb.GlobalWaiterPool().Init()
	return z
}

// Close drains every live txg's inflight lwbs (so shutdown never
// returns mid-flight) and releases the zilog's reference on the
// global buffer/waiter pools.
func (z *Zilog) Close() {
	for i := txg.Txg(0); i < txg.Size; i++ {
		z.WaitInflightDrained(i)
	}
	lwb.GlobalBufPool().Fini()
	lwb.GlobalWaiterPool().Fini()
}

func (z *Zilog) config() *cmn.Config { return cmn.GCO.Get() }

// Header returns a snapshot of the on-disk header.
func (z *Zilog) Header() chain.Header {
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.header
}

func (z *Zilog) appendLwb(l *lwb.Lwb) {
	z.lock.Lock()
	defer z.lock.Unlock()
	if z.lwbTail == nil {
		z.lwbHead, z.lwbTail = l, l
		// header.Log must name the chain's oldest live block the
		// instant it exists, not only once Sync retires something —
		// otherwise a crash before the first sync pass would leave a
		// claimable block with nothing pointing at it.
		z.header.Log = l.BlkPtr
	} else {
		z.lwbTail.Next = l
		z.lwbTail = l
	}
	z.lastLwbOpened = l
	z.inflightIncr(l.AllocTxg)
}

func (z *Zilog) inflightIncr(t txg.Txg) {
	z.ioLock.Lock()
	z.inflight[uint64(t)%txg.Size]++
	z.ioLock.Unlock()
}

func (z *Zilog) inflightDecr(t txg.Txg) {
	z.ioLock.Lock()
	z.inflight[uint64(t)%txg.Size]--
	z.ioLock.Unlock()
	z.ioCond.Broadcast()
}

// WaitInflightDrained blocks until every lwb allocated against t has
// finished its I/O — the first step a sync pass takes before it may
// retire t's blocks from the header.
func (z *Zilog) WaitInflightDrained(t txg.Txg) {
	z.ioLock.Lock()
	defer z.ioLock.Unlock()
	for z.inflight[uint64(t)%txg.Size] > 0 {
		z.ioCond.Wait()
	}
}

func (z *Zilog) Inflight(t txg.Txg) int {
	z.ioLock.Lock()
	defer z.ioLock.Unlock()
	return z.inflight[uint64(t)%txg.Size]
}

func (z *Zilog) updateEWMA(sample time.Duration) {
	z.ewmaMu.Lock()
	if z.ewma == 0 {
		z.ewma = sample
	} else {
		z.ewma = (z.ewma*7 + sample) / 8
	}
	z.ewmaMu.Unlock()
}

func (z *Zilog) EWMA() time.Duration {
	z.ewmaMu.Lock()
	defer z.ewmaMu.Unlock()
	return z.ewma
}

func (z *Zilog) Suspended() bool { return z.suspending.Load() || z.suspendCnt.Load() > 0 }

// ArmDestroy schedules a full chain destroy to run on Sync(t) — used
// by dataset deletion, which must not free blocks until the deleting
// txg has actually reached sync.
func (z *Zilog) ArmDestroy(t txg.Txg) {
	z.lock.Lock()
	z.destroyTxg = t
	z.destroyArmed = true
	z.lock.Unlock()
}

// SetReplayTable installs the replay dispatch table used by Replay.
func (z *Zilog) SetReplayTable(table chain.ReplayTable) { z.replayTable = table }

// Replay walks and dispatches every record in this zilog's current
// header, then destroys the chain and waits for that destroy to reach
// sync — once replay has handed every record to its handler, the log
// itself has no further use and should not survive the next import.
func (z *Zilog) Replay(byteswap bool) error {
	if z.config().ReplayDisable {
		return nil
	}
	if !z.header.ReplayNeeded() {
		return nil
	}
	r := chain.Replayer{
		Engine:    z.Engine,
		Layout:    z.Layout,
		BlockSize: blockSizeHint(z),
		Table:     z.replayTable,
		Txgs:      z.Txgs,
		Byteswap:  byteswap,
	}
	if err := r.Replay(z.header); err != nil {
		return err
	}
	destroyTxg := z.Txgs.Open()
	if err := z.Destroy(false); err != nil {
		return err
	}
	z.Txgs.WaitSynced(destroyTxg)
	return nil
}

func (z *Zilog) logIfVerbose(format string, args ...any) {
	if nlog.FastV(4, "zil") {
		nlog.Infof(format, args...)
	}
}
