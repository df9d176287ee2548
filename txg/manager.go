// Package txg models the transaction-group manager as an external
// collaborator: it owns sync-epoch (txg) advancement and the blocking
// txg_wait_synced/sync_pass contract the ZIL core depends on but does
// not implement.
//
// Manager is the narrow interface the core actually calls. Sim
// is a minimal, fully in-process implementation used by tests to drive
// that contract deterministically — there is no
// real pool underneath it.
package txg

import (
	"sync"
)

// Txg identifies a transaction group / sync epoch.
type Txg uint64

// Size is TXG_SIZE: the fixed ring width shared by itxg_ring and
// inflight[TXG_SIZE].
const Size = 4

// ConcurrentStates is TXG_CONCURRENT_STATES: the number of
// consecutive open txg slots get_commit_list drains on each call.
const ConcurrentStates = 3

// Manager is the contract the ZIL core needs from the txg subsystem.
type Manager interface {
	// Open returns the currently open (not yet syncing) txg.
	Open() Txg
	// LastSynced returns the highest txg that has fully synced.
	LastSynced() Txg
	// WaitSynced blocks the caller until txg has synced. It is the
	// core's universal fallback whenever the ZIL itself cannot (yet)
	// make data durable: allocation failure, I/O error, suspend race.
	WaitSynced(target Txg)
	// Writable reports whether the pool currently accepts writes; the
	// commit entry point asserts idle and returns early when false.
	Writable() bool
}

// SyncFn is invoked once per txg as it finishes syncing, synchronously
// on the caller of AdvanceSync — this is the hook zil.Zilog.Sync is
// registered on in the test harness.
type SyncFn func(t Txg)

// Sim is a deterministic, single-process stand-in for the real
// txg manager: no background goroutine advances time on its own,
// AdvanceSync is called explicitly (by tests, or by a driver loop).
type Sim struct {
	mu         sync.Mutex
	cond       *sync.Cond
	open       Txg
	lastSynced Txg
	writable   bool
	listeners  []SyncFn
}

var _ Manager = (*Sim)(nil)

func NewSim(startTxg Txg) *Sim {
	m := &Sim{open: startTxg, writable: true}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Sim) Open() Txg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Sim) LastSynced() Txg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSynced
}

func (m *Sim) Writable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writable
}

func (m *Sim) SetWritable(w bool) {
	m.mu.Lock()
	m.writable = w
	m.mu.Unlock()
}

// OnSync registers a listener invoked (in registration order) each
// time AdvanceSync finishes a txg — zilog.Sync is wired in here.
func (m *Sim) OnSync(fn SyncFn) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// AdvanceSync completes the currently open txg: it opens the next
// one, runs sync listeners for the just-closed txg, then publishes
// lastSynced and wakes any WaitSynced callers.
func (m *Sim) AdvanceSync() Txg {
	m.mu.Lock()
	closing := m.open
	m.open++
	listeners := append([]SyncFn(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(closing)
	}

	m.mu.Lock()
	m.lastSynced = closing
	m.mu.Unlock()
	m.cond.Broadcast()
	return closing
}

func (m *Sim) WaitSynced(target Txg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.lastSynced < target {
		m.cond.Wait()
	}
}
