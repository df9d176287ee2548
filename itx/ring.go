package itx

import (
	"sync"

	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos/nlog"
	"github.com/zilcore/zilcore/txg"
)

// Group is one ring slot: the txg it currently owns, a sync list, and
// an async-by-foid index. A plain map is enough here — nothing needs
// ordered foid traversal, only point lookup and whole-slot drain.
type Group struct {
	mu    sync.Mutex
	txg   txg.Txg // 0 means empty slot
	sync_ []*Itx
	async map[uint64][]*Itx
}

// Ring holds one Group per concurrently-open txg slot, keyed by txg
// mod the ring's fixed size.
type Ring struct {
	slots [txg.Size]Group
}

func NewRing() *Ring { return &Ring{} }

func (r *Ring) slot(t txg.Txg) *Group { return &r.slots[uint64(t)%txg.Size] }

// Assign files it into t's slot, sync list or async tree depending on
// it.Sync.
//
// If it is a TX_RENAME, pending async itxs targeting the renamed
// object are promoted to the sync list first, guaranteeing
// data-before-metadata ordering.
func (r *Ring) Assign(it *Itx, t txg.Txg) {
	if it.Header.Txtype&^chain.CiBit == chain.TxRename {
		r.promoteAsyncToSync(t, it.Foid)
	}

	g := r.slot(t)
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.txg != t {
		stale := g.drainLocked()
		if len(stale) > 0 {
			nlog.Warningf("itxg: slot reassigned from stale txg with %d itxs still attached", len(stale))
		}
		g.txg = t
	}

	it.Txg = t
	if it.Sync {
		g.sync_ = append(g.sync_, it)
	} else {
		if g.async == nil {
			g.async = make(map[uint64][]*Itx)
		}
		g.async[it.Foid] = append(g.async[it.Foid], it)
	}
}

// promoteAsyncToSync moves every async itx targeting foid in slot t's
// async tree to its sync list, in original order.
func (r *Ring) promoteAsyncToSync(t txg.Txg, foid uint64) {
	g := r.slot(t)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.txg != t || g.async == nil {
		return
	}
	pending, ok := g.async[foid]
	if !ok {
		return
	}
	g.sync_ = append(g.sync_, pending...)
	delete(g.async, foid)
}

// PurgeRemoved drops every pending async itx for foid: once an object
// is unlinked its id may be reused in the very next txg, so its stale
// async itxs must not survive to be misattributed to the reused id.
func (r *Ring) PurgeRemoved(t txg.Txg, foid uint64) {
	g := r.slot(t)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.async != nil {
		delete(g.async, foid)
	}
}

// drainLocked detaches and returns every itx currently held by the
// slot, resetting it to empty. Caller must hold g.mu.
func (g *Group) drainLocked() []*Itx {
	out := make([]*Itx, 0, len(g.sync_))
	out = append(out, g.sync_...)
	for _, lst := range g.async {
		out = append(out, lst...)
	}
	g.sync_ = nil
	g.async = nil
	return out
}

// Clean detaches and returns every itx from the slot whose owning txg
// has now fully synced, resetting the slot to empty. Freeing (invoking
// callbacks) is the caller's job — whether that happens inline or on
// its own goroutine is the caller's choice, not this ring's concern.
func (r *Ring) Clean(synced txg.Txg) []*Itx {
	g := r.slot(synced)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.txg == 0 || g.txg > synced {
		return nil
	}
	out := g.drainLocked()
	g.txg = 0
	return out
}

// Splice detaches and returns the slot's sync list (leaving its async
// tree untouched) — used to move committed itxs onto a writer's commit
// list without waiting for the txg to actually sync.
func (r *Ring) Splice(t txg.Txg) []*Itx {
	g := r.slot(t)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.txg != t {
		return nil
	}
	out := g.sync_
	g.sync_ = nil
	return out
}

// SlotTxg reports the txg currently owned by t's slot (0 if empty or the
// slot has since moved on).
func (r *Ring) SlotTxg(t txg.Txg) txg.Txg {
	g := r.slot(t)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.txg
}
