// Package itx implements the in-memory intent-transaction record, its
// per-txg group ring, and the assign/clean lifecycle that moves an
// itx from "pending" to either "packed into an lwb" or "freed once its
// txg syncs through the main pool". Each txg slot keeps a per-object
// pending map guarded by its own mutex, drained on whichever lifecycle
// event claims the itx first: a per-txg-slot sync list plus a
// per-object async tree.
package itx

import (
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos"
	"github.com/zilcore/zilcore/txg"
)

// WrState is the write-record copy strategy (writes only).
type WrState int

const (
	WrCopied WrState = iota
	WrNeedCopy
	WrIndirect
)

// Callback fires exactly once, when the itx is finally freed — either
// by a successful flush (lwb.FlushDone) or by itxg clean.
type Callback func(itx *Itx, synced bool)

// Itx is a single operation queued to the log.
type Itx struct {
	Header chain.RecordHeader
	Body   []byte // variable-length, 8-byte padded per NewReclen

	WrState WrState // meaningful only for TX_WRITE
	Sync    bool    // default true
	Foid    uint64  // owning-object id, for async bucketing
	Gen     uint64  // per-itx generation number

	Callback Callback
	Opaque   any

	// Waiter is non-nil only for TX_COMMIT itxs: it references the
	// commit waiter this itx carries through the pipeline.
	Waiter any

	Txg txg.Txg
}

// Create allocates a contiguous {header, body} itx — itx_create.
// Defaults: sync=true, no callback, seq=0 (stamped later by the
// writer pipeline when the record is actually packed).
func Create(txtype chain.Txtype, lrSize int) *Itx {
	reclen := chain.NewReclen(lrSize)
	return &Itx{
		Header: chain.RecordHeader{Txtype: txtype, Reclen: reclen},
		Body:   make([]byte, cos.RoundUp8(lrSize)),
		Sync:   true,
	}
}

// CreateCommit builds the TX_COMMIT sentinel itx that carries waiter
// through the pipeline: it consumes no lwb bytes of its own.
func CreateCommit(waiter any) *Itx {
	return &Itx{
		Header: chain.RecordHeader{Txtype: chain.TxCommit},
		Sync:   true,
		Waiter: waiter,
	}
}

func (it *Itx) IsCommit() bool { return it.Header.Txtype == chain.TxCommit }
