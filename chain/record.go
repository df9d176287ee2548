// Package chain implements the on-disk log-block chain: record and
// trailer wire formats, the chain parser, the claim/check/free/destroy
// visitors, and the post-claim replayer. Nothing in this package is a
// virtual-dispatch hierarchy: a record is a tagged byte blob, and
// callers supply plain visitor functions rather than a record type
// hierarchy.
package chain

import (
	"encoding/binary"

	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/cos"
	"github.com/zilcore/zilcore/cos/cksum"
)

// Txtype tags a record's payload layout. The core never interprets a
// record body beyond its length; txtype dispatch belongs to the
// filesystem producer (zfs_log_*) and the replay table, both external
// to this package.
type Txtype uint16

const (
	_ Txtype = iota
	TxCreate
	TxMkdir
	TxMkxattr
	TxSymlink
	TxRemove
	TxMkdirRemove
	TxLink
	TxRename
	TxRenameExchange
	TxWrite
	TxTruncate
	TxSetattr
	TxAcl
	TxAclV0
	TxCloneRange
	TxSetSaxattr
	MaxTxtype

	// TxCommit is an itx-only sentinel: it is never encoded to disk,
	// consumes no lwb bytes, and exists purely to carry a waiter
	// through the pipeline.
	TxCommit Txtype = 0xFFFF
)

// CiBit marks a record's name as case-insensitive; replay strips it
// before txtype dispatch.
const CiBit Txtype = 0x8000

// OutOfOrderMask are txtypes replay must treat as "may target an
// object that no longer exists" — skip silently rather than error.
var OutOfOrderMask = map[Txtype]bool{
	TxRemove:      true,
	TxMkdirRemove: true,
	TxRename:      true,
}

// HeaderSize is sizeof(record header): {txtype, pad, reclen, txg, seq},
// 8-byte aligned by construction.
const HeaderSize = 24

// RecordHeader is the fixed prefix of every on-disk record.
type RecordHeader struct {
	Txtype Txtype
	Reclen uint32
	Txg    uint64
	Seq    uint64
}

func (h RecordHeader) Encode(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], uint16(h.Txtype))
	binary.BigEndian.PutUint32(b[4:8], h.Reclen)
	binary.BigEndian.PutUint64(b[8:16], h.Txg)
	binary.BigEndian.PutUint64(b[16:24], h.Seq)
}

func DecodeHeader(b []byte) RecordHeader {
	return RecordHeader{
		Txtype: Txtype(binary.BigEndian.Uint16(b[0:2])),
		Reclen: binary.BigEndian.Uint32(b[4:8]),
		Txg:    binary.BigEndian.Uint64(b[8:16]),
		Seq:    binary.BigEndian.Uint64(b[16:24]),
	}
}

// NewReclen rounds sizeof(header)+bodyLen up to 8 bytes and enforces
// the invariant reclen >= sizeof(header).
func NewReclen(bodyLen int) uint32 {
	return uint32(cos.RoundUp8(HeaderSize + bodyLen))
}

// addrSize/ptrSize/trailerSize are the encoded byte widths of
// blockstore.Addr, blockstore.Ptr, and Trailer respectively.
const (
	addrSize    = 16 // vdev(8) + offset(8)
	ptrSize     = addrSize + 4 + cksum.EncodedSize
	TrailerSize = 4 /*bytes_used*/ + 4 /*pad*/ + ptrSize + cksum.EncodedSize
)

func encodeAddr(a blockstore.Addr, b []byte) {
	binary.BigEndian.PutUint64(b[0:8], a.Vdev)
	binary.BigEndian.PutUint64(b[8:16], a.Offset)
}

func decodeAddr(b []byte) blockstore.Addr {
	return blockstore.Addr{Vdev: binary.BigEndian.Uint64(b[0:8]), Offset: binary.BigEndian.Uint64(b[8:16])}
}

func encodePtr(p blockstore.Ptr, b []byte) {
	encodeAddr(p.Addr, b)
	binary.BigEndian.PutUint32(b[addrSize:addrSize+4], p.Len)
	p.Seed.Encode(b[addrSize+4:])
}

func decodePtr(b []byte) blockstore.Ptr {
	return blockstore.Ptr{
		Addr: decodeAddr(b),
		Len:  binary.BigEndian.Uint32(b[addrSize : addrSize+4]),
		Seed: cksum.Decode(b[addrSize+4:]),
	}
}

// Trailer is the per-block footer: bytes actually used, the pointer
// (with embedded next-seed) to the successor block, and this block's
// own checksum.
type Trailer struct {
	BytesUsed uint32
	Next      blockstore.Ptr
	ThisCksum cksum.Sum
}

func (t Trailer) Encode(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], t.BytesUsed)
	encodePtr(t.Next, b[8:8+ptrSize])
	t.ThisCksum.Encode(b[8+ptrSize:])
}

func DecodeTrailer(b []byte) Trailer {
	return Trailer{
		BytesUsed: binary.BigEndian.Uint32(b[0:4]),
		Next:      decodePtr(b[8 : 8+ptrSize]),
		ThisCksum: cksum.Decode(b[8+ptrSize:]),
	}
}

// Layout distinguishes the two on-disk block formats.
type Layout int

const (
	// Slim is the new layout: trailer at byte 0.
	Slim Layout = iota
	// Legacy carries the trailer in the last TrailerSize bytes.
	Legacy
)

// ValidTrailer enforces the two format-specific invariants: slim
// requires bytes_used >= sizeof(trailer); legacy requires
// bytes_used <= size - sizeof(trailer).
func ValidTrailer(layout Layout, blockSize int, t Trailer) bool {
	switch layout {
	case Slim:
		return int(t.BytesUsed) >= TrailerSize
	default:
		return int(t.BytesUsed) <= blockSize-TrailerSize
	}
}

// RecordsRegion returns the byte range within a block of size
// blockSize that holds packed records, given the layout.
func RecordsRegion(layout Layout, blockSize int) (start, end int) {
	if layout == Slim {
		return TrailerSize, blockSize
	}
	return 0, blockSize - TrailerSize
}

// TrailerRegion returns the byte range holding the trailer itself.
func TrailerRegion(layout Layout, blockSize int) (start, end int) {
	if layout == Slim {
		return 0, TrailerSize
	}
	return blockSize - TrailerSize, blockSize
}
