package chain

import (
	"encoding/binary"

	"github.com/zilcore/zilcore/blockstore"
)

// WriteBody is the concrete (non-opaque, as far as this core is
// concerned) layout of a TX_WRITE record body: enough for the writer
// pipeline and claim/replay to do their jobs, while everything else a
// real lr_write_t carries (ACLs, generation bits, ...) stays an opaque
// trailing blob untouched by the core.
type WriteBody struct {
	Foid     uint64
	Offset   uint64
	Length   uint64
	Indirect bool
	BlkPtr   blockstore.Ptr // valid iff Indirect
	Inline   []byte         // valid iff !Indirect (WR_COPIED/WR_NEED_COPY payload)
}

const writeBodyFixedSize = 8 + 8 + 8 + 1 // foid, offset, length, indirect-flag

// EncodedLen returns the on-disk size of this body (fixed prefix plus
// either the block pointer or the inline payload).
func (w WriteBody) EncodedLen() int {
	if w.Indirect {
		return writeBodyFixedSize + ptrSize
	}
	return writeBodyFixedSize + len(w.Inline)
}

func (w WriteBody) Encode(b []byte) {
	binary.BigEndian.PutUint64(b[0:8], w.Foid)
	binary.BigEndian.PutUint64(b[8:16], w.Offset)
	binary.BigEndian.PutUint64(b[16:24], w.Length)
	if w.Indirect {
		b[24] = 1
		encodePtr(w.BlkPtr, b[25:25+ptrSize])
		return
	}
	b[24] = 0
	copy(b[25:], w.Inline)
}

func DecodeWriteBody(b []byte) WriteBody {
	w := WriteBody{
		Foid:   binary.BigEndian.Uint64(b[0:8]),
		Offset: binary.BigEndian.Uint64(b[8:16]),
		Length: binary.BigEndian.Uint64(b[16:24]),
	}
	if b[24] == 1 {
		w.Indirect = true
		w.BlkPtr = decodePtr(b[25 : 25+ptrSize])
		return w
	}
	w.Inline = append([]byte(nil), b[25:]...)
	return w
}

// writeIndirectPtr extracts the indirect block pointer from a TX_WRITE
// record body, used by the claim/free visitors.
func writeIndirectPtr(body []byte) (blockstore.Ptr, bool) {
	if len(body) < writeBodyFixedSize+1 {
		return blockstore.Ptr{}, false
	}
	w := DecodeWriteBody(body)
	if !w.Indirect {
		return blockstore.Ptr{}, false
	}
	return w.BlkPtr, true
}
