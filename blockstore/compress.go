package blockstore

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v3"

	"github.com/zilcore/zilcore/cos/cksum"
	"github.com/zilcore/zilcore/txg"
)

// CompressingEngine wraps an Engine with transparent lz4 compression
// of the bytes actually stored, gated by the config's "compression"
// tunable. Wrapping happens entirely below the Engine interface: chain
// and zil always see plaintext, so neither package needs to know
// compression is in play.
type CompressingEngine struct {
	Engine
}

func NewCompressingEngine(inner Engine) *CompressingEngine {
	return &CompressingEngine{Engine: inner}
}

var _ Engine = (*CompressingEngine)(nil)

func (c *CompressingEngine) Alloc(t txg.Txg, size int) (Ptr, error) {
	return c.Engine.Alloc(t, size)
}

func (c *CompressingEngine) Write(ptr Ptr, seed cksum.Sum, data []byte) (cksum.Sum, error) {
	bound := lz4.CompressBlockBound(len(data))
	buf := make([]byte, 4+bound)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(data, buf[4:], ht[:])
	if err != nil {
		return cksum.Sum{}, err
	}
	if n == 0 {
		// incompressible: lz4 declines, fall back to storing raw with
		// a sentinel length of 0 meaning "uncompressed below".
		raw := make([]byte, 4+len(data))
		binary.BigEndian.PutUint32(raw[:4], 0)
		copy(raw[4:], data)
		return c.Engine.Write(ptr, seed, raw)
	}
	return c.Engine.Write(ptr, seed, buf[:4+n])
}

func (c *CompressingEngine) Read(ptr Ptr, seed cksum.Sum) ([]byte, cksum.Sum, error) {
	stored, got, err := c.Engine.Read(ptr, seed)
	if err != nil {
		return nil, got, err
	}
	if len(stored) < 4 {
		return stored, got, nil
	}
	origLen := binary.BigEndian.Uint32(stored[:4])
	if origLen == 0 {
		return stored[4:], got, nil
	}
	out := make([]byte, origLen)
	if _, err := lz4.UncompressBlock(stored[4:], out); err != nil {
		return nil, got, err
	}
	return out, got, nil
}
