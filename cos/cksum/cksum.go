// Package cksum implements the chain's checksum-seeding scheme: a
// 4-word checksum, continued from block to block by folding the
// previous block's checksum (with its sequence word incremented) into
// the seed of the next.
//
// Backed by github.com/OneOfOne/xxhash rather than a hand-rolled hash.
package cksum

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// Sum is the on-disk checksum word, modeled on zio_cksum_t: four
// 64-bit words. Word[3] doubles as the chain sequence nonce.
type Sum struct {
	W [4]uint64
}

// Seq returns the sequence word carried in this checksum, used both
// as a monotonic record/block sequence and as the hash seed.
func (s Sum) Seq() uint64 { return s.W[3] }

func (s Sum) Equal(o Sum) bool { return s.W == o.W }

func (s Sum) IsZero() bool { return s == Sum{} }

// InitialSeed builds the seed stamped at chain genesis: two random
// GUID halves, the owning objset id, and sequence 1.
func InitialSeed(guid0, guid1, objsetID uint64) Sum {
	return Sum{W: [4]uint64{guid0, guid1, objsetID, 1}}
}

// mixW1, mixW2 decorrelate the second and third digest words from the
// first; arbitrary odd 64-bit constants, not a security property.
const (
	mixW1 = 0x9E3779B97F4A7C15
	mixW2 = 0xC2B2AE3D27D4EB4F
)

// Of computes the checksum of data under seed, used both to stamp a
// freshly written block's trailer and, symmetrically, to verify one
// read back off the simulated device. Word[3] of the result is seed's
// sequence word passed through unchanged — the digest lives entirely
// in W[0..2] — so the chain's sequence nonce survives a block's own
// checksum computation intact for Next to increment.
func Of(seed Sum, data []byte) Sum {
	h0 := xxhash.NewS64(seed.W[0])
	_, _ = h0.Write(data)
	h1 := xxhash.NewS64(seed.W[1] ^ mixW1)
	_, _ = h1.Write(data)
	h2 := xxhash.NewS64(seed.W[2] ^ mixW2)
	_, _ = h2.Write(data)
	return Sum{W: [4]uint64{h0.Sum64(), h1.Sum64(), h2.Sum64(), seed.W[3]}}
}

// Next derives the seed the following block in the chain must be
// validated (and written) against: this block's checksum with its
// sequence word incremented — "checksum_of_block_N with seq++".
func Next(cur Sum) Sum {
	return Sum{W: [4]uint64{cur.W[0], cur.W[1], cur.W[2], cur.W[3] + 1}}
}

const EncodedSize = 32

func (s Sum) Encode(b []byte) {
	for i, w := range s.W {
		binary.BigEndian.PutUint64(b[i*8:], w)
	}
}

func Decode(b []byte) Sum {
	var s Sum
	for i := range s.W {
		s.W[i] = binary.BigEndian.Uint64(b[i*8:])
	}
	return s
}
