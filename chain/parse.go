package chain

import (
	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/cos/cmnerr"
)

// VisitBlock is called once per block read, before its records are
// visited. Returning an error stops the parse immediately.
type VisitBlock func(ptr blockstore.Ptr, t Trailer) error

// VisitRecord is called once per fixed-length record inside a visited
// block.
type VisitRecord func(hdr RecordHeader, body []byte) error

// Result accumulates what the caller needs to know after a parse:
// the highest block/record sequence actually read, and counts.
type Result struct {
	MaxBlockSeq uint64
	MaxLrSeq    uint64
	NumBlocks   int
	NumRecords  int
}

// Noop visitors implement the "erase nothing, reserve nothing" walk
// used e.g. to just measure a chain.
func NoopBlock(blockstore.Ptr, Trailer) error     { return nil }
func NoopRecord(RecordHeader, []byte) error       { return nil }

// Parse walks the on-disk chain rooted at header.Log, calling
// visitBlock/visitRecord for every block/record encountered.
//
// decrypt is accepted but never interpreted here: it is a gating
// condition the filesystem layer consults before handing the core a
// record, not something this package decodes.
func Parse(
	engine blockstore.Engine,
	layout Layout,
	blockSize int,
	header Header,
	limits ClaimLimits,
	visitBlock VisitBlock,
	visitRecord VisitRecord,
	decrypt bool,
) (Result, error) {
	var res Result
	ptr := header.Log

	for {
		if ptr.IsHole() {
			break
		}
		if limits.MaxBlockSeq != 0 && ptr.Seed.Seq() > limits.MaxBlockSeq {
			break
		}

		data, _, err := engine.Read(ptr, ptr.Seed)
		if err == cmnerr.ErrChainEnd {
			break // expected chain terminator, not a failure
		}
		if err != nil {
			return res, err
		}

		tStart, tEnd := TrailerRegion(layout, blockSize)
		if tEnd > len(data) {
			break
		}
		trailer := DecodeTrailer(data[tStart:tEnd])
		if !ValidTrailer(layout, blockSize, trailer) {
			break
		}

		if err := visitBlock(ptr, trailer); err != nil {
			return res, err
		}

		recStart, _ := RecordsRegion(layout, blockSize)
		used := recordsUsed(layout, trailer.BytesUsed)
		if recStart+used > len(data) {
			used = len(data) - recStart
		}
		region := data[recStart : recStart+used]

		stop, err := walkRecords(region, limits, visitRecord, &res)
		if err != nil {
			return res, err
		}

		if ptr.Seed.Seq() > res.MaxBlockSeq {
			res.MaxBlockSeq = ptr.Seed.Seq()
		}
		res.NumBlocks++
		if stop {
			break
		}

		ptr = trailer.Next
	}

	return res, nil
}

func recordsUsed(layout Layout, bytesUsed uint32) int {
	if layout == Slim {
		if int(bytesUsed) < TrailerSize {
			return 0
		}
		return int(bytesUsed) - TrailerSize
	}
	return int(bytesUsed)
}

// walkRecords decodes fixed-length records out of region, bounds
// checking reclen and stopping (without error) once a record's
// sequence runs past the claimed max.
func walkRecords(region []byte, limits ClaimLimits, visit VisitRecord, res *Result) (stop bool, err error) {
	off := 0
	for off+HeaderSize <= len(region) {
		hdr := DecodeHeader(region[off:])
		if hdr.Reclen < HeaderSize || off+int(hdr.Reclen) > len(region) {
			break // truncated/corrupt tail, treat like chain end
		}
		if limits.Valid && hdr.Seq > limits.MaxLrSeq {
			return true, nil
		}
		body := region[off+HeaderSize : off+int(hdr.Reclen)]
		if err := visit(hdr, body); err != nil {
			return false, err
		}
		if hdr.Seq > res.MaxLrSeq {
			res.MaxLrSeq = hdr.Seq
		}
		res.NumRecords++
		off += int(hdr.Reclen)
	}
	return false, nil
}
