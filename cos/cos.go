// Package cos ("common open source") holds small leaf-level building
// blocks shared across zilcore: verbosity-module tags and size
// constants.
package cos

const (
	SmoduleZil    = "zil"
	SmoduleChain  = "chain"
	SmoduleReplay = "replay"
	SmoduleItx    = "itx"
	SmoduleStats  = "stats"
)

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// RoundUp8 rounds n up to the next multiple of 8, the record-length
// alignment the data model requires everywhere reclen is computed.
func RoundUp8(n int) int { return (n + 7) &^ 7 }

// RoundUp rounds n up to the next multiple of blk (blk must be a power of two).
func RoundUp(n, blk int) int { return (n + blk - 1) &^ (blk - 1) }
