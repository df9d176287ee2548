package blockstore

import "errors"

var (
	errAllocExhausted = errors.New("blockstore: no space left on device")
	errAddrFreed       = errors.New("blockstore: write to freed address")
)
