package chain

import (
	"testing"

	"github.com/zilcore/zilcore/blockstore"
)

func TestCheckDoesNotMutateAllocatorState(t *testing.T) {
	engine := blockstore.NewMemEngine()
	header := buildTwoBlockChain(t, engine)

	res, err := Check(engine, Slim, testBlockSize, header)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.NumBlocks != 2 {
		t.Fatalf("NumBlocks = %d, want 2", res.NumBlocks)
	}

	mem := engine
	if mem.IsClaimed(header.Log.Addr) {
		t.Fatal("Check must never claim a block")
	}
}

func TestClaimLogClearModeZeroesHeader(t *testing.T) {
	engine := blockstore.NewMemEngine()
	header := buildTwoBlockChain(t, engine)
	addr0 := header.Log.Addr

	if err := Claim(engine, Slim, testBlockSize, &header, 1, nil, ClaimOpts{LogClearMode: true}); err != nil {
		t.Fatalf("Claim(clear): %v", err)
	}
	if header.Log != (blockstore.Ptr{}) || header.ClaimTxg != 0 {
		t.Fatalf("clear mode must zero the header, got %+v", header)
	}
	if header.Guid == "" {
		t.Fatal("clear mode must install a fresh chain GUID")
	}
	if _, _, err := engine.Read(blockstore.Ptr{Addr: addr0, Len: testBlockSize}, blockstore.Ptr{}.Seed); err == nil {
		t.Fatal("clear mode must free every block it walks")
	}
}

func TestClaimStampsReplayLimits(t *testing.T) {
	engine := blockstore.NewMemEngine()
	header := buildTwoBlockChain(t, engine)

	if err := Claim(engine, Slim, testBlockSize, &header, 7, nil, ClaimOpts{}); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if header.MaxBlkSeq != 2 {
		t.Fatalf("MaxBlkSeq = %d, want 2", header.MaxBlkSeq)
	}
	if header.MaxLrSeq != 2 {
		t.Fatalf("MaxLrSeq = %d, want 2", header.MaxLrSeq)
	}
	if !header.ClaimLrSeqValid() {
		t.Fatal("claim must set FlagClaimLrSeqValid")
	}
}
