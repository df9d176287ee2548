package chain

import (
	"testing"

	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/cos/cmnerr"
	"github.com/zilcore/zilcore/txg"
)

func TestReplayDispatchesEveryRecord(t *testing.T) {
	engine := blockstore.NewMemEngine()
	header := buildTwoBlockChain(t, engine)
	if err := Claim(engine, Slim, testBlockSize, &header, 1, nil, ClaimOpts{}); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	var seen []Txtype
	table := ReplayTable{
		TxCreate: func(_ uint64, _ RecordHeader, _ []byte, _ bool) error {
			seen = append(seen, TxCreate)
			return nil
		},
		TxWrite: func(_ uint64, _ RecordHeader, _ []byte, _ bool) error {
			seen = append(seen, TxWrite)
			return nil
		},
	}

	r := &Replayer{Engine: engine, Layout: Slim, BlockSize: testBlockSize, Table: table, Txgs: txg.NewSim(1)}
	if err := r.Replay(header); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seen) != 2 || seen[0] != TxCreate || seen[1] != TxWrite {
		t.Fatalf("dispatch order = %v, want [TxCreate TxWrite]", seen)
	}
}

func TestReplayUnknownRecordErrors(t *testing.T) {
	engine := blockstore.NewMemEngine()
	header := buildTwoBlockChain(t, engine)
	if err := Claim(engine, Slim, testBlockSize, &header, 1, nil, ClaimOpts{}); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	r := &Replayer{Engine: engine, Layout: Slim, BlockSize: testBlockSize, Table: ReplayTable{}, Txgs: txg.NewSim(1)}
	if err := r.Replay(header); err != cmnerr.ErrUnknownRecord {
		t.Fatalf("err = %v, want ErrUnknownRecord", err)
	}
}

func TestReplayPropagatesTargetGoneForNonOutOfOrderTxtypes(t *testing.T) {
	engine := blockstore.NewMemEngine()
	header := buildTwoBlockChain(t, engine)
	if err := Claim(engine, Slim, testBlockSize, &header, 1, nil, ClaimOpts{}); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	table := ReplayTable{
		TxCreate: func(_ uint64, _ RecordHeader, _ []byte, _ bool) error { return nil },
		TxWrite: func(_ uint64, _ RecordHeader, _ []byte, _ bool) error {
			return cmnerr.ErrTargetGone
		},
	}
	sim := txg.NewSim(1)
	r := &Replayer{Engine: engine, Layout: Slim, BlockSize: testBlockSize, Table: table, Txgs: sim}

	// TxWrite is not in OutOfOrderMask, so a target-gone error should
	// propagate (after a retry against WaitSynced).
	go sim.AdvanceSync()
	if err := r.Replay(header); err != cmnerr.ErrTargetGone {
		t.Fatalf("err = %v, want ErrTargetGone to propagate for a non-out-of-order txtype", err)
	}
}

