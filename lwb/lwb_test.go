package lwb

import (
	"testing"

	"github.com/zilcore/zilcore/blockstore"
	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos/debug"
	"github.com/zilcore/zilcore/itx"
)

func freshLwb(t *testing.T) *Lwb {
	t.Helper()
	GlobalBufPool().Init()
	t.Cleanup(GlobalBufPool().Fini)
	ptr := blockstore.Ptr{Addr: blockstore.Addr{Vdev: 0, Offset: 0}, Len: 4096}
	return NewOpened(ptr, 4096, chain.TrailerSize, true, false, 1)
}

func TestNewOpenedStartsOpened(t *testing.T) {
	l := freshLwb(t)
	if l.State() != Opened {
		t.Fatalf("state = %s, want OPENED", l.State())
	}
	if l.Nmax != l.Sz-chain.TrailerSize {
		t.Fatalf("nmax = %d, want %d", l.Nmax, l.Sz-chain.TrailerSize)
	}
	if err := l.Invariant(); err != nil {
		t.Fatal(err)
	}
}

func TestTransitionFollowsLinearStateMachine(t *testing.T) {
	l := freshLwb(t)
	order := []State{Closed, Ready, Issued, WriteDone, FlushDone}
	for _, next := range order {
		if !l.State().CanTransitionTo(next) {
			t.Fatalf("expected %s -> %s to be valid", l.State(), next)
		}
		if next == FlushDone {
			l.FlushDone(nil)
			continue
		}
		l.Transition(next)
	}
	if l.State() != FlushDone {
		t.Fatalf("final state = %s, want FLUSH_DONE", l.State())
	}
}

func TestTransitionFreesBufferOnWriteDone(t *testing.T) {
	l := freshLwb(t)
	l.Transition(Closed)
	l.Transition(Ready)
	l.Transition(Issued)
	l.Transition(WriteDone)
	if l.Buf != nil {
		t.Fatal("lwb buffer must be nil once WRITE_DONE (returned to the pool)")
	}
}

func TestInvalidTransitionPanicsUnderDebug(t *testing.T) {
	if !debug.Enabled() {
		t.Skip("debug assertions compiled out; build with -tags debug to exercise this")
	}
	l := freshLwb(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic skipping OPENED -> ISSUED")
		}
	}()
	l.Transition(Issued)
}

func TestCanAttachWaiterWindow(t *testing.T) {
	l := freshLwb(t)
	if !l.CanAttachWaiter() {
		t.Fatal("OPENED lwb must accept a waiter")
	}
	l.Transition(Closed)
	l.Transition(Ready)
	l.Transition(Issued)
	if !l.CanAttachWaiter() {
		t.Fatal("ISSUED lwb must still accept a waiter")
	}
	l.Transition(WriteDone)
	if l.CanAttachWaiter() {
		t.Fatal("WRITE_DONE lwb must no longer accept a waiter")
	}
}

func TestMergeVdevsInto(t *testing.T) {
	l := freshLwb(t)
	next := freshLwb(t)
	l.AddVdev(1)
	l.AddVdev(2)
	next.AddVdev(2)

	l.MergeVdevsInto(next)

	if len(l.VdevsSnapshot()) != 0 {
		t.Fatal("source lwb's vdev set must be cleared after merge")
	}
	got := next.VdevsSnapshot()
	seen := map[uint64]bool{}
	for _, v := range got {
		seen[v] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("merged vdev set = %v, want {1,2}", got)
	}
}

func TestFlushDoneInvokesWaitersAndItxs(t *testing.T) {
	l := freshLwb(t)
	l.Transition(Closed)
	l.Transition(Ready)
	l.Transition(Issued)
	l.Transition(WriteDone)

	GlobalWaiterPool().Init()
	defer GlobalWaiterPool().Fini()
	w := GlobalWaiterPool().Get()
	l.AttachWaiter(w)

	called := false
	it := &itx.Itx{Callback: func(*itx.Itx, bool) { called = true }}
	l.AttachItx(it)

	l.FlushDone(nil)

	if l.State() != FlushDone {
		t.Fatalf("state = %s, want FLUSH_DONE", l.State())
	}
	if !called {
		t.Fatal("itx callback must run on FlushDone")
	}
	if !w.Wait(0) {
		t.Fatal("waiter should already be done")
	}
	if w.Err() != nil {
		t.Fatalf("waiter err = %v, want nil", w.Err())
	}
}
