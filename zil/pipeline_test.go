package zil

import (
	"testing"
	"time"
)

// TestAllocFailureStallsAndPropagatesError exercises the allocation-
// failure fallback of writerStall: when Engine.Alloc fails mid-pipeline,
// Commit must return the wrapped error, and the stall itself must
// release once the open txg syncs rather than hang forever.
func TestAllocFailureStallsAndPropagatesError(t *testing.T) {
	z, engine, sim := setupZilog(t)
	engine.FailAllocAfter(1)
	assignData(z, 1)

	done := make(chan error, 1)
	go func() { done <- z.Commit(1) }()

	time.Sleep(20 * time.Millisecond)
	sim.AdvanceSync()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Commit should surface the allocation failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Commit did not return after its txg synced past the stall")
	}

	if z.Snap().AllocFailures == 0 {
		t.Fatal("allocation failure should be counted in stats")
	}
}
