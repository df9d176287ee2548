package zil

import (
	"testing"
)

func TestSuspendReplayNeededErrors(t *testing.T) {
	z, _, _ := setupZilog(t)
	if err := z.Suspend(true, false, false); err == nil {
		t.Fatal("Suspend must refuse a dataset that still needs replay")
	}
}

func TestSuspendOnEmptyChainIsCounterOnly(t *testing.T) {
	z, _, _ := setupZilog(t)
	if err := z.Suspend(false, false, false); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if !z.Suspended() {
		t.Fatal("Suspend must mark the zilog suspended even on an empty chain")
	}
}

func TestSuspendEncryptedWithoutKeyErrors(t *testing.T) {
	z, _, _ := setupZilog(t)
	// give it a non-hole chain so Suspend doesn't take the early,
	// noChain-counter-only exit before reaching the key check.
	z.header.Log.Len = 1
	if err := z.Suspend(false, true, false); err == nil {
		t.Fatal("Suspend must refuse an encrypted, not-yet-key-bound dataset")
	}
}

func TestResumeDecrementsCounter(t *testing.T) {
	z, _, _ := setupZilog(t)
	_ = z.Suspend(false, false, false)
	if !z.Suspended() {
		t.Fatal("expected Suspended() after Suspend")
	}
	z.Resume()
	if z.Suspended() {
		t.Fatal("expected Suspended()==false after matching Resume")
	}
}
