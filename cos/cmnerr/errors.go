// Package cmnerr defines this module's error taxonomy: one sentinel
// (or constructor) per class so callers can branch on errors.Is/
// errors.As instead of string matching. Built on github.com/pkg/errors
// for stack-traced wrapping at the I/O boundaries (allocation failure,
// checksum mismatch, suspend races) where the original call site
// matters for diagnosis.
package cmnerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrChainEnd is returned by the parser/claim/replay machinery when a
// block fails its checksum or the chain simply stops; this is the
// expected end-of-chain signal, not a failure.
var ErrChainEnd = errors.New("zil: checksum mismatch or end of chain")

// ErrSuspended names the suspended state of a zilog. Commit does not
// return it: while the zilog is suspended, Commit falls back to
// txg.Manager.WaitSynced and returns nil.
var ErrSuspended = errors.New("zil: log is suspended")

// ErrReplayNeeded is EBUSY-equivalent: suspend refuses while a replay
// is still pending.
var ErrReplayNeeded = errors.New("zil: replay still needed")

// ErrKeyUnavailable is EACCES-equivalent: suspend of an encrypted
// dataset needs a key binding that isn't mapped yet.
var ErrKeyUnavailable = errors.New("zil: encryption key unavailable")

// ErrUnknownRecord aborts replay of one dataset without destroying its
// chain.
var ErrUnknownRecord = errors.New("zil: unknown or invalid record type")

// ErrTargetGone is returned by a replay_table entry when the record's
// target object no longer exists; out-of-order txtypes swallow this
// instead of aborting replay.
var ErrTargetGone = errors.New("zil: replay target object no longer exists")

// AllocFailed wraps an allocator error observed while closing an lwb,
// preserving the call site via pkg/errors so stall-path diagnosis
// doesn't need to reproduce the race.
func AllocFailed(cause error) error {
	return pkgerrors.Wrap(cause, "zil: log block allocation failed")
}

// IOFailed wraps a write/flush I/O error surfaced up the root I/O
// chain to a waiter.
func IOFailed(op string, cause error) error {
	return pkgerrors.Wrapf(cause, "zil: %s failed", op)
}

// NewErrUsePrev builds a "run already in flight, reuse it" error.
// Nothing in this module returns it: concurrent commit writers
// serialize on the zilog's issuerLock instead.
func NewErrUsePrev(who string) error {
	return fmt.Errorf("zil: %s already running, reuse previous", who)
}
