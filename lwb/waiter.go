package lwb

import (
	"sync"
	"time"
)

// Waiter blocks a Commit caller until its data is durable: a condvar +
// mutex, a done flag, the lwb it's linked to (or nil), and the error
// observed by that lwb's write. Created when Commit is called, freed
// when Commit returns — pooled via WaiterPool rather than left to the
// garbage collector, so tests can assert on reuse.
type Waiter struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
	err  error
	Lwb  *Lwb

	skipped bool // marked done without ever attaching to an lwb
}

func newWaiter() *Waiter {
	w := &Waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *Waiter) reset() {
	w.mu.Lock()
	w.done = false
	w.err = nil
	w.Lwb = nil
	w.skipped = false
	w.mu.Unlock()
}

// Done marks the waiter complete and broadcasts — called exactly once,
// from Lwb.FlushDone or from Skip.
func (w *Waiter) Done(err error) {
	w.mu.Lock()
	w.done = true
	w.err = err
	w.mu.Unlock()
	w.cond.Broadcast()
}

// Skip marks the waiter done without attaching it to any lwb — used
// when the writer determines this commit needs no block of its own.
func (w *Waiter) Skip() {
	w.mu.Lock()
	w.done = true
	w.skipped = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

// Wait blocks until Done/Skip, or until timeout elapses (0 means
// block untimed). Returns whether it woke because of completion
// (false on timeout).
func (w *Waiter) Wait(timeout time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timeout <= 0 {
		for !w.done {
			w.cond.Wait()
		}
		return true
	}

	deadline := time.Now().Add(timeout)
	woke := make(chan struct{})
	go func() {
		w.mu.Lock()
		for !w.done {
			w.cond.Wait()
		}
		w.mu.Unlock()
		close(woke)
	}()

	for {
		w.mu.Unlock()
		select {
		case <-woke:
			w.mu.Lock()
			return true
		case <-time.After(time.Until(deadline)):
			w.mu.Lock()
			if w.done {
				return true
			}
			return false
		}
	}
}

func (w *Waiter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// WaiterPool is a refcounted waiter-pool singleton with an explicit
// Init/Fini lifecycle, so multiple zilogs sharing a process can pool
// waiters without any one of them tearing the pool down early.
type WaiterPool struct {
	mu   sync.Mutex
	free []*Waiter
	refs int
}

var globalWaiterPool = &WaiterPool{}

// Init increments the pool's reference count; no other state is
// created.
func (p *WaiterPool) Init() {
	p.mu.Lock()
	p.refs++
	p.mu.Unlock()
}

// Fini decrements the reference count; the pool's free list is
// dropped once it reaches zero.
func (p *WaiterPool) Fini() {
	p.mu.Lock()
	p.refs--
	if p.refs <= 0 {
		p.free = nil
		p.refs = 0
	}
	p.mu.Unlock()
}

func (p *WaiterPool) Get() *Waiter {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return newWaiter()
	}
	w := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	w.reset()
	return w
}

func (p *WaiterPool) Put(w *Waiter) {
	p.mu.Lock()
	p.free = append(p.free, w)
	p.mu.Unlock()
}

// GlobalWaiterPool returns the process-wide waiter pool singleton.
func GlobalWaiterPool() *WaiterPool { return globalWaiterPool }
