package lwb

import "sync"

// BufPool is the lwb buffer pool singleton, refcounted alongside
// WaiterPool. Buffers are bucketed by exact size since lwb sizes are
// drawn from a small, predictor-bounded set rather than arbitrary
// lengths.
type BufPool struct {
	mu    sync.Mutex
	refs  int
	free  map[int][][]byte
}

var globalBufPool = &BufPool{}

func (p *BufPool) Init() {
	p.mu.Lock()
	p.refs++
	if p.free == nil {
		p.free = make(map[int][][]byte)
	}
	p.mu.Unlock()
}

func (p *BufPool) Fini() {
	p.mu.Lock()
	p.refs--
	if p.refs <= 0 {
		p.free = nil
		p.refs = 0
	}
	p.mu.Unlock()
}

func (p *BufPool) Get(size int) []byte {
	p.mu.Lock()
	bucket := p.free[size]
	if len(bucket) == 0 {
		p.mu.Unlock()
		return make([]byte, size)
	}
	buf := bucket[len(bucket)-1]
	p.free[size] = bucket[:len(bucket)-1]
	p.mu.Unlock()
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

func (p *BufPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	if p.free != nil {
		p.free[len(buf)] = append(p.free[len(buf)], buf)
	}
	p.mu.Unlock()
}

// GlobalBufPool returns the process-wide lwb buffer pool singleton.
func GlobalBufPool() *BufPool { return globalBufPool }
