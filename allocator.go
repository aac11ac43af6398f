package tcal

import "sync"

// Allocator is the explicit memory-discipline hook threaded through the
// backend construction and frame-decode paths. Go's garbage collector makes
// a manual allocator unnecessary for correctness, but every hot path here
// still accepts one so scratch decode buffers can be pooled instead of
// freshly allocated on every frame — the one place in this module where
// threading an explicit allocator earns its keep.
type Allocator interface {
	Alloc(n int) []byte
	Free([]byte)
}

type poolAllocator struct {
	pool sync.Pool
}

// NewPoolAllocator returns an Allocator backed by a sync.Pool of byte
// slices, reused across successive scratch-buffer requests.
func NewPoolAllocator() Allocator {
	return &poolAllocator{pool: sync.Pool{New: func() interface{} { return make([]byte, 0) }}}
}

func (p *poolAllocator) Alloc(n int) []byte {
	b := p.pool.Get().([]byte)
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

func (p *poolAllocator) Free(b []byte) {
	p.pool.Put(b[:0]) //nolint:staticcheck // intentional: retain capacity for reuse
}
