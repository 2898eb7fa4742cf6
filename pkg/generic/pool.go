package generic

import "sync"

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewResetPool returns a pool that passes every value through reset before
// it is stored again.
func NewResetPool[T any](generate func() T, reset func(T) T) *Pool[T] {
	p := NewPool(generate)
	p.reset = reset
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		value = p.reset(value)
	}
	p.pool.Put(value)
}

// BufferPool hands out byte buffers of a fixed size. Pointers are pooled so
// Put does not allocate.
type BufferPool struct {
	size int
	pool *Pool[*[]byte]
}

func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: NewPool(func() *[]byte {
			buf := make([]byte, size)
			return &buf
		}),
	}
}

func (b *BufferPool) Get() *[]byte { return b.pool.Get() }

// Put returns buf to the pool. Buffers of another size are dropped.
func (b *BufferPool) Put(buf *[]byte) {
	if buf == nil || len(*buf) != b.size {
		return
	}
	b.pool.Put(buf)
}

func (b *BufferPool) Size() int { return b.size }
