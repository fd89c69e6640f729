// Package pool provides reusable fixed-size byte buffers for file copies.
package pool

import (
	"fmt"
	"sync"
)

// BufferPool hands out byte slices of one fixed size.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of buffers of the given size in bytes.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		panic(fmt.Sprintf("buffer size must be positive, got %d", size))
	}
	bp := &BufferPool{size: size}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

// Size returns the length of the buffers handed out by Get.
func (bp *BufferPool) Size() int { return bp.size }

// Get returns a buffer of exactly Size bytes.
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers of a foreign capacity are dropped.
func (bp *BufferPool) Put(b *[]byte) {
	if b == nil || cap(*b) != bp.size {
		return
	}
	*b = (*b)[:bp.size]
	bp.pool.Put(b)
}
