package oracle

import (
	"sync"
)

// BufferPool provides tiered pools of byte buffers for column output and
// LONG fetches. Reusing these buffers keeps repeated query execution from
// allocating per statement.
type BufferPool struct {
	small  sync.Pool // <= 256 bytes
	medium sync.Pool // <= 4 KiB
	large  sync.Pool // <= 64 KiB
}

const (
	smallBufferSize  = 256
	mediumBufferSize = 4 * 1024
	largeBufferSize  = 64 * 1024
)

var globalBufferPool = NewBufferPool()

// NewBufferPool creates a buffer pool with the standard size tiers.
func NewBufferPool() *BufferPool {
	p := &BufferPool{}
	p.small.New = func() any { return make([]byte, smallBufferSize) }
	p.medium.New = func() any { return make([]byte, mediumBufferSize) }
	p.large.New = func() any { return make([]byte, largeBufferSize) }
	return p
}

// Get returns a zeroed buffer of exactly size bytes, backed by a pooled
// allocation when one of the tiers fits.
func (p *BufferPool) Get(size int) []byte {
	if size <= 0 {
		size = 1
	}
	var buf []byte
	switch {
	case size <= smallBufferSize:
		buf = p.small.Get().([]byte)
	case size <= mediumBufferSize:
		buf = p.medium.Get().([]byte)
	case size <= largeBufferSize:
		buf = p.large.Get().([]byte)
	default:
		return make([]byte, size)
	}
	buf = buf[:size]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Put returns a buffer to its tier. Oversized buffers are dropped.
func (p *BufferPool) Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch {
	case c == smallBufferSize:
		p.small.Put(buf)
	case c == mediumBufferSize:
		p.medium.Put(buf)
	case c == largeBufferSize:
		p.large.Put(buf)
	}
}
