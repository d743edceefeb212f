package internal

import (
	"bytes"
	"sync"
)

// BufferPool recycles bytes.Buffer values used to assemble outgoing frames.
type BufferPool struct {
	pool    sync.Pool
	maxSize int
}

// NewBufferPool returns a pool of buffers preallocated to initialSize bytes.
// Buffers that grew beyond maxSize are dropped instead of being recycled;
// a maxSize <= 0 keeps every buffer.
func NewBufferPool(initialSize, maxSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
		maxSize: maxSize,
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *BufferPool) Put(buf *bytes.Buffer) {
	if p.maxSize > 0 && buf.Cap() > p.maxSize {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
