package matrix

import (
	"sync"
	"sync/atomic"
)

// Matrix arrays model buffers handed over by a numeric library with its own
// allocator: they are not region memory, and only the matrix teardown frees
// them.

const pooledBufferCap = 256

var uint64sPool = &sync.Pool{
	New: func() any {
		b := make([]uint64, 0, pooledBufferCap)
		return &b
	},
}

var liveBuffers atomic.Int64

// LiveBuffers returns the number of matrix arrays allocated and not yet freed.
func LiveBuffers() int64 {
	return liveBuffers.Load()
}

func allocUint64s(n int) []uint64 {
	if n == 0 {
		return nil
	}
	liveBuffers.Add(1)
	if n <= pooledBufferCap {
		p := uint64sPool.Get().(*[]uint64)
		b := (*p)[:n]
		clear(b)
		return b
	}
	return make([]uint64, n)
}

func freeUint64s(b []uint64) {
	if b == nil {
		return
	}
	liveBuffers.Add(-1)
	if cap(b) == pooledBufferCap {
		clear(b[:cap(b)])
		b = b[:0]
		uint64sPool.Put(&b)
	}
}
