// Package native is the boundary layer between the host and plugins built
// as separate binaries. Data crossing the boundary travels in host-owned
// buffers with an explicit release step, and the host installs its callback
// table into each plugin exactly once. The types here make the ownership
// rules unskippable: a buffer yields its bytes once and is freed in the same
// motion, so use-after-free has no code path.
package native

import (
	"errors"
	"sync"
)

// Buffer errors.
var (
	// ErrBufferConsumed is returned when Take is called on a buffer that
	// already gave up its bytes.
	ErrBufferConsumed = errors.New("native: buffer already consumed")
)

// HostBuffer is a chunk of host-owned memory handed across the bridge. The
// receiver claims the contents with Take, which copies the bytes out and
// releases the host allocation in one step. A HostBuffer is safe for
// concurrent use, though only one caller gets the bytes.
type HostBuffer struct {
	mu    sync.Mutex
	data  []byte
	free  func([]byte)
	taken bool
}

// NewHostBuffer wraps host-owned bytes. free, if non-nil, is invoked exactly
// once when the buffer is consumed or released.
func NewHostBuffer(data []byte, free func([]byte)) *HostBuffer {
	return &HostBuffer{data: data, free: free}
}

// Take returns a copy of the buffer's contents and releases the host
// allocation. The second and later calls return ErrBufferConsumed.
func (b *HostBuffer) Take() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.taken {
		return nil, ErrBufferConsumed
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.release()
	return out, nil
}

// Release frees the host allocation without reading it, for callers that
// decide not to use a buffer they were handed. Releasing a consumed or
// already-released buffer is a no-op.
func (b *HostBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.taken {
		b.release()
	}
}

// release marks the buffer consumed and frees it. Caller holds the lock.
func (b *HostBuffer) release() {
	b.taken = true
	if b.free != nil {
		b.free(b.data)
		b.free = nil
	}
	b.data = nil
}

// Len reports the byte count still held, zero once consumed.
func (b *HostBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Consumed reports whether the buffer has been taken or released.
func (b *HostBuffer) Consumed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.taken
}
