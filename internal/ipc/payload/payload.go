// Package payload stands in for the chained-buffer store the original
// kernel used (variable-length byte containers with copy-in/copy-out
// helpers selecting between kernel and user address spaces). Go has no
// such distinction, so a payload is just an owned []byte; the copy-in/
// copy-out vocabulary is kept because it is the right shape for the
// queue engine's write/read protocols and for documenting where a real
// user/kernel boundary check would go on a platform that has one.
package payload

import "sync"

// MaxBytes mirrors spec.md's MAX_MESSAGE_BYTES.
const MaxBytes = 65536

// pools buckets []byte allocations by size class to take pressure off the
// allocator for the common small-message case, the same "one pool per
// bounded resource" idiom processmgr uses for its fixed log buffers.
var pools sync.Map // map[int]*sync.Pool

func poolFor(size int) *sync.Pool {
	if v, ok := pools.Load(size); ok {
		return v.(*sync.Pool)
	}
	p := &sync.Pool{New: func() any { return make([]byte, size) }}
	actual, _ := pools.LoadOrStore(size, p)
	return actual.(*sync.Pool)
}

// Buffer is an owned, fixed-length payload. Exactly one owner holds it at
// a time: the producer while copying in, the queue slot while pending,
// the consumer while copying out, or the destruction path during delete.
// There is no sharing.
type Buffer struct {
	data []byte
	size int
}

// New allocates a buffer of exactly n bytes. n == 0 yields a valid,
// zero-length buffer for the "absent payload" case.
func New(n int) *Buffer {
	if n == 0 {
		return &Buffer{}
	}
	buf := poolFor(n).Get().([]byte)
	return &Buffer{data: buf, size: n}
}

// Len reports the payload length.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.size
}

// CopyIn copies src into the buffer, truncating at the buffer's length.
// The useUserMemcpy flag has no effect on a platform without a separate
// user address space; it is kept so callers can express "this came from
// a syscall boundary" without the queue engine caring how the copy is
// actually performed.
func (b *Buffer) CopyIn(src []byte, useUserMemcpy bool) {
	if b == nil || b.size == 0 {
		return
	}
	n := copy(b.data[:b.size], src)
	_ = n
}

// CopyOut copies up to len(dst) bytes of the buffer into dst and returns
// the number of bytes copied.
func (b *Buffer) CopyOut(dst []byte, useUserMemcpy bool) int {
	if b == nil || b.size == 0 {
		return 0
	}
	return copy(dst, b.data[:b.size])
}

// Free releases the buffer back to its size-class pool. Freeing twice or
// freeing nil is a no-op; the caller is responsible for not holding a
// reference after Free, same as cbuf_free_chain in the original.
func (b *Buffer) Free() {
	if b == nil || b.size == 0 || b.data == nil {
		return
	}
	poolFor(b.size).Put(b.data) //nolint:staticcheck // intentional pool reuse
	b.data = nil
}
