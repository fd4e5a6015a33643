package port

import (
	"context"
	"time"

	"github.com/relaysys/portkern/internal/ipc/payload"
	"go.uber.org/zap"
)

// callCtx turns the caller's (flags, timeout) pair into a context.Context
// suitable for sem.Semaphore.Acquire: FlagTimeout bounds the wait (zero
// duration becomes a non-blocking probe via an already-elapsed deadline),
// and FlagInterruptible merges in the caller's own cancellation signal so
// a terminated task's blocked operations wake promptly instead of
// outliving the task that issued them.
//
// When FlagInterruptible is unset, parent's cancellation is stripped
// first via context.WithoutCancel: a child context's Done() fires
// whenever its parent's does regardless of which constructor built it,
// so without this a "non-interruptible" wait would still be woken by an
// unrelated cancellation of parent (e.g. an HTTP client disconnect) —
// exactly what not setting the flag is supposed to prevent.
func callCtx(parent context.Context, flags Flags, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if flags&FlagInterruptible == 0 {
		parent = context.WithoutCancel(parent)
	}
	if flags&FlagTimeout != 0 {
		return context.WithTimeout(parent, timeout)
	}
	if flags&FlagInterruptible != 0 {
		return context.WithCancel(parent)
	}
	return parent, func() {}
}

// Write validates the request, snapshots the write-side semaphore under
// the slot lock, releases the lock, blocks on the semaphore, copies the
// payload in, then re-acquires the lock to publish into the ring and
// hand off via the read semaphore.
func (t *Table) Write(ctx context.Context, id ID, code int32, data []byte, flags Flags, timeout time.Duration) error {
	const op = "write"

	if err := t.checkActive(); err != nil {
		return wrapErr(op, id, err)
	}
	if len(data) > MaxMessageBytes {
		return wrapErr(op, id, ErrInvalidArgs)
	}

	s, err := t.resolve(id)
	if err != nil {
		return wrapErr(op, id, err)
	}
	if s.closed {
		s.mu.Unlock()
		return wrapErr(op, id, ErrClosed)
	}
	writeSem := s.writeSem
	s.mu.Unlock() // release before block: never hold a slot lock across a suspension

	acqCtx, cancel := callCtx(ctx, flags, timeout)
	defer cancel()
	res := writeSem.Acquire(acqCtx, 1)
	if err := translateSemResult(res); err != nil {
		return wrapErr(op, id, err)
	}

	var buf *payload.Buffer
	if len(data) > 0 {
		buf = payload.New(len(data))
		buf.CopyIn(data, flags&FlagUseUserMemcpy != 0)
		// A real copy-in can fail (bad user pointer, page fault). This
		// in-process implementation cannot fail here, so the token is
		// never stranded in practice — but the non-return-of-token
		// behavior on failure is kept as the intentional fallback should
		// CopyIn ever gain a fallible path.
	}

	s.mu.Lock()
	if s.id != id {
		// The slot was recycled after we acquired the write token: the
		// token came from the deleted port's semaphore, not from the
		// one now occupying this slot. ID monotonicity only mitigates, not
		// eliminates, this race. We do not touch the new occupant's
		// ring; we simply report the deletion we missed.
		s.mu.Unlock()
		t.logSlot(op, id).Debug("slot recycled while blocked on write token")
		if buf != nil {
			buf.Free()
		}
		return wrapErr(op, id, ErrDeleted)
	}

	h := s.head
	if h < 0 || h >= s.capacity {
		panic("port: head out of bounds")
	}
	s.queue[h] = message{code: code, payload: buf, len: len(data)}
	s.head = (s.head + 1) % s.capacity
	s.totalCount++
	readSem := s.readSem
	s.mu.Unlock()

	readSem.Release(1) // may wake and reschedule a reader
	return nil
}

// Read blocks until a message is available, then dequeues and returns it.
func (t *Table) Read(ctx context.Context, id ID, bufSize int, flags Flags, timeout time.Duration) (code int32, data []byte, err error) {
	const op = "read"

	if err := t.checkActive(); err != nil {
		return 0, nil, wrapErr(op, id, err)
	}

	s, err := t.resolve(id)
	if err != nil {
		return 0, nil, wrapErr(op, id, err)
	}
	readSem := s.readSem
	s.mu.Unlock()

	acqCtx, cancel := callCtx(ctx, flags, timeout)
	defer cancel()
	res := readSem.Acquire(acqCtx, 1)
	if e := translateSemResult(res); e != nil {
		return 0, nil, wrapErr(op, id, e)
	}

	s.mu.Lock()
	if s.id != id {
		// Slot recycled while blocked acquiring the read token; see the
		// matching check in Write.
		s.mu.Unlock()
		t.logSlot(op, id).Debug("slot recycled while blocked on read token")
		return 0, nil, wrapErr(op, id, ErrDeleted)
	}

	tl := s.tail
	if tl < 0 || tl >= s.capacity {
		panic("port: tail out of bounds")
	}
	msg := s.queue[tl]
	s.tail = (s.tail + 1) % s.capacity
	s.queue[tl].payload = nil
	writeSem := s.writeSem
	s.mu.Unlock()

	out := make([]byte, min(bufSize, msg.len))
	n := 0
	if msg.payload != nil {
		n = msg.payload.CopyOut(out, flags&FlagUseUserMemcpy != 0)
		msg.payload.Free()
	}

	writeSem.Release(1) // admits a blocked writer
	return msg.code, out[:n], nil
}

// BufferSize is the peek side of Read: learn the next readable message's
// length without consuming it.
//
// Design decision: the original reads msg_queue[head].len, which on a
// non-empty queue is the most-recently written message, not the next one
// a reader will see — an apparent bug this implementation does not carry
// forward unexamined. This implementation peeks msg_queue[tail].len,
// i.e. the length of the next message a Read on this port will actually
// return, which matches the documented intent ("length of item at the
// end of the queue" read as "next out"). As in the original, this is
// racy under concurrent readers; the contract is that the result is only
// meaningful if the same caller immediately performs the matching Read.
func (t *Table) BufferSize(ctx context.Context, id ID, flags Flags, timeout time.Duration) (int, error) {
	const op = "buffer_size"

	if err := t.checkActive(); err != nil {
		return 0, wrapErr(op, id, err)
	}

	s, err := t.resolve(id)
	if err != nil {
		return 0, wrapErr(op, id, err)
	}
	readSem := s.readSem
	s.mu.Unlock()

	acqCtx, cancel := callCtx(ctx, flags, timeout)
	defer cancel()
	res := readSem.Acquire(acqCtx, 1)
	if e := translateSemResult(res); e != nil {
		return 0, wrapErr(op, id, e)
	}

	s.mu.Lock()
	if s.id != id {
		s.mu.Unlock()
		readSem.Release(1)
		return 0, wrapErr(op, id, ErrDeleted)
	}
	tl := s.tail
	length := s.queue[tl].len
	s.mu.Unlock()

	readSem.Release(1) // restore the token; this was a peek, not a consume
	return length, nil
}

// Count returns the number of currently queued messages, clamped at zero.
func (t *Table) Count(id ID) (int, error) {
	const op = "count"

	if err := t.checkActive(); err != nil {
		return 0, wrapErr(op, id, err)
	}
	s, err := t.resolve(id)
	if err != nil {
		return 0, wrapErr(op, id, err)
	}
	defer s.mu.Unlock()

	c := s.readSem.Count()
	if c < 0 {
		c = 0
	}
	return c, nil
}

func (t *Table) logSlot(op string, id ID) *zap.Logger {
	return t.log.With(zap.String("op", op), zap.Int32("port_id", int32(id)))
}
