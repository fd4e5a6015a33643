// Package sem implements the counting-semaphore collaborator the port
// subsystem blocks on. It mirrors the ownership bookkeeping shape of
// processmgr's slotPool (sync.Mutex + sync.Cond) but adds the two
// behaviors a kernel semaphore needs that slotPool never did: an acquire
// that can time out or be interrupted, and a destroy that wakes every
// parked waiter instead of panicking on them.
package sem

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of an Acquire call.
type Result int

const (
	// OK means a token was acquired.
	OK Result = iota
	// Deleted means the semaphore was destroyed while the caller waited
	// (or was already destroyed when the caller arrived).
	Deleted
	// TimedOut means the caller's timeout (possibly zero) elapsed before
	// a token became available.
	TimedOut
	// Interrupted means the caller's context was canceled for a reason
	// other than its deadline while waiting.
	Interrupted
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Deleted:
		return "deleted"
	case TimedOut:
		return "timed_out"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Semaphore is a counting semaphore with a name (carried purely for
// diagnostics, as in the original's sem_create_etc) and an explicit
// destroyed state that wakes every waiter.
type Semaphore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	name    string
	count   int
	deleted bool
}

// New creates a semaphore with the given initial token count.
func New(initial int, name string) *Semaphore {
	s := &Semaphore{name: name, count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Acquire removes n tokens, blocking until they are available, ctx is
// done, or the semaphore is destroyed.
//
// A ctx with no deadline and no cancellation blocks indefinitely (modulo
// destroy). A ctx already past its deadline when Acquire is called behaves
// as a non-blocking probe: it returns TimedOut immediately if tokens are
// unavailable, exactly as a zero-timeout acquire does in the original.
func (s *Semaphore) Acquire(ctx context.Context, n int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if probe(ctx) {
		switch {
		case s.deleted:
			return Deleted
		case s.count >= n:
			s.count -= n
			return OK
		default:
			return TimedOut
		}
	}

	// A watcher goroutine turns ctx cancellation into a Cond.Broadcast so
	// the wait loop below can notice it without holding the lock while
	// blocked on ctx.Done(). This is release-before-block discipline
	// translated into goroutine terms: no lock is held across the actual
	// suspension.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-watchDone:
		}
	}()

	for {
		if s.deleted {
			return Deleted
		}
		if s.count >= n {
			s.count -= n
			return OK
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return TimedOut
			}
			return Interrupted
		default:
		}
		s.cond.Wait()
	}
}

// probe reports whether ctx's deadline has already elapsed, meaning the
// caller wants a non-blocking check rather than a real wait.
func probe(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && !deadline.After(time.Now())
}

// Release returns n tokens and wakes any waiters that can now proceed.
func (s *Semaphore) Release(n int) {
	s.mu.Lock()
	s.count += n
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Count returns the current token count. Never negative: a semaphore in
// this implementation cannot go below zero, unlike the original where a
// transient negative count was possible with parked waiters; callers that
// want the original's "clamp at zero when exposing" behavior get it for
// free.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Destroy marks the semaphore deleted and wakes every waiter, which will
// observe Deleted on their next wake. Idempotent.
func (s *Semaphore) Destroy() {
	s.mu.Lock()
	s.deleted = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
