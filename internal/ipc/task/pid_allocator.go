package task

import (
	"fmt"
	"sync"
)

// PIDAllocator manages a monotonic, wrap-around task-id space. Behavior
// mirrors Linux: increment, wrap, skip in-use, lifted from processmgr's
// PID allocator and repurposed here to mint task identities rather than
// OS process ids.
type PIDAllocator struct {
	mu     sync.Mutex
	next   int64
	inUse  map[int64]struct{}
	pidMax int64
}

// NewPIDAllocator returns an allocator using a Linux-like id range [1, max].
// Starts at 1, mirroring default kernel behavior.
func NewPIDAllocator(max int64) *PIDAllocator {
	return &PIDAllocator{
		next:   1,
		pidMax: max,
		inUse:  make(map[int64]struct{}),
	}
}

// Alloc returns the next available id or panics if the space is exhausted.
func (a *PIDAllocator) Alloc() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.next

	for {
		p := a.next

		a.next++
		if a.next > a.pidMax {
			a.next = 1
		}

		if _, used := a.inUse[p]; used {
			goto cont
		}

		a.inUse[p] = struct{}{}
		return p

	cont:
		if a.next == start {
			panic(fmt.Sprintf("task.PIDAllocator exhausted: 1..%d fully allocated", a.pidMax))
		}
	}
}

// Release returns an id to the free pool. No-op on invalid or duplicate
// releases.
func (a *PIDAllocator) Release(pid int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, pid)
}
