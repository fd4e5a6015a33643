package port

import (
	"sync"

	"github.com/relaysys/portkern/internal/ipc/sem"
)

// slot is one entry of the port table: either Free (id == Invalid, every
// other field meaningless) or Live. The mutex here is a per-slot
// short-hold lock: it protects only the fields below during bounded
// critical sections and is never held across a semaphore acquire,
// allocation, or payload copy.
type slot struct {
	mu sync.Mutex

	id    ID
	owner int64
	name  string

	capacity int
	head     int
	tail     int

	totalCount uint64
	closed     bool

	readSem  *sem.Semaphore // counts available messages
	writeSem *sem.Semaphore // counts available queue slots

	queue []message
}

func newFreeSlot() *slot {
	return &slot{id: Invalid}
}

// info snapshots this slot's metadata under its lock. The queue-depth
// field is read from readSem's count, clamped at zero.
func (s *slot) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

// infoLocked requires s.mu to already be held.
func (s *slot) infoLocked() Info {
	qc := 0
	if s.readSem != nil {
		if c := s.readSem.Count(); c > 0 {
			qc = c
		}
	}
	return Info{
		ID:         s.id,
		Owner:      s.owner,
		Name:       s.name,
		Capacity:   s.capacity,
		QueueCount: qc,
		TotalCount: s.totalCount,
		Closed:     s.closed,
	}
}
