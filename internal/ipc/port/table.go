package port

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EventPublisher is the lifecycle introspection sink (internal/eventbus
// implements it against Redis; tests use a no-op). It must not block the
// caller meaningfully — publishers are expected to be fire-and-forget.
type EventPublisher interface {
	Publish(ctx context.Context, event string, info Info)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, Info) {}

// Table is the fixed-size, process-wide array of port slots plus the
// allocation/lookup/iteration machinery around them. The table lock (mu)
// guards only allocation, iteration, and name lookup. Slot locks may be
// taken while it is held, but it is never taken while a slot lock is
// held (lock order is table → slot, never the reverse).
type Table struct {
	log    *zap.Logger
	events EventPublisher

	mu     sync.Mutex // table lock
	slots  []*slot
	nextID int32
	active bool

	sf singleflight.Group // collapses concurrent duplicate Find lookups
}

// NewTable allocates a Table with CapacityPorts slots, all Free, and
// marks it active. The original fails fatally if wired memory cannot be
// obtained ("a system without a port table cannot continue"); the Go
// rendition of that is simply that slice allocation here cannot
// partially fail, so there is no failure path to report.
func NewTable(log *zap.Logger, events EventPublisher) *Table {
	if events == nil {
		events = noopPublisher{}
	}
	t := &Table{
		log:    log.Named("port-table"),
		events: events,
		slots:  make([]*slot, CapacityPorts),
	}
	for i := range t.slots {
		t.slots[i] = newFreeSlot()
	}
	t.active = true
	t.log.Info("port table initialized", zap.Int("capacity", CapacityPorts))
	return t
}

// checkActive is the first check of every public operation: every
// operation fails with NotActive until the table has finished
// initializing.
func (t *Table) checkActive() error {
	t.mu.Lock()
	active := t.active
	t.mu.Unlock()
	if !active {
		return ErrNotActive
	}
	return nil
}

// resolve maps an id to its slot and validates occupancy: slot = id mod
// CapacityPorts, then the caller must verify slot.id == id under the
// slot lock.
func (t *Table) resolve(id ID) (*slot, error) {
	if id < 0 {
		return nil, ErrInvalidHandle
	}
	s := t.slots[id.slotIndex()]
	s.mu.Lock()
	if s.id != id {
		s.mu.Unlock()
		return nil, ErrInvalidHandle
	}
	return s, nil // returned locked; caller must unlock
}

// allocate finds the first free slot under the table lock and mints a
// fresh id for it, congruent to the slot's index modulo CapacityPorts,
// strictly greater than any id previously assigned to that slot. The
// returned slot is locked; the caller publishes fields into it and
// releases.
func (t *Table) allocate() (*slot, ID, error) {
	t.mu.Lock()
	for i, s := range t.slots {
		s.mu.Lock()
		if s.id != Invalid {
			s.mu.Unlock()
			continue
		}

		cur := t.nextID
		slotOfCur := int(cur) % CapacityPorts
		if i >= slotOfCur {
			t.nextID += int32(i - slotOfCur)
		} else {
			t.nextID += int32(CapacityPorts - (slotOfCur - i))
		}
		id := ID(t.nextID)
		t.nextID++

		s.id = id
		t.mu.Unlock()
		return s, id, nil // still locked
	}
	t.mu.Unlock()
	return nil, Invalid, ErrOutOfSlots
}

// find looks up a port by exact, case-sensitive name match. Concurrent
// duplicate lookups for the same name are collapsed via
// singleflight, grounded on internal/service/channel_summary.go's use of
// golang.org/x/sync/singleflight for exactly this kind of read coalescing.
func (t *Table) find(name string) (ID, error) {
	v, err, _ := t.sf.Do("find:"+name, func() (any, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, s := range t.slots {
			s.mu.Lock()
			if s.id != Invalid && s.name == name {
				id := s.id
				s.mu.Unlock()
				return id, nil
			}
			s.mu.Unlock()
		}
		return Invalid, ErrInvalidHandle
	})
	if err != nil {
		return Invalid, err
	}
	return v.(ID), nil
}

// nextByOwner implements GetNextInfo's stateless iteration: scan forward
// from cursor, return the first Live slot owned by owner, and the cursor
// to resume from. Returns ErrNotFound when the scan exhausts the table.
func (t *Table) nextByOwner(owner int64, cursor uint32) (Info, uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := int(cursor); i < len(t.slots); i++ {
		s := t.slots[i]
		s.mu.Lock()
		if s.id != Invalid && s.owner == owner {
			info := s.infoLocked()
			s.mu.Unlock()
			return info, uint32(i + 1), nil
		}
		s.mu.Unlock()
	}
	return Info{}, cursor, ErrNotFound
}

// all returns a snapshot of every live port's info, for DebugDump and
// bulk reclamation scans.
func (t *Table) all() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Info, 0, len(t.slots))
	for _, s := range t.slots {
		s.mu.Lock()
		if s.id != Invalid {
			out = append(out, s.infoLocked())
		}
		s.mu.Unlock()
	}
	return out
}
