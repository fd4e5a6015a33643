package port

import (
	"context"
	"sync/atomic"

	"github.com/relaysys/portkern/internal/ipc/sem"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Create allocates a new port. On any failure all partially-allocated
// resources are released before returning.
func (t *Table) Create(ctx context.Context, queueDepth int, name string) (ID, error) {
	const op = "create"

	if err := t.checkActive(); err != nil {
		return Invalid, wrapErr(op, Invalid, err)
	}
	if queueDepth < 1 || queueDepth > MaxQueueDepth {
		return Invalid, wrapErr(op, Invalid, ErrInvalidArgs)
	}
	if len(name) >= MaxNameLen {
		name = name[:MaxNameLen-1]
	}
	if name == "" {
		name = "unnamed port"
	}

	readSem := sem.New(0, name)
	writeSem := sem.New(queueDepth, name)
	queue := make([]message, queueDepth)

	s, id, err := t.allocate()
	if err != nil {
		readSem.Destroy()
		writeSem.Destroy()
		return Invalid, wrapErr(op, Invalid, err)
	}

	owner := ownerFromContext(ctx)

	s.owner = owner
	s.name = name
	s.capacity = queueDepth
	s.head = 0
	s.tail = 0
	s.totalCount = 0
	s.closed = false
	s.readSem = readSem
	s.writeSem = writeSem
	s.queue = queue
	info := s.infoLocked()
	s.mu.Unlock()

	t.log.Info("port created", zap.Int32("port_id", int32(id)), zap.String("name", name), zap.Int("capacity", queueDepth))
	t.events.Publish(ctx, "port.created", info)

	return id, nil
}

// Close marks a port closed: further writes are rejected, reads continue
// to drain the queue. Idempotent.
func (t *Table) Close(ctx context.Context, id ID) error {
	const op = "close"

	if err := t.checkActive(); err != nil {
		return wrapErr(op, id, err)
	}
	s, err := t.resolve(id)
	if err != nil {
		return wrapErr(op, id, err)
	}
	s.closed = true
	info := s.infoLocked()
	s.mu.Unlock()

	t.log.Info("port closed", zap.Int32("port_id", int32(id)))
	t.events.Publish(ctx, "port.closed", info)
	return nil
}

// Delete atomically frees a slot, then drains and frees queued payloads
// and destroys both semaphores outside the lock, which wakes every
// blocked reader/writer with Deleted.
func (t *Table) Delete(ctx context.Context, id ID) error {
	const op = "delete"

	if err := t.checkActive(); err != nil {
		return wrapErr(op, id, err)
	}
	s, err := t.resolve(id)
	if err != nil {
		return wrapErr(op, id, err)
	}

	info := s.infoLocked()
	queue := s.queue
	readSem := s.readSem
	writeSem := s.writeSem

	s.id = Invalid
	s.name = ""
	s.queue = nil
	s.readSem = nil
	s.writeSem = nil
	s.mu.Unlock()

	for i := range queue {
		if queue[i].payload != nil {
			queue[i].payload.Free()
		}
	}

	// Destroying the semaphores is the wake-up mechanism: any task parked
	// on either one wakes with sem.Deleted, translated to ErrDeleted.
	readSem.Destroy()
	writeSem.Destroy()

	t.log.Info("port deleted", zap.Int32("port_id", int32(id)))
	t.events.Publish(ctx, "port.deleted", info)
	return nil
}

// Find looks up a port by exact name match.
func (t *Table) Find(name string) (ID, error) {
	if err := t.checkActive(); err != nil {
		return Invalid, wrapErr("find", Invalid, err)
	}
	id, err := t.find(name)
	if err != nil {
		return Invalid, wrapErr("find", Invalid, err)
	}
	return id, nil
}

// GetInfo returns a metadata snapshot for id.
func (t *Table) GetInfo(id ID) (Info, error) {
	if err := t.checkActive(); err != nil {
		return Info{}, wrapErr("get_info", id, err)
	}
	s, err := t.resolve(id)
	if err != nil {
		return Info{}, wrapErr("get_info", id, err)
	}
	defer s.mu.Unlock()
	return s.infoLocked(), nil
}

// GetNextInfo implements stateless get-next-by-owner iteration: scan
// forward from an opaque cursor and return the next live port owned by
// owner.
func (t *Table) GetNextInfo(owner int64, cursor uint32) (Info, uint32, error) {
	if err := t.checkActive(); err != nil {
		return Info{}, cursor, wrapErr("get_next_info", Invalid, err)
	}
	info, next, err := t.nextByOwner(owner, cursor)
	if err != nil {
		return Info{}, cursor, wrapErr("get_next_info", Invalid, err)
	}
	return info, next, nil
}

// SetOwner reassigns a port's owner.
func (t *Table) SetOwner(id ID, owner int64) error {
	const op = "set_owner"

	if err := t.checkActive(); err != nil {
		return wrapErr(op, id, err)
	}
	s, err := t.resolve(id)
	if err != nil {
		return wrapErr(op, id, err)
	}
	s.owner = owner
	info := s.infoLocked()
	s.mu.Unlock()

	t.events.Publish(context.Background(), "port.owner_changed", info)
	return nil
}

// DeleteOwned reclaims every live port owned by owner and returns the
// count actually deleted.
//
// Dropping the table lock around each individual Delete is required
// because Delete itself takes the slot lock and performs unbounded
// freeing work; this implementation goes one step further and fans the
// deletes out across a small bounded worker group (grounded on
// giantswarm-k8senv's use of golang.org/x/sync/errgroup), since each
// port's deletion is independent of every other's. No-silent-caps: every
// candidate found is attempted, and the returned count reflects exactly
// how many succeeded.
func (t *Table) DeleteOwned(owner int64) int {
	if err := t.checkActive(); err != nil {
		return 0
	}

	var ids []ID
	for _, info := range t.all() {
		if info.Owner == owner {
			ids = append(ids, info.ID)
		}
	}
	if len(ids) == 0 {
		return 0
	}

	var (
		g       errgroup.Group
		deleted atomic.Int32
	)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			if err := t.Delete(context.Background(), id); err == nil {
				deleted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(deleted.Load())
}

// ownerFromContext extracts the owner task id the caller attached with
// WithOwner (the HTTP Create handler does so from the request's owner
// field). Falls back to 0 ("no owner") for calls that don't carry one.
func ownerFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ownerCtxKey{}).(int64); ok {
		return v
	}
	return 0
}

type ownerCtxKey struct{}

// WithOwner attaches a task id to ctx so a subsequent Create call
// attributes ownership correctly.
func WithOwner(ctx context.Context, owner int64) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, owner)
}
