// Package task stands in for a kernel's task/process subsystem:
// current_task_id() and the process-teardown hook a kernel provides
// natively. Registry tracks live tasks with a
// map-plus-mutex-plus-idempotent-Start/Stop shape instead of supervised
// OS processes.
package task

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Reaper is satisfied by the port lifecycle manager. A task's termination
// eventually deletes all ports it owns; Registry is the trigger point for
// that, not the owner of the deletion logic.
type Reaper interface {
	DeleteOwned(owner int64) int
}

type entry struct {
	id     int64
	ctx    context.Context
	cancel context.CancelFunc
}

// Registry tracks live tasks and their cancellation contexts. Safe for
// concurrent use.
type Registry struct {
	log      *zap.Logger
	alloc    *PIDAllocator
	reaper   Reaper
	activity *ActivityLog

	mu    sync.RWMutex
	tasks map[int64]*entry // protected by mu
}

// NewRegistry constructs a task registry. reaper may be nil in tests that
// don't care about owner reclamation.
func NewRegistry(log *zap.Logger, reaper Reaper) *Registry {
	return &Registry{
		log:      log.Named("task-registry"),
		alloc:    NewPIDAllocator(32768),
		reaper:   reaper,
		activity: newActivityLog(),
		tasks:    make(map[int64]*entry),
	}
}

// Activity returns the most recent lifecycle events recorded for id,
// newest first.
func (r *Registry) Activity(id int64, n int) []string {
	return r.activity.get(id).recent(n)
}

// Spawn mints a fresh task id and returns a context that is canceled when
// the task terminates — the Go analog of a signal becoming deliverable to
// a blocked thread.
func (r *Registry) Spawn() (id int64, ctx context.Context) {
	id = r.alloc.Alloc()
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.tasks[id] = &entry{id: id, ctx: ctx, cancel: cancel}
	r.mu.Unlock()

	r.activity.get(id).append("spawned")
	r.log.Debug("task spawned", zap.Int64("task_id", id))
	return id, ctx
}

// Context returns the cancellation context for a live task.
func (r *Registry) Context(id int64) (context.Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return e.ctx, true
}

// Terminate ends a task: its context is canceled immediately (waking any
// operation blocked with the interruptible flag), owned ports are
// reclaimed via the registered Reaper, and only then is the id returned
// to the pool. Releasing the id before the reap completes would let a
// concurrent Spawn reuse it and create ports under it before the stale
// reap runs, which would delete that new, unrelated task's ports — so
// the id stays retired until DeleteOwned has actually finished.
//
// Idempotent: terminating an unknown or already-terminated id is a no-op.
func (r *Registry) Terminate(id int64) {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.tasks, id)
	r.mu.Unlock()

	e.cancel()
	r.activity.get(id).append("terminated")

	log := r.log.With(zap.Int64("task_id", id))
	log.Info("task terminated")

	if r.reaper == nil {
		r.alloc.Release(id)
		return
	}
	go func() {
		n := r.reaper.DeleteOwned(id)
		if n > 0 {
			r.activity.get(id).append("owned ports reclaimed")
			log.Info("owned ports reclaimed", zap.Int("count", n))
		}
		r.alloc.Release(id)
	}()
}
