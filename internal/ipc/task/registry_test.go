package task_test

import (
	"testing"
	"time"

	"github.com/relaysys/portkern/internal/ipc/task"
	"go.uber.org/zap"
)

type fakeReaper struct {
	calls chan int64
}

func (f *fakeReaper) DeleteOwned(owner int64) int {
	f.calls <- owner
	return 3
}

func Test_Spawn_Returns_Distinct_Ids_With_Live_Context(t *testing.T) {
	t.Parallel()

	r := task.NewRegistry(zap.NewNop(), nil)
	id1, ctx1 := r.Spawn()
	id2, ctx2 := r.Spawn()

	if id1 == id2 {
		t.Fatalf("Spawn returned the same id twice: %d", id1)
	}
	if ctx1.Err() != nil || ctx2.Err() != nil {
		t.Fatal("freshly spawned task contexts must not be canceled")
	}
}

func Test_Context_Is_Canceled_On_Terminate(t *testing.T) {
	t.Parallel()

	r := task.NewRegistry(zap.NewNop(), nil)
	id, ctx := r.Spawn()

	r.Terminate(id)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("task context was not canceled by Terminate")
	}

	if _, ok := r.Context(id); ok {
		t.Fatal("Context still resolves a terminated task id")
	}
}

func Test_Terminate_Is_Idempotent(t *testing.T) {
	t.Parallel()

	r := task.NewRegistry(zap.NewNop(), nil)
	id, _ := r.Spawn()

	r.Terminate(id)
	r.Terminate(id) // must not panic
}

func Test_Terminate_Invokes_Reaper_With_Task_As_Owner(t *testing.T) {
	t.Parallel()

	reaper := &fakeReaper{calls: make(chan int64, 1)}
	r := task.NewRegistry(zap.NewNop(), reaper)
	id, _ := r.Spawn()

	r.Terminate(id)

	select {
	case got := <-reaper.calls:
		if got != id {
			t.Fatalf("DeleteOwned called with owner %d, want %d", got, id)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper was never invoked after Terminate")
	}
}

type blockingReaper struct {
	release chan struct{}
	calls   chan int64
}

func (b *blockingReaper) DeleteOwned(owner int64) int {
	b.calls <- owner
	<-b.release
	return 1
}

func Test_Terminated_Id_Is_Not_Reallocated_Before_Reaper_Completes(t *testing.T) {
	t.Parallel()

	reaper := &blockingReaper{release: make(chan struct{}), calls: make(chan int64, 1)}
	r := task.NewRegistry(zap.NewNop(), reaper)
	id, _ := r.Spawn()

	r.Terminate(id)

	select {
	case <-reaper.calls:
	case <-time.After(time.Second):
		t.Fatal("reaper was never invoked after Terminate")
	}

	// The reaper is still running (blocked on reaper.release): id must
	// still count as held, not returned to the pool. Exhaust every other
	// id in the allocator's [1, 32768] space; if id had already been
	// released early, this would leave one free slot and the final Spawn
	// below would silently succeed by reusing it instead of panicking on
	// a genuinely exhausted space.
	for i := 0; i < 32767; i++ {
		r.Spawn()
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Spawn succeeded with no ids free; the terminated id must have been released before its reaper finished")
			}
		}()
		r.Spawn()
	}()

	close(reaper.release)
}

func Test_Activity_Records_Spawn_And_Terminate(t *testing.T) {
	t.Parallel()

	r := task.NewRegistry(zap.NewNop(), nil)
	id, _ := r.Spawn()
	r.Terminate(id)

	events := r.Activity(id, 0)
	if len(events) < 2 {
		t.Fatalf("Activity: got %v, want at least [terminated spawned]", events)
	}
	// newest first
	if events[0] != "terminated" || events[len(events)-1] != "spawned" {
		t.Fatalf("Activity ordering: got %v", events)
	}
}
