package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"forkrun/internal/task"
)

// threadHeadroom is kept free below the runtime thread limit for the
// scheduler, sysmon, cgo and blocking syscalls of the dispatcher itself.
const threadHeadroom = 256

// ErrThreadBudget is returned by ThreadSubstrate.Spawn once every thread in
// its budget is held by a live unit.
var ErrThreadBudget = errors.New("thread budget exhausted")

// Executor runs the action of one unit.
type Executor interface {
	Execute(ctx context.Context, spec task.TaskSpec)
}

// ThreadSubstrate runs every unit on its own OS thread inside this process.
type ThreadSubstrate struct {
	Executor Executor
	// Identify names the unit's thread. It runs on that thread.
	Identify func() string
	// MaxThreads caps the units alive at once. Zero derives the cap from the
	// runtime thread limit; a larger cap raises that limit.
	MaxThreads int

	budgetOnce sync.Once
	budget     int64
	live       atomic.Int64
}

func (t *ThreadSubstrate) Mode() Mode { return ThreadMode }

// Budget returns how many units may be alive at once.
func (t *ThreadSubstrate) Budget() int {
	t.budgetOnce.Do(func() {
		limit := debug.SetMaxThreads(math.MaxInt32)
		debug.SetMaxThreads(limit)
		if t.MaxThreads > 0 {
			if need := t.MaxThreads + threadHeadroom; need > limit {
				debug.SetMaxThreads(need)
			}
			t.budget = int64(t.MaxThreads)
			return
		}
		t.budget = int64(max(limit-threadHeadroom, 1))
	})
	return int(t.budget)
}

// Spawn starts a goroutine wired to a dedicated OS thread and returns once the
// thread is running. The goroutine never unlocks the thread, so the thread
// ends together with the unit.
func (t *ThreadSubstrate) Spawn(ctx context.Context, spec task.TaskSpec) (Unit, error) {
	if t.Executor == nil {
		return nil, errors.New("thread substrate has no executor")
	}
	budget := int64(t.Budget())
	if t.live.Add(1) > budget {
		t.live.Add(-1)
		return nil, fmt.Errorf("%w: %d threads in use", ErrThreadBudget, budget)
	}
	identify := t.Identify
	if identify == nil {
		identify = task.ThreadIdentity
	}

	u := &threadUnit{ordinal: spec.Ordinal, done: make(chan struct{})}
	started := make(chan string, 1)
	go func() {
		runtime.LockOSThread()
		defer close(u.done)
		defer t.live.Add(-1)
		started <- identify()
		t.Executor.Execute(ctx, spec)
	}()
	u.id = <-started
	return u, nil
}

type threadUnit struct {
	ordinal int
	id      string
	done    chan struct{}
}

func (u *threadUnit) Ordinal() int { return u.ordinal }

func (u *threadUnit) ID() string { return u.id }

func (u *threadUnit) Wait() error {
	<-u.done
	return nil
}
