package dispatch

import (
	"context"
	"fmt"
	"time"

	"forkrun/internal/logger"
	"forkrun/internal/task"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Unit is one spawned process or thread.
type Unit interface {
	Ordinal() int
	ID() string
	Wait() error
}

// Substrate creates units on one concurrency primitive. Spawn must not block
// on the unit's work.
type Substrate interface {
	Mode() Mode
	Spawn(ctx context.Context, spec task.TaskSpec) (Unit, error)
}

// Selector builds the TaskSpec for an ordinal. Ordinal and RunID are filled in
// by the Dispatcher.
type Selector func(ordinal int) task.TaskSpec

// Observer is notified about unit lifecycle events. Calls may come from
// concurrent goroutines.
type Observer interface {
	UnitSpawned(mode Mode, ordinal int)
	UnitCompleted(mode Mode, ordinal int, err error)
	RunCompleted(summary Summary)
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Mode     Mode
	Spawned  int
	Duration time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches an observer to every run.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher runs units on a single substrate.
type Dispatcher struct {
	substrate Substrate
	observer  Observer
}

func New(substrate Substrate, opts ...Option) *Dispatcher {
	d := &Dispatcher{substrate: substrate}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run spawns count units and blocks until all of them have completed.
//
// A ResourceError is returned as soon as a unit cannot be created; units that
// were already running are not waited on in that case.
func (d *Dispatcher) Run(ctx context.Context, count int, selector Selector) (Summary, error) {
	if count <= 0 {
		return Summary{}, fmt.Errorf("%w: got %d", ErrNonPositiveCount, count)
	}
	if d.substrate == nil {
		return Summary{}, fmt.Errorf("dispatcher has no substrate")
	}
	if selector == nil {
		selector = Fixed(task.ActionSleep)
	}

	mode := d.substrate.Mode()
	summary := Summary{RunID: uuid.NewString(), Mode: mode}
	start := time.Now()
	logger.LogInfo(fmt.Sprintf("run %s: spawning %d units in %s mode", summary.RunID, count, mode))

	units := make([]Unit, 0, count)
	for ordinal := 1; ordinal <= count; ordinal++ {
		spec := selector(ordinal)
		spec.Ordinal = ordinal
		spec.RunID = summary.RunID

		unit, err := d.substrate.Spawn(ctx, spec)
		if err != nil {
			logger.LogError(fmt.Sprintf("run %s: spawn of unit %d failed: %v", summary.RunID, ordinal, err))
			return summary, &ResourceError{Mode: mode, Ordinal: ordinal, Err: err}
		}
		units = append(units, unit)
		summary.Spawned++
		logger.LogDebug(fmt.Sprintf("run %s: unit %d spawned as %s", summary.RunID, ordinal, unit.ID()))
		if d.observer != nil {
			d.observer.UnitSpawned(mode, ordinal)
		}
	}

	switch mode {
	case ProcessMode:
		d.reapAny(units)
	default:
		d.joinInOrder(units)
	}

	summary.Duration = time.Since(start)
	logger.LogInfo(fmt.Sprintf("run %s: all %d units completed in %s", summary.RunID, summary.Spawned, summary.Duration))
	if d.observer != nil {
		d.observer.RunCompleted(summary)
	}
	return summary, nil
}

// reapAny waits for every unit concurrently so they are collected in
// completion order. Unit errors never fail the run.
func (d *Dispatcher) reapAny(units []Unit) {
	var g errgroup.Group
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			d.completed(unit, unit.Wait())
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) joinInOrder(units []Unit) {
	for _, unit := range units {
		d.completed(unit, unit.Wait())
	}
}

func (d *Dispatcher) completed(unit Unit, err error) {
	if err != nil {
		logger.LogDebug(fmt.Sprintf("unit %d (%s) exited: %v", unit.Ordinal(), unit.ID(), err))
	} else {
		logger.LogDebug(fmt.Sprintf("unit %d (%s) exited cleanly", unit.Ordinal(), unit.ID()))
	}
	if d.observer != nil {
		d.observer.UnitCompleted(d.substrate.Mode(), unit.Ordinal(), err)
	}
}
