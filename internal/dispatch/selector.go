package dispatch

import (
	"time"

	"forkrun/internal/task"
)

// Fixed assigns the same action to every ordinal.
func Fixed(action task.Action) Selector {
	return func(int) task.TaskSpec {
		return task.TaskSpec{Action: action}
	}
}

// Cycle assigns actions by ordinal, wrapping around when there are more
// ordinals than actions.
func Cycle(actions []task.Action) Selector {
	if len(actions) == 0 {
		return Fixed(task.ActionSleep)
	}
	list := append([]task.Action(nil), actions...)
	return func(ordinal int) task.TaskSpec {
		return task.TaskSpec{Action: list[(ordinal-1)%len(list)]}
	}
}

// Command runs argv once per ordinal.
func Command(argv []string) Selector {
	list := append([]string(nil), argv...)
	return func(int) task.TaskSpec {
		return task.TaskSpec{Action: task.ActionExec, Command: append([]string(nil), list...)}
	}
}

// Bind returns a selector that completes every spec from base with the helper
// command table and the sleep duration.
func Bind(base Selector, helpers task.Helpers, sleep time.Duration) Selector {
	return func(ordinal int) task.TaskSpec {
		spec := helpers.Bind(base(ordinal))
		if spec.Action == task.ActionSleep && spec.Duration == 0 {
			spec.Duration = sleep
		}
		return spec
	}
}
