package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"forkrun/internal/logger"
)

const commandPreviewLimit = 120

// Executor performs the action described by a TaskSpec inside the unit that
// owns it. One Executor may be shared by concurrent units.
type Executor struct {
	Out      io.Writer
	Runner   CommandRunner
	Sleep    time.Duration
	Identify func() string

	outMu sync.Mutex
}

// NewExecutor returns an executor writing notifications to out.
func NewExecutor(out io.Writer, runner CommandRunner) *Executor {
	return &Executor{Out: out, Runner: runner}
}

// ProcessIdentity names the calling process.
func ProcessIdentity() string {
	return fmt.Sprintf("pid %d", os.Getpid())
}

// Execute runs spec and returns once the action is done. Helper and command
// failures are logged and otherwise ignored.
func (e *Executor) Execute(ctx context.Context, spec TaskSpec) {
	switch spec.Action {
	case ActionSleep:
		e.notify(spec, "started")
		time.Sleep(e.duration(spec))
		e.notify(spec, "finished")
	case ActionGenerateTests, ActionGenerateDeploy, ActionExec:
		if len(spec.Command) == 0 {
			e.notify(spec, fmt.Sprintf("has no command configured for action %q", spec.Action))
			return
		}
		e.notify(spec, "started")
		e.runCommand(ctx, spec)
		e.notify(spec, "finished")
	default:
		e.notify(spec, "unknown action, nothing to do")
	}
}

func (e *Executor) duration(spec TaskSpec) time.Duration {
	if spec.Duration > 0 {
		return spec.Duration
	}
	if e.Sleep > 0 {
		return e.Sleep
	}
	return DefaultSleep
}

func (e *Executor) runCommand(ctx context.Context, spec TaskSpec) {
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	preview := commandPreview(spec.Command, commandPreviewLimit)
	logger.LogDebug(fmt.Sprintf("%s running %s: %s", spec.Label(), spec.Action, preview))

	if err := runner.Run(ctx, spec.Command[0], spec.Command[1:]...); err != nil {
		logger.LogWarn(fmt.Sprintf("%s %s exited with error: %v", spec.Label(), preview, err))
		return
	}
	logger.LogDebug(fmt.Sprintf("%s %s completed", spec.Label(), preview))
}

func (e *Executor) identity() string {
	if e.Identify != nil {
		return e.Identify()
	}
	return ProcessIdentity()
}

func (e *Executor) notify(spec TaskSpec, event string) {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}
	line := fmt.Sprintf("[%s] %s %s\n", spec.Label(), e.identity(), event)

	e.outMu.Lock()
	defer e.outMu.Unlock()
	_, _ = io.WriteString(out, line)
}
