package app

import (
	"context"
	"fmt"
	"os"

	config "forkrun/internal/config"
	"forkrun/internal/dispatch"
	"forkrun/internal/logger"
	"forkrun/internal/task"

	"github.com/rs/zerolog"
)

// runUnit is the whole life of a process-mode unit: execute one TaskSpec and
// report the status the process must exit with. It never returns to the
// dispatcher code path.
func runUnit(spec task.TaskSpec, decodeErr error) int {
	logger.SetLogger(logger.NewConsoleLogger(stderr, zerolog.WarnLevel))
	defer func() { _ = logger.CloseLogger() }()

	// Commands run by this unit are not units themselves.
	_ = os.Unsetenv(dispatch.UnitSpecEnv)

	if decodeErr != nil {
		logger.LogError(fmt.Sprintf("pid %d: %v", os.Getpid(), decodeErr))
		return exitInternal
	}

	executor := task.NewExecutor(stdout, newCommandRunner())
	executor.Execute(context.Background(), spec)
	return exitOK
}

func defaultSubstrate(mode dispatch.Mode, settings *config.Settings) (dispatch.Substrate, error) {
	switch mode {
	case dispatch.ProcessMode:
		return &dispatch.ProcessSubstrate{Stdout: stdout, Stderr: stderr}, nil
	case dispatch.ThreadMode:
		executor := task.NewExecutor(stdout, newCommandRunner())
		executor.Identify = task.ThreadIdentity
		return &dispatch.ThreadSubstrate{
			Executor:   executor,
			Identify:   task.ThreadIdentity,
			MaxThreads: settings.MaxThreads,
		}, nil
	default:
		return nil, fmt.Errorf("no substrate for %s", mode)
	}
}
