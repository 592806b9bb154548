package app

import (
	"io"
	"os"

	config "forkrun/internal/config"
	"forkrun/internal/dispatch"
	"forkrun/internal/task"
)

var (
	exitFn                     = os.Exit
	stdout           io.Writer = os.Stdout
	stderr           io.Writer = os.Stderr
	newCommandRunner           = defaultCommandRunner
	newSubstrateFn             = defaultSubstrate
)

func defaultCommandRunner() task.CommandRunner {
	return task.ExecRunner{Stdout: stdout, Stderr: stderr}
}

func SetOutput(out, errOut io.Writer) (restore func()) {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return func() { stdout, stderr = prevOut, prevErr }
}

func SetCommandRunner(fn func() task.CommandRunner) (restore func()) {
	prev := newCommandRunner
	if fn != nil {
		newCommandRunner = fn
	} else {
		newCommandRunner = defaultCommandRunner
	}
	return func() { newCommandRunner = prev }
}

func SetSubstrateFn(fn func(dispatch.Mode, *config.Settings) (dispatch.Substrate, error)) (restore func()) {
	prev := newSubstrateFn
	if fn != nil {
		newSubstrateFn = fn
	} else {
		newSubstrateFn = defaultSubstrate
	}
	return func() { newSubstrateFn = prev }
}
