package task

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

func fixedIdentity() string { return "pid 42" }

func TestExecuteSleepNotifiesStartAndFinish(t *testing.T) {
	var out bytes.Buffer
	e := NewExecutor(&out, nil)
	e.Identify = fixedIdentity

	start := time.Now()
	e.Execute(context.Background(), TaskSpec{Ordinal: 3, Action: ActionSleep, Duration: 20 * time.Millisecond})

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, "[unit 3] pid 42 started\n[unit 3] pid 42 finished\n", out.String())
}

func TestExecuteSleepFallsBackToExecutorDuration(t *testing.T) {
	var out bytes.Buffer
	e := NewExecutor(&out, nil)
	e.Sleep = 5 * time.Millisecond
	assert.Equal(t, 5*time.Millisecond, e.duration(TaskSpec{Action: ActionSleep}))
	assert.Equal(t, DefaultSleep, NewExecutor(&out, nil).duration(TaskSpec{Action: ActionSleep}))
}

func TestExecuteHelperIgnoresRunnerFailure(t *testing.T) {
	var out bytes.Buffer
	runner := &recordingRunner{err: errors.New("exit status 127")}
	e := NewExecutor(&out, runner)
	e.Identify = fixedIdentity

	e.Execute(context.Background(), TaskSpec{
		Ordinal: 1,
		Action:  ActionGenerateTests,
		Command: []string{"./scripts/generate_tests.sh", "--all"},
	})

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"./scripts/generate_tests.sh", "--all"}, runner.calls[0])
	assert.Equal(t, "[unit 1] pid 42 started\n[unit 1] pid 42 finished\n", out.String())
}

func TestExecuteHelperWithoutCommand(t *testing.T) {
	var out bytes.Buffer
	runner := &recordingRunner{}
	e := NewExecutor(&out, runner)
	e.Identify = fixedIdentity

	e.Execute(context.Background(), TaskSpec{Ordinal: 2, Action: ActionGenerateDeploy})

	assert.Empty(t, runner.calls)
	assert.Contains(t, out.String(), `has no command configured for action "generate-deploy"`)
	assert.NotContains(t, out.String(), "started")
}

func TestExecuteUnknownActionEmitsDiagnostic(t *testing.T) {
	var out bytes.Buffer
	runner := &recordingRunner{}
	e := NewExecutor(&out, runner)
	e.Identify = fixedIdentity

	e.Execute(context.Background(), TaskSpec{Ordinal: 5, Action: ActionUnknown})

	assert.Empty(t, runner.calls)
	assert.Equal(t, "[unit 5] pid 42 unknown action, nothing to do\n", out.String())
}

func TestExecuteCommandUsesExecRunner(t *testing.T) {
	var gotName string
	var gotArgs []string
	defer SetCommandContextFn(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return exec.CommandContext(ctx, "true")
	})()

	var out, cmdOut bytes.Buffer
	e := NewExecutor(&out, ExecRunner{Stdout: &cmdOut, Stderr: &cmdOut})
	e.Identify = fixedIdentity
	e.Execute(context.Background(), TaskSpec{Ordinal: 1, Action: ActionExec, Command: []string{"echo", "a", "b"}})

	assert.Equal(t, "echo", gotName)
	assert.Equal(t, []string{"a", "b"}, gotArgs)
	assert.Equal(t, 2, strings.Count(out.String(), "[unit 1] pid 42 "))
}

func TestExecRunnerReportsFailure(t *testing.T) {
	defer SetCommandContextFn(func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	})()

	err := ExecRunner{}.Run(context.Background(), "anything")
	var exitErr *exec.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestExecuteConcurrentUnitsKeepLinesIntact(t *testing.T) {
	var out bytes.Buffer
	e := NewExecutor(&out, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(ordinal int) {
			defer wg.Done()
			e.Execute(context.Background(), TaskSpec{Ordinal: ordinal, Action: ActionSleep, Duration: time.Millisecond})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 32)
	for _, line := range lines {
		assert.Regexp(t, `^\[unit \d+\] pid \d+ (started|finished)$`, line)
	}
}

func TestThreadIdentity(t *testing.T) {
	id := ThreadIdentity()
	assert.NotEmpty(t, id)
	assert.NotEqual(t, ProcessIdentity(), id)
}
