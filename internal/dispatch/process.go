package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"forkrun/internal/task"

	"github.com/goccy/go-json"
)

// UnitSpecEnv carries the JSON encoded TaskSpec into a process unit. A process
// started with this variable set is a unit, not a dispatcher.
const UnitSpecEnv = "FORKRUN_UNIT_SPEC"

var (
	defaultExecutablePath = os.Executable
	executablePath        = defaultExecutablePath
)

// ProcessSubstrate runs every unit as a re-executed copy of the current
// binary. The child finds its TaskSpec in UnitSpecEnv, executes it and exits.
type ProcessSubstrate struct {
	// Executable overrides the binary to re-execute. Defaults to os.Executable.
	Executable string
	// Env is the base environment of the child. Defaults to os.Environ.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

func (p *ProcessSubstrate) Mode() Mode { return ProcessMode }

func (p *ProcessSubstrate) Spawn(_ context.Context, spec task.TaskSpec) (Unit, error) {
	exe := strings.TrimSpace(p.Executable)
	if exe == "" {
		resolved, err := executablePath()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		exe = resolved
	}

	payload, err := EncodeUnitSpec(spec)
	if err != nil {
		return nil, err
	}

	env := p.Env
	if env == nil {
		env = os.Environ()
	}

	// Units cannot be cancelled once spawned, so the command is not bound to ctx.
	cmd := exec.Command(exe)
	cmd.Env = append(append([]string(nil), env...), UnitSpecEnv+"="+payload)
	cmd.Stdout = p.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = p.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processUnit{ordinal: spec.Ordinal, cmd: cmd}, nil
}

type processUnit struct {
	ordinal int
	cmd     *exec.Cmd
}

func (u *processUnit) Ordinal() int { return u.ordinal }

func (u *processUnit) ID() string { return fmt.Sprintf("pid %d", u.Pid()) }

// Pid returns the child's process id.
func (u *processUnit) Pid() int {
	if u.cmd == nil || u.cmd.Process == nil {
		return 0
	}
	return u.cmd.Process.Pid
}

func (u *processUnit) Wait() error { return u.cmd.Wait() }

// EncodeUnitSpec serializes spec for UnitSpecEnv.
func EncodeUnitSpec(spec task.TaskSpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode unit spec: %w", err)
	}
	return string(data), nil
}

// DecodeUnitSpec parses the value of UnitSpecEnv.
func DecodeUnitSpec(raw string) (task.TaskSpec, error) {
	var spec task.TaskSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return task.TaskSpec{}, fmt.Errorf("decode unit spec: %w", err)
	}
	if spec.Ordinal < 1 {
		return task.TaskSpec{}, fmt.Errorf("decode unit spec: invalid ordinal %d", spec.Ordinal)
	}
	return spec, nil
}

// UnitSpecFromEnv reports whether the current process is a process unit and
// returns its TaskSpec.
func UnitSpecFromEnv() (spec task.TaskSpec, ok bool, err error) {
	raw, ok := os.LookupEnv(UnitSpecEnv)
	if !ok {
		return task.TaskSpec{}, false, nil
	}
	spec, err = DecodeUnitSpec(raw)
	return spec, true, err
}
