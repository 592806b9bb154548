package task

import (
	"fmt"
	"time"
)

// Action selects the behavior a unit performs.
type Action int

const (
	ActionUnknown Action = iota
	ActionSleep
	ActionGenerateTests
	ActionGenerateDeploy
	ActionExec
)

// DefaultSleep is the simulated work duration of the sleep action.
const DefaultSleep = 2 * time.Second

func (a Action) String() string {
	switch a {
	case ActionSleep:
		return "sleep"
	case ActionGenerateTests:
		return "generate-tests"
	case ActionGenerateDeploy:
		return "generate-deploy"
	case ActionExec:
		return "exec"
	default:
		return "unknown"
	}
}

// MarshalText encodes the action as its label.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a label. Unrecognized labels become ActionUnknown.
func (a *Action) UnmarshalText(text []byte) error {
	*a = ParseAction(string(text))
	return nil
}

// IsHelper reports whether the action invokes an external helper command.
func (a Action) IsHelper() bool {
	return a == ActionGenerateTests || a == ActionGenerateDeploy
}

// TaskSpec is the immutable descriptor bound to one unit.
type TaskSpec struct {
	RunID    string        `json:"run_id"`
	Ordinal  int           `json:"ordinal"`
	Action   Action        `json:"action"`
	Duration time.Duration `json:"duration,omitempty"`
	Command  []string      `json:"command,omitempty"`
}

// Label is the human-readable unit name used in notifications.
func (s TaskSpec) Label() string {
	return fmt.Sprintf("unit %d", s.Ordinal)
}
