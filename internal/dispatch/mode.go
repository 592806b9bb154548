package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the concurrency substrate used for a whole run.
type Mode int

const (
	ProcessMode Mode = iota + 1
	ThreadMode
)

// ErrUnknownMode is returned by ParseMode for unrecognized selectors.
var ErrUnknownMode = errors.New("unrecognized mode")

func (m Mode) String() string {
	switch m {
	case ProcessMode:
		return "process"
	case ThreadMode:
		return "thread"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var modeSelectors = map[string]Mode{
	"process":        ProcessMode,
	"process-mode":   ProcessMode,
	"fork":           ProcessMode,
	"--mode=process": ProcessMode,
	"--mode=fork":    ProcessMode,
	"thread":         ThreadMode,
	"thread-mode":    ThreadMode,
	"--mode=thread":  ThreadMode,
}

// ParseMode maps a mode selector token to a Mode.
func ParseMode(selector string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(selector))
	if mode, ok := modeSelectors[key]; ok {
		return mode, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, selector)
}
