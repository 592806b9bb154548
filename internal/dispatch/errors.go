package dispatch

import (
	"errors"
	"fmt"
)

// ErrNonPositiveCount rejects a run before anything is spawned.
var ErrNonPositiveCount = errors.New("task count must be a positive integer")

// ResourceError reports that the OS refused to create a unit. It is fatal for
// the whole run.
type ResourceError struct {
	Mode    Mode
	Ordinal int
	Err     error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s mode: cannot create unit %d: %v", e.Mode, e.Ordinal, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
