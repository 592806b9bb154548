package app

import "fmt"

// Process exit statuses. Each failure class has its own code so callers such
// as build pipelines can branch on it.
const (
	exitOK           = 0
	exitInternal     = 1
	exitUsage        = 2
	exitBadCount     = 3
	exitUnknownMode  = 4
	exitSpawnFailure = 5
)

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

// usageError is a malformed invocation detected before anything is spawned.
type usageError struct {
	code int
	msg  string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(code int, format string, args ...any) *usageError {
	return &usageError{code: code, msg: fmt.Sprintf(format, args...)}
}
