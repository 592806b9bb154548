//go:build linux

package task

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ThreadIdentity names the calling OS thread.
func ThreadIdentity() string {
	return fmt.Sprintf("tid %d", unix.Gettid())
}
