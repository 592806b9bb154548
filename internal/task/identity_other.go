//go:build !linux

package task

import (
	"fmt"
	"os"
)

// ThreadIdentity names the calling thread. Outside Linux there is no portable
// thread id, so the process id is used.
func ThreadIdentity() string {
	return fmt.Sprintf("pid %d thread", os.Getpid())
}
