package logger

import (
	"errors"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

func toPID32(pid int) (int32, bool) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, false
	}
	return int32(pid), true
}

// isProcessRunning reports whether pid is alive. Inspection failures other
// than "not running" count as alive so logs of live processes survive cleanup.
func isProcessRunning(pid int) bool {
	pid32, ok := toPID32(pid)
	if !ok {
		return false
	}
	alive, err := process.PidExists(pid32)
	switch {
	case err == nil:
		if !alive {
			return false
		}
		return !isZombie(pid32)
	case errors.Is(err, process.ErrorProcessNotRunning):
		return false
	default:
		return true
	}
}

// isZombie treats exited-but-unreaped processes as gone.
func isZombie(pid int32) bool {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := proc.Status()
	if err != nil {
		return false
	}
	for _, s := range status {
		if s == process.Zombie {
			return true
		}
	}
	return false
}

// getProcessStartTime returns the zero time when the start time is unknown.
func getProcessStartTime(pid int) time.Time {
	pid32, ok := toPID32(pid)
	if !ok {
		return time.Time{}
	}
	proc, err := process.NewProcess(pid32)
	if err != nil {
		return time.Time{}
	}
	ms, err := proc.CreateTime()
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func IsProcessRunning(pid int) bool { return isProcessRunning(pid) }
