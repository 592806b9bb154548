package logger

import "sync/atomic"

// active is the process-wide logger used by the LogXxx helpers. Packages that
// do not own a Logger log through it; nil discards.
var active atomic.Pointer[Logger]

// SetLogger installs l as the active logger and returns the previous one.
func SetLogger(l *Logger) *Logger { return active.Swap(l) }

// CloseLogger uninstalls and closes the active logger.
func CloseLogger() error {
	if l := active.Swap(nil); l != nil {
		return l.Close()
	}
	return nil
}

func ActiveLogger() *Logger { return active.Load() }

func logWarn(msg string) { active.Load().Warn(msg) }

func LogDebug(msg string) { active.Load().Debug(msg) }

func LogInfo(msg string) { active.Load().Info(msg) }

func LogWarn(msg string) { logWarn(msg) }

func LogError(msg string) { active.Load().Error(msg) }
