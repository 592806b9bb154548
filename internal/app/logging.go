package app

import (
	"fmt"

	config "forkrun/internal/config"
	"forkrun/internal/logger"
)

const recentErrorLimit = 10

func runWithLoggerAndCleanup(settings *config.Settings, fn func() int) (exitCode int) {
	log, err := logger.NewLogger(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: failed to initialize logger: %v\n", err)
		return exitInternal
	}
	if level, err := logger.ParseLevel(settings.LogLevel); err == nil {
		log.SetLevel(level)
	}
	logger.SetLogger(log)

	defer func() {
		log.Flush()
		if err := logger.CloseLogger(); err != nil {
			fmt.Fprintf(stderr, "ERROR: failed to close logger: %v\n", err)
		}

		if exitCode != 0 {
			if entries := log.ExtractRecentErrors(recentErrorLimit); len(entries) > 0 {
				fmt.Fprintln(stderr, "\n=== Recent Errors ===")
				for _, entry := range entries {
					fmt.Fprintln(stderr, entry)
				}
				if settings.KeepLog {
					fmt.Fprintf(stderr, "Log file: %s\n", log.Path())
				} else {
					fmt.Fprintf(stderr, "Log file: %s (deleted)\n", log.Path())
				}
			}
		}
		if !settings.KeepLog {
			_ = log.RemoveLogFile()
		}
	}()

	cleanupStaleLogs()
	return fn()
}

// cleanupStaleLogs removes logs of earlier runs whose process is gone.
func cleanupStaleLogs() {
	stats, err := logger.CleanupOldLogs()
	if err != nil {
		logger.LogWarn(fmt.Sprintf("stale log cleanup: %v", err))
	}
	if stats.Deleted > 0 {
		logger.LogDebug(fmt.Sprintf("removed %d stale log files", stats.Deleted))
	}
}
