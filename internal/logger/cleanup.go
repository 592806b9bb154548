package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// orphanAge is how old a log must be before it is removed when its pid is
// alive but the process start time cannot be read.
const orphanAge = 7 * 24 * time.Hour

var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupStats summarizes a CleanupOldLogs pass.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

// CleanupOldLogs removes log files left behind by processes that no longer run.
func CleanupOldLogs() (CleanupStats, error) { return cleanupOldLogs() }

func cleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats
	tempDir := os.TempDir()

	var matches []string
	for _, prefix := range LogPrefixes() {
		found, err := globLogFiles(filepath.Join(tempDir, prefix+"-*.log"))
		if err != nil {
			return stats, fmt.Errorf("list log files: %w", err)
		}
		matches = append(matches, found...)
	}

	var errs []error
	keep := func(path string) {
		stats.Kept++
		stats.KeptFiles = append(stats.KeptFiles, path)
	}
	for _, path := range matches {
		stats.Scanned++

		pid, ok := parsePIDFromLog(path)
		if !ok {
			keep(path)
			continue
		}
		if unsafe, reason := isUnsafeFile(path, tempDir); unsafe {
			logWarn(fmt.Sprintf("skipping %s: %s", path, reason))
			keep(path)
			continue
		}
		if processRunningCheck(pid) && !isPIDReused(path, pid) {
			keep(path)
			continue
		}
		if err := removeLogFileFn(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			stats.Errors++
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		stats.Deleted++
		stats.DeletedFiles = append(stats.DeletedFiles, path)
	}

	return stats, errors.Join(errs...)
}

// isPIDReused reports whether the process owning pid started after the log was
// last written, meaning the pid now belongs to someone else.
func isPIDReused(path string, pid int) bool {
	info, err := fileStatFn(path)
	if err != nil {
		return false
	}
	start := processStartTimeFn(pid)
	if start.IsZero() {
		return time.Since(info.ModTime()) > orphanAge
	}
	return start.After(info.ModTime())
}

func isUnsafeFile(path, tempDir string) (bool, string) {
	info, err := fileStatFn(path)
	if err != nil {
		return true, "cannot stat file"
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, "refusing to delete symlink"
	}

	resolved, err := evalSymlinksFn(path)
	if err != nil {
		return true, "cannot resolve path"
	}
	base, err := filepath.Abs(tempDir)
	if err != nil {
		return true, "cannot resolve tempDir"
	}
	if eval, err := filepath.EvalSymlinks(base); err == nil {
		base = eval
	}
	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true, "file is outside tempDir"
	}
	return false, ""
}

// parsePIDFromLog extracts <pid> from forkrun-<pid>.log.
func parsePIDFromLog(path string) (int, bool) {
	name, ok := strings.CutSuffix(filepath.Base(path), ".log")
	if !ok {
		return 0, false
	}
	for _, prefix := range LogPrefixes() {
		digits, found := strings.CutPrefix(name, prefix+"-")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(digits)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}
