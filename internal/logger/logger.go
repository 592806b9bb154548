// Package logger writes the diagnostic log of a forkrun process.
//
// Each dispatcher process owns one JSON-lines file in the temp dir named
// forkrun-<pid>.log. Unit processes log to stderr instead.
package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Logger is safe for concurrent use.
type Logger struct {
	path string
	file *os.File
	zl   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewLogger creates forkrun-<pid>.log in the temp dir. When console is not
// nil, warnings and errors are also written to it in human-readable form.
func NewLogger(console io.Writer) (*Logger, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.log", ToolName, os.Getpid()))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var w zerolog.LevelWriter = zerolog.LevelWriterAdapter{Writer: zerolog.SyncWriter(f)}
	if console != nil {
		w = zerolog.MultiLevelWriter(w, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: newConsoleWriter(console)},
			Level:  zerolog.WarnLevel,
		})
	}
	zl := zerolog.New(w).
		With().Timestamp().Int("pid", os.Getpid()).Logger().
		Level(zerolog.DebugLevel)

	return &Logger{path: path, file: f, zl: zl}, nil
}

func newConsoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
}

// NewConsoleLogger logs human-readable lines to w at level and above. It has
// no backing file.
func NewConsoleLogger(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(newConsoleWriter(w)).With().Timestamp().Logger().Level(level)
	return &Logger{zl: zl}
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// SetLevel drops entries below level.
func (l *Logger) SetLevel(level zerolog.Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = l.zl.Level(level)
}

func (l *Logger) Debug(msg string) { l.log(zerolog.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(zerolog.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(zerolog.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(zerolog.ErrorLevel, msg) }

func (l *Logger) log(level zerolog.Level, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	zl := l.zl
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	zl.WithLevel(level).Msg(msg)
}

// Path returns the log file path, or "" for console loggers.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Flush commits written entries to disk.
func (l *Logger) Flush() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		_ = l.file.Sync()
	}
}

// Close stops logging. The file is kept until RemoveLogFile.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return l.file.Close()
}

// RemoveLogFile deletes the log file.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := removeLogFileFn(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type logLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ExtractRecentErrors returns the last maxEntries warn/error messages in file
// order.
func (l *Logger) ExtractRecentErrors(maxEntries int) []string {
	if l == nil || l.path == "" || maxEntries <= 0 {
		return nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		switch line.Level {
		case zerolog.WarnLevel.String(), zerolog.ErrorLevel.String():
			entries = append(entries, line.Message)
		}
	}
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	return entries
}
