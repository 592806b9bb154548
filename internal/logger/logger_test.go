package logger

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, console *bytes.Buffer) *Logger {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	var l *Logger
	var err error
	if console != nil {
		l, err = NewLogger(console)
	} else {
		l, err = NewLogger(nil)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "line %q", scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestNewLoggerWritesJSONLines(t *testing.T) {
	l := newTestLogger(t, nil)
	assert.Equal(t, filepath.Join(os.TempDir(), fmt.Sprintf("forkrun-%d.log", os.Getpid())), l.Path())

	l.Info("run started")
	l.Warn("unit 2 exited with error")
	l.Flush()

	entries := readEntries(t, l.Path())
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "run started", entries[0]["message"])
	assert.Equal(t, "warn", entries[1]["level"])
	for _, e := range entries {
		assert.EqualValues(t, os.Getpid(), e["pid"])
		assert.NotEmpty(t, e["time"])
	}
}

func TestNewLoggerCopiesWarningsToConsole(t *testing.T) {
	var console bytes.Buffer
	l := newTestLogger(t, &console)

	l.Debug("spawning")
	l.Info("unit 1 spawned")
	l.Warn("unit 1 /nonexistent/cmd exited with error")
	l.Error("spawn failed")
	l.Flush()

	out := console.String()
	assert.Contains(t, out, "WRN unit 1 /nonexistent/cmd exited with error")
	assert.Contains(t, out, "ERR spawn failed")
	assert.NotContains(t, out, "spawning")
	assert.NotContains(t, out, "unit 1 spawned")
	assert.Len(t, readEntries(t, l.Path()), 4, "the file keeps every level")
}

func TestLoggerSetLevelDropsLowerEntries(t *testing.T) {
	l := newTestLogger(t, nil)
	l.SetLevel(zerolog.WarnLevel)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Flush()

	entries := readEntries(t, l.Path())
	require.Len(t, entries, 1)
	assert.Equal(t, "w", entries[0]["message"])
}

func TestLoggerCloseKeepsFileUntilRemoved(t *testing.T) {
	l := newTestLogger(t, nil)
	l.Info("before close")

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	l.Info("after close")

	entries := readEntries(t, l.Path())
	require.Len(t, entries, 1)
	assert.Equal(t, "before close", entries[0]["message"])

	require.NoError(t, l.RemoveLogFile())
	_, err := os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, l.RemoveLogFile(), "removing twice is not an error")
}

func TestNilLoggerIsInert(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.SetLevel(zerolog.DebugLevel)
		l.Info("x")
		l.Flush()
		assert.Empty(t, l.Path())
		assert.Nil(t, l.ExtractRecentErrors(5))
		assert.NoError(t, l.Close())
		assert.NoError(t, l.RemoveLogFile())
	})
}

func TestLoggerConcurrentUnitsWriteWholeLines(t *testing.T) {
	l := newTestLogger(t, nil)

	const units, perUnit = 8, 100
	var wg sync.WaitGroup
	for u := 1; u <= units; u++ {
		wg.Add(1)
		go func(ordinal int) {
			defer wg.Done()
			for i := 0; i < perUnit; i++ {
				l.Debug(fmt.Sprintf("unit %d event %d", ordinal, i))
			}
		}(u)
	}
	wg.Wait()
	l.Flush()

	assert.Len(t, readEntries(t, l.Path()), units*perUnit)
}

func TestExtractRecentErrorsKeepsNewestWarnings(t *testing.T) {
	l := newTestLogger(t, nil)
	for i := 1; i <= 5; i++ {
		l.Info(fmt.Sprintf("info %d", i))
		l.Warn(fmt.Sprintf("warn %d", i))
	}
	l.Error("fatal spawn")
	l.Flush()

	assert.Equal(t, []string{"warn 4", "warn 5", "fatal spawn"}, l.ExtractRecentErrors(3))
	assert.Len(t, l.ExtractRecentErrors(100), 6)
	assert.Nil(t, l.ExtractRecentErrors(0))
}

func TestExtractRecentErrorsSkipsForeignLines(t *testing.T) {
	l := newTestLogger(t, nil)
	l.Warn("first")
	l.Flush()

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n{\"level\":\"error\",\"message\":\"second\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, []string{"first", "second"}, l.ExtractRecentErrors(10))
}

func TestConsoleLoggerHasNoFile(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, zerolog.InfoLevel)

	l.Debug("hidden")
	l.Info("shown")
	l.Flush()

	assert.Empty(t, l.Path())
	assert.Contains(t, buf.String(), "INF shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Nil(t, l.ExtractRecentErrors(10))
	assert.NoError(t, l.RemoveLogFile())
	assert.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"info":     zerolog.InfoLevel,
		"disabled": zerolog.Disabled,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestActiveLoggerRouting(t *testing.T) {
	var buf bytes.Buffer
	installed := NewConsoleLogger(&buf, zerolog.DebugLevel)
	prev := SetLogger(installed)
	t.Cleanup(func() { SetLogger(prev) })

	assert.Same(t, installed, ActiveLogger())
	LogDebug("d")
	LogInfo("i")
	LogWarn("w")
	LogError("e")
	for _, want := range []string{"DBG d", "INF i", "WRN w", "ERR e"} {
		assert.Contains(t, buf.String(), want)
	}

	require.NoError(t, CloseLogger())
	assert.Nil(t, ActiveLogger())
	assert.NotPanics(t, func() { LogWarn("dropped") })
	assert.False(t, strings.Contains(buf.String(), "dropped"))
	assert.NoError(t, CloseLogger())
}
