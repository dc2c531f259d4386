package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("log dir override via XDG_DATA_HOME is linux only")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	l, err := NewLogger("tab-1")
	require.NoError(t, err)

	l.LogSent("activity", "keydown")
	l.LogState("warning", 42, "/dashboard")
	l.LogNavigate("/login")
	l.LogError("in", errors.New("boom"))
	path := l.GetLogPath()
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e LogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 4)
	assert.Equal(t, "out", entries[0].Direction)
	assert.Equal(t, 42, entries[1].SecondsLeft)
	assert.Equal(t, "/login", entries[2].Route)
	assert.Equal(t, "boom", entries[3].Error)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.LogEvent("x")
		assert.Empty(t, l.GetLogPath())
		assert.NoError(t, l.Close())
	})
}

func TestLogAfterCloseIsDropped(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("log dir override via XDG_DATA_HOME is linux only")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	l, err := NewLogger("tab-2")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.NotPanics(t, func() { l.LogEvent("late") })
}
