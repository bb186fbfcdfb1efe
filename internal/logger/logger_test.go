package logger

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "penumbra.log")

	l, err := NewFileLogger("warn", path)
	require.NoError(t, err)

	l.Debug("not recorded")
	l.Infof("not recorded either: %d", 42)
	l.Warn("disk almost full")
	l.Errorf("build failed: %v", "boom")
	l.Close()

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	require.NotContains(t, out, "not recorded")
	require.Contains(t, out, "[WARN ]")
	require.Contains(t, out, "disk almost full")
	require.Contains(t, out, "[ERROR]")
	require.Contains(t, out, "build failed: boom")
	// File output never carries color escapes.
	require.NotContains(t, out, "\033[")
	// The reported location is this test file, not the logger's.
	require.Contains(t, out, "logger_test.go")
}

func TestNewDispatchesOnFilePath(t *testing.T) {
	l, err := New("info", "")
	require.NoError(t, err)
	require.Nil(t, l.file)

	path := filepath.Join(t.TempDir(), "penumbra.log")
	l, err = New("info", path)
	require.NoError(t, err)
	require.NotNil(t, l.file)
	l.Info("started")
	l.Close()

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "started")
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	require.Equal(t, DEBUG, parseLevel("debug"))
	require.Equal(t, FATAL, parseLevel("FATAL"))
	require.Equal(t, INFO, parseLevel("chatty"))
	require.Equal(t, INFO, parseLevel(""))
}
