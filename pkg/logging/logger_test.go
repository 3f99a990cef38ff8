package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpLoggerDiscardsWithoutPanicking(t *testing.T) {
	l := NoOp()
	l.Debug("ignored", nil)
	l.Info("ignored", map[string]interface{}{"a": 1})
	require.NoError(t, l.Close())
}

func TestLoggerWritesTextEntriesAboveMinLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{MinLevel: WARN, Format: TextFormat, Outputs: []io.Writer{buf}})

	l.Info("should be filtered out", nil)
	l.Warn("should appear", map[string]interface{}{"k": "v"})
	require.NoError(t, l.Close())

	out := buf.String()
	assert.NotContains(t, out, "should be filtered out")
	assert.Contains(t, out, "should appear")
	assert.Contains(t, out, "WARN")
}

func TestLoggerWritesJSONEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{MinLevel: DEBUG, Format: JSONFormat, Outputs: []io.Writer{buf}})
	l.Error("boom", map[string]interface{}{"code": 42})
	require.NoError(t, l.Close())

	line := strings.TrimSpace(buf.String())
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "boom", entry.Message)
	assert.Equal(t, float64(42), entry.Fields["code"])
}

func TestWithRequestIDOverridesCorrelationID(t *testing.T) {
	l := New(DefaultConfig())
	defer l.Close()

	tagged := l.WithRequestID("fixed-id")
	assert.Equal(t, "fixed-id", tagged.RequestID())
	assert.NotEqual(t, l.RequestID(), tagged.RequestID())
}

func TestWithRequestIDOnNoOpIsStillNoOp(t *testing.T) {
	l := NoOp()
	tagged := l.WithRequestID("whatever")
	tagged.Info("still discarded", nil)
}

func TestCloseIsIdempotent(t *testing.T) {
	l := New(DefaultConfig())
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "FATAL", FATAL.String())
}

func TestFileOutputRotatesOnceMaxSizeExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.log")

	l := New(Config{
		MinLevel: DEBUG, Format: TextFormat,
		Outputs:     []io.Writer{},
		FilePath:    path,
		MaxFileSize: 200,
		MaxBackups:  2,
	})
	for i := 0; i < 50; i++ {
		l.Info("dispatch table generated", map[string]interface{}{"i": i})
	}
	require.NoError(t, l.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected rotation to have produced a .1 backup")
}

func TestFileOutputWithoutRotationKeepsAppending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.log")

	l := New(Config{MinLevel: DEBUG, Format: TextFormat, Outputs: []io.Writer{}, FilePath: path})
	l.Info("first run", nil)
	require.NoError(t, l.Close())

	l2 := New(Config{MinLevel: DEBUG, Format: TextFormat, Outputs: []io.Writer{}, FilePath: path})
	l2.Info("second run", nil)
	require.NoError(t, l2.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "first run")
	assert.Contains(t, string(b), "second run")
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, INFO, cfg.MinLevel)
	assert.Equal(t, TextFormat, cfg.Format)
	assert.Equal(t, 1000, cfg.BufferSize)
}
