package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecLiterals(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1, cfg.InlineCache.InitialSize)
	assert.Equal(t, 8, cfg.InlineCache.MaxSize)
	assert.Equal(t, 100, cfg.InlineCache.ResizeAfterAccesses)
	assert.InDelta(t, 0.3, cfg.InlineCache.ResizeMissRate, 0.0001)
	assert.Equal(t, 10, cfg.Optimizer.CompressionMinEntries)
	assert.Equal(t, 1024, cfg.Optimizer.CompressionMinBytes)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "janus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inline_cache:\n  max_size: 16\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.InlineCache.MaxSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Optimizer.CompressionMinEntries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
