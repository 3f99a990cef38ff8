package incremental

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(dir, name string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644)
}

func TestWatcherDebouncesRapidChangesIntoOneBatch(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var batches [][]string
	done := make(chan struct{}, 1)

	w, err := NewWatcher([]string{dir}, 30*time.Millisecond, func(files []string) {
		mu.Lock()
		batches = append(batches, files)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer w.Stop()

	go w.Run()

	touch := func(name string) {
		require.NoError(t, writeTestFile(dir, name))
	}
	touch("a.janus")
	touch("b.janus")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced change batch")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	assert.NotEmpty(t, batches[0])
}

func TestWatcherStopTerminatesRunLoop(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher([]string{dir}, 10*time.Millisecond, func([]string) {}, nil)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		w.Run()
		close(finished)
	}()

	w.Stop()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestNewWatcherRejectsUnknownDirectory(t *testing.T) {
	_, err := NewWatcher([]string{"/does/not/exist/at/all"}, time.Millisecond, func([]string) {}, nil)
	assert.Error(t, err)
}
