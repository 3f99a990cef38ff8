package fixstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileSchemeReturnsFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(context.Background(), Config{DriverURL: "file://" + filepath.Join(dir, "fixes.jsonl")})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*fileStore)
	assert.True(t, ok)
}

func TestDefaultConfigIsFileBacked(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "file://.janus/fixstore.jsonl", cfg.DriverURL)
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), Config{DriverURL: "ftp://somewhere"})
	assert.Error(t, err)
}

func TestFileStoreRecordOutcomeAndAcceptanceRate(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(context.Background(), Config{DriverURL: "file://" + filepath.Join(dir, "fixes.jsonl")})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordOutcome(context.Background(), Record{FixID: "rename-0", Accepted: true}))
	require.NoError(t, store.RecordOutcome(context.Background(), Record{FixID: "rename-0", Accepted: false}))

	assert.InDelta(t, 0.5, store.AcceptanceRate("rename-0"), 0.0001)
}

func TestFileStoreAcceptanceRateUnknownFixIsZero(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(context.Background(), Config{DriverURL: "file://" + filepath.Join(dir, "fixes.jsonl")})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 0.0, store.AcceptanceRate("never-seen"))
}

func TestFileStoreSurvivesReopenByReplayingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixes.jsonl")

	first, err := Open(context.Background(), Config{DriverURL: "file://" + path})
	require.NoError(t, err)
	require.NoError(t, first.RecordOutcome(context.Background(), Record{FixID: "narrow-param-0", Accepted: true}))
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), Config{DriverURL: "file://" + path})
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, 1.0, second.AcceptanceRate("narrow-param-0"))
}
