package incremental

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

func sampleTable() *dispatchtable.Table {
	return &dispatchtable.Table{
		FunctionName: "speak",
		ExactMatches: []dispatchtable.ExactEntry{
			{ArgTupleHash: 1, Impl: 0},
		},
	}
}

func TestDiskCacheStoreLoadRoundTrips(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	table := sampleTable()
	hash, err := cache.Store(table)
	require.NoError(t, err)
	assert.True(t, cache.Has(hash))

	loaded, err := cache.Load(hash)
	require.NoError(t, err)
	assert.Equal(t, table.ExactMatches, loaded.ExactMatches)
}

func TestDiskCacheStoreIsIdempotent(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	table := sampleTable()
	hash1, err := cache.Store(table)
	require.NoError(t, err)
	hash2, err := cache.Store(table)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)

	hashes, err := cache.ListHashes()
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestDiskCacheHasReportsAbsence(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	assert.False(t, cache.Has("does-not-exist"))
}

func TestDiskCacheEvictRemovesEntry(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	hash, err := cache.Store(sampleTable())
	require.NoError(t, err)

	require.NoError(t, cache.Evict(hash))
	assert.False(t, cache.Has(hash))
}

func TestDiskCacheEvictMissingEntryIsNotAnError(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, cache.Evict("never-stored"))
}

func TestDiskCacheListHashesIgnoresNonTableFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(dir)
	require.NoError(t, err)

	_, err = cache.Store(sampleTable())
	require.NoError(t, err)

	stray := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(stray, []byte("hello"), 0o644))

	hashes, err := cache.ListHashes()
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestContentHashIsDeterministic(t *testing.T) {
	encoded := dispatchtable.Encode(sampleTable())
	assert.Equal(t, ContentHash(encoded), ContentHash(encoded))
}
