package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndAffectedSignatures(t *testing.T) {
	tracker := NewDependencyTracker()
	tracker.Record("a.janus", 1)
	tracker.Record("a.janus", 2)
	tracker.Record("b.janus", 3)

	affected := tracker.AffectedSignatures([]string{"a.janus"})
	assert.ElementsMatch(t, []uint64{1, 2}, affected)
}

func TestAffectedSignaturesIgnoresUnrelatedFiles(t *testing.T) {
	tracker := NewDependencyTracker()
	tracker.Record("a.janus", 1)

	affected := tracker.AffectedSignatures([]string{"unrelated.janus"})
	assert.Empty(t, affected)
}

func TestFilesReturnsAllContributingFiles(t *testing.T) {
	tracker := NewDependencyTracker()
	tracker.Record("a.janus", 1)
	tracker.Record("b.janus", 1)

	assert.ElementsMatch(t, []string{"a.janus", "b.janus"}, tracker.Files(1))
}

func TestSetCachedHashAndCachedHash(t *testing.T) {
	tracker := NewDependencyTracker()
	_, ok := tracker.CachedHash(1)
	assert.False(t, ok)

	tracker.SetCachedHash(1, "deadbeef")
	hash, ok := tracker.CachedHash(1)
	require.True(t, ok)
	assert.Equal(t, "deadbeef", hash)
}

func TestLiveHashesReflectsCachedHashes(t *testing.T) {
	tracker := NewDependencyTracker()
	tracker.SetCachedHash(1, "aaa")
	tracker.SetCachedHash(2, "bbb")

	live := tracker.LiveHashes()
	assert.Len(t, live, 2)
	_, ok := live["aaa"]
	assert.True(t, ok)
}

func TestForgetDropsFileBookkeeping(t *testing.T) {
	tracker := NewDependencyTracker()
	tracker.Record("a.janus", 1)
	tracker.Record("b.janus", 1)

	tracker.Forget("a.janus")

	assert.ElementsMatch(t, []string{"b.janus"}, tracker.Files(1))
	assert.Empty(t, tracker.AffectedSignatures([]string{"a.janus"}))
}
