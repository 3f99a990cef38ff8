package inlinecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

func TestPutThenGetHits(t *testing.T) {
	c := New(DefaultMaxSize)
	c.Put(1, dispatchtable.ImplRef(7))

	impl, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, dispatchtable.ImplRef(7), impl)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestGetMissOnUnknownHash(t *testing.T) {
	c := New(DefaultMaxSize)
	_, ok := c.Get(42)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := New(DefaultMaxSize)
	c.size = 2 // simulate the cache having already grown past the default initial size of 1

	c.Put(1, dispatchtable.ImplRef(1))
	c.Put(2, dispatchtable.ImplRef(2))
	c.Get(1) // touch 1, making 2 least-recently-used
	c.Put(3, dispatchtable.ImplRef(3))

	_, ok := c.Get(2)
	assert.False(t, ok, "entry 2 should have been evicted as LRU")
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestClearResetsCache(t *testing.T) {
	c := New(DefaultMaxSize)
	c.Put(1, dispatchtable.ImplRef(1))
	c.Clear()

	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Clears)
}

func TestSizeStartsAtInitialSize(t *testing.T) {
	c := New(DefaultMaxSize)
	assert.Equal(t, DefaultInitialSize, c.Size())
}

func TestFamilyCreatesDistinctCachesPerSignature(t *testing.T) {
	f := NewFamily(DefaultMaxSize)
	a := f.For(1)
	b := f.For(2)
	assert.NotSame(t, a, b)
	assert.Same(t, a, f.For(1))
}
