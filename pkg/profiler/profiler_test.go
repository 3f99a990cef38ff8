package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDispatchAccumulatesStats(t *testing.T) {
	p := New(DefaultConfig())

	p.RecordDispatch("speak", SourceCache, time.Microsecond)
	p.RecordDispatch("speak", SourceCache, time.Microsecond)
	p.RecordDispatch("speak", SourceExactTable, time.Microsecond)
	p.RecordDispatch("speak", SourceMiss, time.Microsecond)

	profiles := p.HotPaths(0)
	require.Len(t, profiles, 1)
	fp := profiles[0]
	assert.Equal(t, "speak", fp.Function)
	assert.Equal(t, uint64(4), fp.Calls)
	assert.Equal(t, uint64(2), fp.CacheHits)
	assert.Equal(t, uint64(1), fp.ExactHits)
	assert.Equal(t, uint64(1), fp.Misses)
	assert.InDelta(t, 0.5, fp.CacheHitRatio, 0.0001)
}

func TestHotPathsOrderedByCallVolumeDescending(t *testing.T) {
	p := New(DefaultConfig())
	for i := 0; i < 3; i++ {
		p.RecordDispatch("cold", SourceCache, time.Microsecond)
	}
	for i := 0; i < 30; i++ {
		p.RecordDispatch("hot", SourceCache, time.Microsecond)
	}

	top := p.HotPaths(1)
	require.Len(t, top, 1)
	assert.Equal(t, "hot", top[0].Function)
}

func TestRecommendationsFlagLowCacheHitRatio(t *testing.T) {
	p := New(DefaultConfig())
	for i := 0; i < 100; i++ {
		if i%5 == 0 {
			p.RecordDispatch("add", SourceCache, time.Microsecond)
		} else {
			p.RecordDispatch("add", SourceExactTable, time.Microsecond)
		}
	}

	recs := p.Recommendations()
	require.NotEmpty(t, recs)
	assert.Equal(t, "add", recs[0].Function)
	assert.Equal(t, 90, recs[0].Priority)
}

func TestRecommendationsFlagMisses(t *testing.T) {
	p := New(DefaultConfig())
	p.RecordDispatch("m", SourceMiss, time.Microsecond)

	recs := p.Recommendations()
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Reason, "misses")
}

func TestHandlerAndRegistryAreExposed(t *testing.T) {
	p := New(DefaultConfig())
	p.RecordDispatch("speak", SourceCache, time.Microsecond)
	assert.NotNil(t, p.Handler())
	assert.NotNil(t, p.Registry())
}
