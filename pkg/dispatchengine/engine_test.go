package dispatchengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/types"
)

func buildSpeakEngine(t *testing.T) (*Engine, uint64, types.TypeId, types.TypeId) {
	t.Helper()
	reg := registry.New(nil)
	animal, err := reg.RegisterType("Animal", types.KindShapeOpen)
	require.NoError(t, err)
	dog, err := reg.RegisterType("Dog", types.KindShapeOpen, animal)
	require.NoError(t, err)

	sig := signature.NewAnalyzer(reg)
	animalImpl, err := sig.Normalize(signature.Declaration{
		FunctionId: signature.FunctionId{SimpleName: "speak", ModulePath: "core"},
		ParamTypes: []types.TypeId{animal},
	})
	require.NoError(t, err)
	dogImpl, err := sig.Normalize(signature.Declaration{
		FunctionId: signature.FunctionId{SimpleName: "speak", ModulePath: "core"},
		ParamTypes: []types.TypeId{dog},
	})
	require.NoError(t, err)

	analyzer := resolve.NewAnalyzer(reg)
	gen := dispatchtable.NewGenerator(analyzer)
	patterns := []dispatchtable.Pattern{{ArgTypes: []types.TypeId{animal}}, {ArgTypes: []types.TypeId{dog}}}
	table := gen.Generate("speak", 0x1, []signature.Implementation{animalImpl, dogImpl}, patterns)

	tables := map[uint64]*dispatchtable.Table{0x1: table}
	engine := New(tables, 8, reg)
	return engine, 0x1, animal, dog
}

func TestDispatchHitsExactTableOnFirstCall(t *testing.T) {
	engine, hash, _, dog := buildSpeakEngine(t)
	ref, src := engine.Dispatch(hash, []types.TypeId{dog})
	assert.NotEqual(t, dispatchtable.NoImpl, ref)
	assert.Equal(t, SourceExactTable, src)
}

func TestDispatchHitsInlineCacheOnSecondCall(t *testing.T) {
	engine, hash, _, dog := buildSpeakEngine(t)
	engine.Dispatch(hash, []types.TypeId{dog})

	ref, src := engine.Dispatch(hash, []types.TypeId{dog})
	assert.NotEqual(t, dispatchtable.NoImpl, ref)
	assert.Equal(t, SourceCache, src)
}

func TestDispatchUnknownSignatureMisses(t *testing.T) {
	engine, _, _, dog := buildSpeakEngine(t)
	ref, src := engine.Dispatch(0xdead, []types.TypeId{dog})
	assert.Equal(t, dispatchtable.NoImpl, ref)
	assert.Equal(t, SourceMiss, src)
}

func TestCountersAccumulatePerSource(t *testing.T) {
	engine, hash, _, dog := buildSpeakEngine(t)
	engine.Dispatch(hash, []types.TypeId{dog})
	engine.Dispatch(hash, []types.TypeId{dog})

	counters := engine.CountersFor(hash)
	assert.Equal(t, uint64(1), counters.ExactTableHits)
	assert.Equal(t, uint64(1), counters.CacheHits)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "inline_cache", SourceCache.String())
	assert.Equal(t, "exact_table", SourceExactTable.String())
	assert.Equal(t, "decision_tree", SourceDecisionTree.String())
	assert.Equal(t, "miss", SourceMiss.String())
}
