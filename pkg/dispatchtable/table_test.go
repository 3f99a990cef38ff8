package dispatchtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/types"
)

func buildSpeakTable(t *testing.T) (*Table, types.TypeId, types.TypeId) {
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
	gen := NewGenerator(analyzer)
	patterns := []Pattern{{ArgTypes: []types.TypeId{animal}}, {ArgTypes: []types.TypeId{dog}}}
	table := gen.Generate("speak", 0xabc, []signature.Implementation{animalImpl, dogImpl}, patterns)
	return table, animal, dog
}

func TestGenerateProducesSortedExactMatches(t *testing.T) {
	table, _, _ := buildSpeakTable(t)
	require.Len(t, table.ExactMatches, 2)
	for i := 1; i < len(table.ExactMatches); i++ {
		assert.LessOrEqual(t, table.ExactMatches[i-1].ArgTupleHash, table.ExactMatches[i].ArgTupleHash)
	}
}

func TestLookupAgreesWithDirectResolution(t *testing.T) {
	table, _, dog := buildSpeakTable(t)
	hash := hashPattern([]types.TypeId{dog})

	ref, ok := table.Lookup(hash)
	require.True(t, ok)
	require.NotEqual(t, NoImpl, ref)
	assert.Equal(t, []types.TypeId{dog}, table.Pool[ref].ParamTypes)
}

func TestLookupMissReturnsFalse(t *testing.T) {
	table, _, _ := buildSpeakTable(t)
	_, ok := table.Lookup(0xdeadbeef)
	assert.False(t, ok)
}

func TestEncodeDecodeRoundTripsExactMatches(t *testing.T) {
	table, _, _ := buildSpeakTable(t)
	encoded := Encode(table)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, table.ExactMatches, decoded.ExactMatches)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestEncodeIsDeterministic(t *testing.T) {
	table, _, _ := buildSpeakTable(t)
	first := Encode(table)
	second := Encode(table)
	assert.Equal(t, first, second)
}
