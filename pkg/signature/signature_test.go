package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/types"
)

func TestNormalizeComputesRank(t *testing.T) {
	reg := registry.New(nil)
	animal, _ := reg.RegisterType("Animal", types.KindShapeOpen)
	dog, _ := reg.RegisterType("Dog", types.KindShapeOpen, animal)

	a := NewAnalyzer(reg)

	animalImpl, err := a.Normalize(Declaration{
		FunctionId: FunctionId{SimpleName: "speak", ModulePath: "core"},
		ParamTypes: []types.TypeId{animal},
	})
	require.NoError(t, err)

	dogImpl, err := a.Normalize(Declaration{
		FunctionId: FunctionId{SimpleName: "speak", ModulePath: "core"},
		ParamTypes: []types.TypeId{dog},
	})
	require.NoError(t, err)

	assert.Greater(t, dogImpl.SpecificityRank, animalImpl.SpecificityRank)
}

func TestNormalizeRejectsUnknownParamType(t *testing.T) {
	reg := registry.New(nil)
	a := NewAnalyzer(reg)

	_, err := a.Normalize(Declaration{
		FunctionId: FunctionId{SimpleName: "speak", ModulePath: "core"},
		ParamTypes: []types.TypeId{types.TypeId(999)},
	})
	assert.Error(t, err)
}

func TestNormalizeAllStopsOnFirstError(t *testing.T) {
	reg := registry.New(nil)
	unit, _ := reg.RegisterType("Unit", types.KindPrimitive)
	a := NewAnalyzer(reg)

	decls := []Declaration{
		{FunctionId: FunctionId{SimpleName: "f", ModulePath: "core"}, ParamTypes: []types.TypeId{unit}},
		{FunctionId: FunctionId{SimpleName: "g", ModulePath: "core"}, ParamTypes: []types.TypeId{types.TypeId(999)}},
	}
	_, err := a.NormalizeAll(decls)
	assert.Error(t, err)
}

func TestImplementationArity(t *testing.T) {
	impl := Implementation{ParamTypes: []types.TypeId{1, 2, 3}}
	assert.Equal(t, 3, impl.Arity())
}

func TestFunctionIdString(t *testing.T) {
	id := FunctionId{SimpleName: "speak", ModulePath: "core"}
	assert.Equal(t, "core::speak", id.String())
}
