package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/types"
)

func TestRegisterTypeAndLookup(t *testing.T) {
	r := New(nil)
	id, err := r.RegisterType("Int", types.KindPrimitive)
	require.NoError(t, err)

	got, ok := r.Lookup("Int")
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, r.Len())
}

func TestIsSubtypeReflexive(t *testing.T) {
	r := New(nil)
	id, err := r.RegisterType("Int", types.KindPrimitive)
	require.NoError(t, err)
	assert.True(t, r.IsSubtype(id, id))
}

func TestIsSubtypeNominalChain(t *testing.T) {
	r := New(nil)
	animal, err := r.RegisterType("Animal", types.KindShapeOpen)
	require.NoError(t, err)
	dog, err := r.RegisterType("Dog", types.KindShapeOpen, animal)
	require.NoError(t, err)
	puppy, err := r.RegisterType("Puppy", types.KindShapeOpen, dog)
	require.NoError(t, err)

	assert.True(t, r.IsSubtype(dog, animal))
	assert.True(t, r.IsSubtype(puppy, animal))
	assert.False(t, r.IsSubtype(animal, dog))
}

func TestSpecificityDistanceCountsEdges(t *testing.T) {
	r := New(nil)
	animal, _ := r.RegisterType("Animal", types.KindShapeOpen)
	dog, _ := r.RegisterType("Dog", types.KindShapeOpen, animal)
	puppy, _ := r.RegisterType("Puppy", types.KindShapeOpen, dog)

	d, ok := r.SpecificityDistance(dog, animal)
	require.True(t, ok)
	assert.Equal(t, uint32(1), d)

	d, ok = r.SpecificityDistance(puppy, animal)
	require.True(t, ok)
	assert.Equal(t, uint32(2), d)

	d, ok = r.SpecificityDistance(puppy, puppy)
	require.True(t, ok)
	assert.Equal(t, uint32(0), d)
}

func TestSpecificityDistanceUnrelatedTypes(t *testing.T) {
	r := New(nil)
	dog, _ := r.RegisterType("Dog", types.KindShapeOpen)
	cat, _ := r.RegisterType("Cat", types.KindShapeOpen)

	_, ok := r.SpecificityDistance(dog, cat)
	assert.False(t, ok)
}

func TestAddSupertypesRejectsCycle(t *testing.T) {
	r := New(nil)
	a := r.DeclareType("A", types.KindShapeOpen)
	b := r.DeclareType("B", types.KindShapeOpen)
	require.NoError(t, r.AddSupertypes(b, a))

	err := r.AddSupertypes(a, b)
	var cyc *CyclicSupertypesError
	require.ErrorAs(t, err, &cyc)
}

func TestAddSupertypesUnknownType(t *testing.T) {
	r := New(nil)
	a := r.DeclareType("A", types.KindShapeOpen)

	err := r.AddSupertypes(a, types.TypeId(999))
	var unk *UnknownTypeError
	require.ErrorAs(t, err, &unk)
}

func TestStructuralSubtypeOpenShape(t *testing.T) {
	r := New(nil)
	strId, _ := r.RegisterType("String", types.KindPrimitive)

	named := r.DeclareType("Named", types.KindShapeOpen)
	require.NoError(t, r.SetFields(named, []types.Field{{Name: "name", Type: strId, Required: true}}))

	person := r.DeclareType("Person", types.KindShapeOpen)
	require.NoError(t, r.SetFields(person, []types.Field{
		{Name: "name", Type: strId, Required: true},
		{Name: "age", Type: strId, Required: false},
	}))

	assert.True(t, r.IsSubtype(person, named))
}

func TestStructuralSubtypeClosedShapeRejectsExtraFields(t *testing.T) {
	r := New(nil)
	strId, _ := r.RegisterType("String", types.KindPrimitive)

	named := r.DeclareType("Named", types.KindShapeClosed)
	require.NoError(t, r.SetFields(named, []types.Field{{Name: "name", Type: strId, Required: true}}))

	person := r.DeclareType("Person", types.KindShapeOpen)
	require.NoError(t, r.SetFields(person, []types.Field{
		{Name: "name", Type: strId, Required: true},
		{Name: "age", Type: strId, Required: false},
	}))

	assert.False(t, r.IsSubtype(person, named))
}

func TestSumTypeSubtypeRequiresAllVariants(t *testing.T) {
	r := New(nil)
	animal, _ := r.RegisterType("Animal", types.KindShapeOpen)
	dog, _ := r.RegisterType("Dog", types.KindShapeOpen, animal)
	cat, _ := r.RegisterType("Cat", types.KindShapeOpen, animal)
	unrelated, _ := r.RegisterType("Rock", types.KindShapeOpen)

	petKind := r.DeclareType("Pet", types.KindSumClosed)
	require.NoError(t, r.SetVariants(petKind, []types.TypeId{dog, cat}))
	assert.True(t, r.IsSubtype(petKind, animal))

	mixedKind := r.DeclareType("Mixed", types.KindSumClosed)
	require.NoError(t, r.SetVariants(mixedKind, []types.TypeId{dog, unrelated}))
	assert.False(t, r.IsSubtype(mixedKind, animal))
}

func TestSetFieldsRejectsNonShapeKind(t *testing.T) {
	r := New(nil)
	id := r.DeclareType("Int", types.KindPrimitive)
	err := r.SetFields(id, []types.Field{{Name: "x"}})
	assert.Error(t, err)
}

func TestSetVariantsRejectsNonSumKind(t *testing.T) {
	r := New(nil)
	id := r.DeclareType("Int", types.KindPrimitive)
	err := r.SetVariants(id, []types.TypeId{id})
	assert.Error(t, err)
}

func TestTypeInfoReturnsCopy(t *testing.T) {
	r := New(nil)
	id, _ := r.RegisterType("Int", types.KindPrimitive)
	info := r.TypeInfo(id)
	require.NotNil(t, info)
	info.Name = "Mutated"

	fresh := r.TypeInfo(id)
	assert.Equal(t, "Int", fresh.Name)
}

func TestTypeInfoUnknownIdReturnsNil(t *testing.T) {
	r := New(nil)
	assert.Nil(t, r.TypeInfo(types.TypeId(999)))
}
