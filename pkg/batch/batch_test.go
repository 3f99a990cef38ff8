package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/resolve"
)

const sampleYAML = `
types:
  - name: Animal
    kind: shape_open
  - name: Dog
    kind: shape_open
    supertypes: [Animal]
  - name: Cat
    kind: shape_open
    supertypes: [Animal]
  - name: Unit
    kind: primitive

modules:
  - name: core
    path: core
    version: "1.0.0"

implementations:
  - module: core
    function: speak
    params: [Animal]
    return: Unit
  - module: core
    function: speak
    params: [Dog]
    return: Unit

exports:
  - module: core
    name: speak
    visibility: public

call_sites:
  - function: speak
    args: [Dog]
    module: core
    file: main.janus
    line: 3
    col: 1
  - function: speak
    args: [Cat]
    module: core
    file: main.janus
    line: 4
    col: 1
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestBuildWiresTypesModulesAndImplementations(t *testing.T) {
	doc, err := Load(writeSample(t))
	require.NoError(t, err)

	comp, err := Build(doc, nil)
	require.NoError(t, err)

	dogId, ok := comp.TypeId("Dog")
	require.True(t, ok)
	animalId, ok := comp.TypeId("Animal")
	require.True(t, ok)
	assert.True(t, comp.Registry.IsSubtype(dogId, animalId))

	require.Len(t, comp.Implementations, 2)
	require.Len(t, comp.CallSites, 2)
}

func TestBuildResolvesCallSitesThroughModuleDispatcher(t *testing.T) {
	doc, err := Load(writeSample(t))
	require.NoError(t, err)
	comp, err := Build(doc, nil)
	require.NoError(t, err)

	dogCall := comp.CallSites[0]
	candidates := comp.CandidatesFor(dogCall)
	require.NotEmpty(t, candidates)

	res := comp.Resolver.FindMostSpecific(candidates, dogCall.ArgumentTypes, dogCall)
	assert.Equal(t, resolve.Success, res.Outcome)
	assert.Equal(t, "speak", res.Implementation.FunctionId.SimpleName)
	assert.Len(t, res.Implementation.ParamTypes, 1)

	catCall := comp.CallSites[1]
	catCandidates := comp.CandidatesFor(catCall)
	catRes := comp.Resolver.FindMostSpecific(catCandidates, catCall.ArgumentTypes, catCall)
	assert.Equal(t, resolve.Success, catRes.Outcome)
}

func TestBuildRejectsUnknownSupertype(t *testing.T) {
	badYAML := `
types:
  - name: Dog
    kind: shape_open
    supertypes: [Ghost]
`
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(badYAML), 0o644))
	doc, err := Load(path)
	require.NoError(t, err)

	_, err = Build(doc, nil)
	assert.Error(t, err)
}
