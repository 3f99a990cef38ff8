package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/batch"
	"github.com/janus-lang/dispatch/pkg/dispatchengine"
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/types"
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
  - function: speak
    args: [Cat]
    module: core
`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	doc, err := batch.Load(path)
	require.NoError(t, err)
	comp, err := batch.Build(doc, nil)
	require.NoError(t, err)
	return New(comp, nil)
}

func TestResolveAllResolvesEveryCallSite(t *testing.T) {
	p := newTestPipeline(t)
	results := p.ResolveAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, resolve.Success, results[0].Outcome)
	assert.Equal(t, resolve.Success, results[1].Outcome)
}

func TestBuildTablesMaterializesSpeakFamily(t *testing.T) {
	p := newTestPipeline(t)
	tables := p.BuildTables(context.Background())
	table, ok := tables["speak"]
	require.True(t, ok)
	assert.NotEmpty(t, table.ExactMatches)
}

func TestDispatchFindsImplementationForDog(t *testing.T) {
	p := newTestPipeline(t)
	p.BuildTables(context.Background())

	dogId, _ := p.Compilation.TypeId("Dog")
	ref, src := p.Dispatch("speak", []types.TypeId{dogId})
	assert.NotEqual(t, dispatchengine.SourceMiss, src)
	assert.NotEqual(t, -1, int(ref))
}

func TestDiagnoseNoMatchUsesCodeS1102(t *testing.T) {
	p := newTestPipeline(t)
	res := resolve.Result{Outcome: resolve.NoMatch, CallSite: resolve.CallSite{FunctionName: "speak"}}
	d := p.Diagnose(context.Background(), res, []string{"speak"})
	assert.Equal(t, "S1102", d.Code)
}

func TestCloseIsSafeWithoutTracer(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.Close(context.Background()))
}
