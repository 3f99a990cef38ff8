// Package signature normalizes parser-produced function declarations into
// Implementation records and computes each one's deterministic
// specificity rank (§4.2).
package signature

import (
	"fmt"

	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/types"
)

// FunctionId identifies a dispatch family: all Implementations sharing a
// FunctionId are overloads of one another provided their ParamTypes
// differ.
type FunctionId struct {
	SimpleName string
	ModulePath string
}

func (f FunctionId) String() string {
	return fmt.Sprintf("%s::%s", f.ModulePath, f.SimpleName)
}

// Span locates a declaration in source for diagnostics.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	StartByte int
	EndByte   int
}

// Effects is an opaque bitset recording the effect set of an
// implementation; the core never interprets it beyond carrying it
// through to codegen (§1 non-goals: no effect checking).
type Effects uint64

// Implementation is one concrete declaration of a function for a specific
// parameter-type tuple.
type Implementation struct {
	FunctionId      FunctionId
	ParamTypes      []types.TypeId
	ReturnType      types.TypeId
	Effects         Effects
	SourceSpan      Span
	SpecificityRank uint32

	// Module is the declaring module's path, used by the module
	// dispatcher for visibility and conflict tracking independent of
	// FunctionId.ModulePath (which identifies the *owning* declaration,
	// not necessarily the scope it's being considered from).
	Module string
}

// Arity returns the number of declared parameters.
func (i Implementation) Arity() int { return len(i.ParamTypes) }

// Declaration is the raw, pre-normalization input from the parser layer:
// a function declaration with its parameter types already resolved to
// TypeIds (type inference/checking happens upstream; this core is
// non-goal for that, per §1).
type Declaration struct {
	FunctionId FunctionId
	ParamTypes []types.TypeId
	ReturnType types.TypeId
	Effects    Effects
	SourceSpan Span
	Module     string
}

// Analyzer normalizes Declarations into Implementations.
type Analyzer struct {
	reg *registry.Registry
}

// NewAnalyzer creates a signature analyzer bound to a type registry; the
// registry must already be in its read-only phase (types fully
// registered) since rank computation queries supertype distances.
func NewAnalyzer(reg *registry.Registry) *Analyzer {
	return &Analyzer{reg: reg}
}

// Normalize converts a Declaration into an Implementation, computing its
// specificity rank deterministically from ParamTypes so that two
// distinct implementations never tie purely by accident of registration
// order (§4.2).
//
// The rank is the sum, over parameters, of the parameter type's
// kind-weight plus its distance from the DAG root (types.KindAny acts as
// the implicit root: distance-from-root approximates "how specialized is
// this type" when no single universal root type is registered, by using
// the parameter type's own accumulated supertype-chain length instead).
func (a *Analyzer) Normalize(decl Declaration) (Implementation, error) {
	rank := uint32(0)
	for _, pt := range decl.ParamTypes {
		info := a.reg.TypeInfo(pt)
		if info == nil {
			return Implementation{}, fmt.Errorf("signature: unknown parameter type id %d in %s", pt, decl.FunctionId)
		}
		rank += uint32(info.Kind.Weight())
		rank += a.rootDistance(pt)
	}

	return Implementation{
		FunctionId:      decl.FunctionId,
		ParamTypes:      decl.ParamTypes,
		ReturnType:      decl.ReturnType,
		Effects:         decl.Effects,
		SourceSpan:      decl.SourceSpan,
		SpecificityRank: rank,
		Module:          decl.Module,
	}, nil
}

// rootDistance approximates a type's depth in the supertype DAG by
// counting the longest chain of direct supertypes reachable from it. This
// is used only to break ties deterministically between implementations
// whose parameter kinds are otherwise equal weight; it never participates
// in subtype or specificity-distance queries used by resolution itself.
func (a *Analyzer) rootDistance(id types.TypeId) uint32 {
	seen := map[types.TypeId]bool{}
	var depth func(types.TypeId) uint32
	depth = func(t types.TypeId) uint32 {
		if seen[t] {
			return 0
		}
		seen[t] = true
		info := a.reg.TypeInfo(t)
		if info == nil || len(info.DirectSupertypes) == 0 {
			return 0
		}
		var max uint32
		for _, sup := range info.DirectSupertypes {
			if d := depth(sup); d+1 > max {
				max = d + 1
			}
		}
		return max
	}
	return depth(id)
}

// NormalizeAll normalizes a batch of declarations, collecting the first
// error rather than partial results, since a signature analyzer batch
// corresponds to one module's worth of declarations that should all
// succeed or be reported together.
func (a *Analyzer) NormalizeAll(decls []Declaration) ([]Implementation, error) {
	out := make([]Implementation, 0, len(decls))
	for _, d := range decls {
		impl, err := a.Normalize(d)
		if err != nil {
			return nil, err
		}
		out = append(out, impl)
	}
	return out, nil
}
