// Package resolve implements the specificity analyzer: §4.3 of the spec,
// the heart of the dispatch core. Given a set of visible candidate
// Implementations and a call site's argument types, it selects a unique
// winner under the specificity partial order, or reports why none could
// be selected uniquely.
package resolve

import (
	"fmt"

	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/types"
)

// CallSite is a textual occurrence of a function call, as produced by the
// (out-of-scope) parser layer.
type CallSite struct {
	FunctionName string
	ArgumentTypes []types.TypeId
	SourceSpan    signature.Span
	ScopeModule   string
}

// RejectionKind classifies why a candidate failed step 1 of §4.3.
type RejectionKind int

const (
	WrongArity RejectionKind = iota
	TypeMismatchAt
)

// Rejection explains why one candidate implementation did not survive
// the filter step.
type Rejection struct {
	Implementation signature.Implementation
	Kind           RejectionKind
	ParamIndex     int // valid when Kind == TypeMismatchAt
	Expected       types.TypeId
	Actual         types.TypeId
}

// Outcome tags the shape of a ResolutionResult.
type Outcome int

const (
	Success Outcome = iota
	Ambiguous
	NoMatch
	InternalError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Ambiguous:
		return "ambiguous"
	case NoMatch:
		return "no_match"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Result is the closed tagged ResolutionResult of §3. Exactly one of the
// per-outcome fields is meaningful, selected by Outcome; this mirrors a
// tagged variant in a language with exhaustive matching (§9 "Tagged
// variants over inheritance").
type Result struct {
	Outcome Outcome

	// Success
	Implementation signature.Implementation

	// Ambiguous: the maxima of the partial order, all mutually
	// incomparable.
	Candidates []signature.Implementation

	// NoMatch
	Rejections []Rejection

	// InternalError
	Message string

	ArgumentTypes []types.TypeId
	CallSite      CallSite
}

// Error implements the error interface so InternalError results can be
// logged/wrapped uniformly. The method has a value receiver, so every
// Result satisfies error; it returns the empty string for Success,
// Ambiguous and NoMatch, which are everyday outcomes (callers switch on
// Outcome rather than treating a Result as a Go error).
func (r Result) Error() string {
	if r.Outcome != InternalError {
		return ""
	}
	return fmt.Sprintf("internal_error resolving %s: %s", r.CallSite.FunctionName, r.Message)
}

// Analyzer runs the specificity partial order over a registry's subtype
// relation.
type Analyzer struct {
	reg *registry.Registry
}

// NewAnalyzer binds a specificity analyzer to a type registry.
func NewAnalyzer(reg *registry.Registry) *Analyzer {
	return &Analyzer{reg: reg}
}

// FindMostSpecific runs the full three-step algorithm of §4.3 and
// produces a ResolutionResult. It is a pure function of (impls, argTypes,
// registry contents): the output never depends on the input order of
// impls (per the Testable Properties in §8), which is guaranteed by
// sorting the rejections of a NoMatch outcome and the maxima of an
// Ambiguous outcome deterministically before reporting them.
func (a *Analyzer) FindMostSpecific(impls []signature.Implementation, argTypes []types.TypeId, cs CallSite) Result {
	// Step 1: filter by arity and per-position subtyping.
	survivors := make([]signature.Implementation, 0, len(impls))
	rejections := make([]Rejection, 0)

	for _, impl := range impls {
		if impl.Arity() != len(argTypes) {
			rejections = append(rejections, Rejection{
				Implementation: impl,
				Kind:           WrongArity,
			})
			continue
		}

		ok := true
		for i, argType := range argTypes {
			if !a.reg.IsSubtype(argType, impl.ParamTypes[i]) {
				rejections = append(rejections, Rejection{
					Implementation: impl,
					Kind:           TypeMismatchAt,
					ParamIndex:     i,
					Expected:       impl.ParamTypes[i],
					Actual:         argType,
				})
				ok = false
				break
			}
		}
		if ok {
			survivors = append(survivors, impl)
		}
	}

	if len(survivors) == 0 {
		// Order rejections like the maxima below so the result does not
		// depend on the input order of impls.
		for i := 1; i < len(rejections); i++ {
			for j := i; j > 0 && less(rejections[j].Implementation, rejections[j-1].Implementation); j-- {
				rejections[j], rejections[j-1] = rejections[j-1], rejections[j]
			}
		}
		return Result{
			Outcome:       NoMatch,
			Rejections:    rejections,
			ArgumentTypes: argTypes,
			CallSite:      cs,
		}
	}

	// Step 2 + 3: partial order and maxima.
	maxima := a.maxima(survivors, argTypes)

	sortImplementations(maxima)

	switch len(maxima) {
	case 1:
		return Result{
			Outcome:        Success,
			Implementation: maxima[0],
			ArgumentTypes:  argTypes,
			CallSite:       cs,
		}
	default:
		return Result{
			Outcome:       Ambiguous,
			Candidates:    maxima,
			ArgumentTypes: argTypes,
			CallSite:      cs,
		}
	}
}

// strictlyMoreSpecific reports A ≻ B given argTypes: for every parameter
// position, A's parameter is no more distant from the argument type than
// B's, and strictly closer on at least one position.
func (a *Analyzer) strictlyMoreSpecific(A, B signature.Implementation, argTypes []types.TypeId) bool {
	strictSomewhere := false
	for i := range argTypes {
		dA, okA := a.reg.SpecificityDistance(argTypes[i], A.ParamTypes[i])
		dB, okB := a.reg.SpecificityDistance(argTypes[i], B.ParamTypes[i])
		// Both are guaranteed finite here since both A and B already
		// survived the step-1 filter against argTypes.
		if !okA || !okB {
			return false
		}
		if dA > dB {
			return false
		}
		if dA < dB {
			strictSomewhere = true
		}
	}
	return strictSomewhere
}

// maxima collects the set of candidates not strictly dominated by any
// other surviving candidate, i.e. the maxima of the ≻ partial order.
func (a *Analyzer) maxima(survivors []signature.Implementation, argTypes []types.TypeId) []signature.Implementation {
	dominated := make([]bool, len(survivors))
	for i := range survivors {
		for j := range survivors {
			if i == j {
				continue
			}
			if a.strictlyMoreSpecific(survivors[j], survivors[i], argTypes) {
				dominated[i] = true
				break
			}
		}
	}

	out := make([]signature.Implementation, 0, len(survivors))
	for i, impl := range survivors {
		if !dominated[i] {
			out = append(out, impl)
		}
	}
	return out
}

// sortImplementations imposes a deterministic order on a result set
// (function id, then param types, then source span) so that repeated
// runs and differing input orders produce byte-identical Ambiguous
// candidate lists, per the determinism property in §8.
func sortImplementations(impls []signature.Implementation) {
	for i := 1; i < len(impls); i++ {
		for j := i; j > 0 && less(impls[j], impls[j-1]); j-- {
			impls[j], impls[j-1] = impls[j-1], impls[j]
		}
	}
}

func less(a, b signature.Implementation) bool {
	if a.FunctionId.ModulePath != b.FunctionId.ModulePath {
		return a.FunctionId.ModulePath < b.FunctionId.ModulePath
	}
	if a.FunctionId.SimpleName != b.FunctionId.SimpleName {
		return a.FunctionId.SimpleName < b.FunctionId.SimpleName
	}
	for i := 0; i < len(a.ParamTypes) && i < len(b.ParamTypes); i++ {
		if a.ParamTypes[i] != b.ParamTypes[i] {
			return a.ParamTypes[i] < b.ParamTypes[i]
		}
	}
	if len(a.ParamTypes) != len(b.ParamTypes) {
		return len(a.ParamTypes) < len(b.ParamTypes)
	}
	if a.SourceSpan.File != b.SourceSpan.File {
		return a.SourceSpan.File < b.SourceSpan.File
	}
	return a.SourceSpan.StartByte < b.SourceSpan.StartByte
}
