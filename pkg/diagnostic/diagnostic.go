// Package diagnostic builds layered diagnostics for resolution failures
// (§4.9): a hypothesis engine ranks plausible causes, fix suggestions are
// paired with hypotheses, and a canonical JSON projection is produced for
// machine consumers (IDEs, AI agents). Structured on the teacher's
// pkg/errors package (suggestions.go's edit-distance ranking,
// enhanced_errors.go's colored snippet rendering), generalized from
// syntax-error suggestions to dispatch-resolution diagnostics.
package diagnostic

import (
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/types"
)

// Severity mirrors the spec's error-code families (S11xx semantic, etc.).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Span locates the diagnostic in source.
type Span = signature.Span

// HumanMessage is the user-facing text block of a diagnostic.
type HumanMessage struct {
	Summary         string
	Explanation     string
	Suggestions     []string
	EducationalNote string
}

// MachineData is the structured payload for IDEs/AI agents.
type MachineData struct {
	ErrorCategory   string
	AffectedSymbols []string
	ScopeContext    string
}

// HypothesisCategory classifies a plausible root cause.
type HypothesisCategory string

const (
	HypMissingConversion  HypothesisCategory = "missing_conversion"
	HypWrongImport        HypothesisCategory = "wrong_import"
	HypTypo               HypothesisCategory = "typo"
	HypWrongArgumentOrder HypothesisCategory = "wrong_argument_order"
	HypTypeMismatch       HypothesisCategory = "type_mismatch"
	HypScopeError         HypothesisCategory = "scope_error"
	HypAmbiguousDispatch  HypothesisCategory = "ambiguous_dispatch"
)

// Hypothesis is a categorized guess at the root cause of a resolution
// failure, carrying a probability and an explanation.
type Hypothesis struct {
	Category    HypothesisCategory
	Probability float64
	Explanation string
}

// FixEdit is one local text transformation (insert cast, insert import,
// rename) an IDE can apply without reparsing.
type FixEdit struct {
	Span        Span
	Replacement string
}

// Fix is a ranked, concrete fix suggestion paired with the hypothesis
// that motivated it.
type Fix struct {
	ID          string
	Description string
	Confidence  float64
	Edits       []FixEdit
}

// ConversionCost records a candidate's per-argument conversion cost and
// method — surfaced only for suggestion purposes; never used to break a
// dispatch tie (§9 open question: implicit conversions are out of scope
// for matching).
type ConversionCost struct {
	ParamIndex int
	Cost       int
	Method     string
}

// CandidateInfo summarizes one rejected (or winning) candidate for the
// diagnostic's machine-readable payload.
type CandidateInfo struct {
	Implementation  signature.Implementation
	Rejection       *resolve.Rejection
	ConversionCosts []ConversionCost
}

// FlowStep is one recorded expression step in a type-flow chain.
type FlowStep struct {
	Description  string
	ExpectedType types.TypeId
	ActualType   types.TypeId
}

// Diagnostic is the fully-built diagnostic for one resolution failure or
// type mismatch.
type Diagnostic struct {
	Code        string
	Severity    Severity
	Span        Span
	Human       HumanMessage
	Machine     MachineData
	Hypotheses  []Hypothesis
	Fixes       []Fix
	Candidates  []CandidateInfo
	RelatedInfo []string
	// TypeFlowChain is populated only for type-mismatch diagnostics
	// (§4.9): a trace of expected-vs-actual types through recorded
	// expression steps, identifying the divergence point.
	TypeFlowChain []FlowStep
}
