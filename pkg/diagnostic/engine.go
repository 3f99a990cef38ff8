package diagnostic

import (
	"fmt"
	"strings"

	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/types"
)

// HistoryLookup reports the historical acceptance rate (0..1) for a fix
// id, sourced from the fix-learning store (pkg/fixstore); a
// nil lookup is treated as "no history" (0 everywhere). Declared as an
// interface here so the engine does not import pkg/fixstore directly,
// mirroring the teacher's preference for narrow local interfaces over
// concrete cross-package dependencies.
type HistoryLookup interface {
	AcceptanceRate(fixID string) float64
}

// Engine builds Diagnostics from resolve.Result outcomes, combining the
// edit-distance suggestion ranking in suggest.go with registry-aware
// subtype reasoning and (optionally) historical fix-acceptance data.
type Engine struct {
	reg     *registry.Registry
	history HistoryLookup
}

// NewEngine creates a diagnostic engine. history may be nil.
func NewEngine(reg *registry.Registry, history HistoryLookup) *Engine {
	return &Engine{reg: reg, history: history}
}

// Build turns one resolve.Result into a Diagnostic. Only NoMatch and
// Ambiguous outcomes produce meaningful diagnostics; Success and
// InternalError are passed through as minimal records since they are not
// the condition this engine exists to explain.
func (e *Engine) Build(res resolve.Result, visibleNames []string) Diagnostic {
	switch res.Outcome {
	case resolve.Ambiguous:
		return e.buildAmbiguous(res)
	case resolve.NoMatch:
		return e.buildNoMatch(res, visibleNames)
	default:
		code := "S1100"
		if res.Outcome == resolve.InternalError {
			code = "S1199"
		}
		return Diagnostic{
			Code:     code,
			Severity: SeverityInfo,
			Span:     res.CallSite.SourceSpan,
			Human:    HumanMessage{Summary: res.Message},
		}
	}
}

func (e *Engine) buildAmbiguous(res resolve.Result) Diagnostic {
	d := Diagnostic{
		Code:     "S1101",
		Severity: SeverityError,
		Span:     res.CallSite.SourceSpan,
		Human: HumanMessage{
			Summary: fmt.Sprintf("ambiguous call to %q: %d equally specific candidates",
				res.CallSite.FunctionName, len(res.Candidates)),
			Explanation: "no single candidate is more specific than all the others " +
				"for this argument tuple; the dispatcher refuses to guess.",
		},
		Machine: MachineData{
			ErrorCategory:   "ambiguous_dispatch",
			AffectedSymbols: []string{res.CallSite.FunctionName},
		},
	}

	for _, impl := range res.Candidates {
		d.Candidates = append(d.Candidates, CandidateInfo{Implementation: impl})
	}

	d.Hypotheses = append(d.Hypotheses, Hypothesis{
		Category:    HypAmbiguousDispatch,
		Probability: 1.0,
		Explanation: "two or more implementations tie for most specific; add a " +
			"tie-breaking overload or narrow one candidate's parameter types.",
	})

	for i, impl := range res.Candidates {
		fixID := fmt.Sprintf("narrow-param-%d", i)
		d.Fixes = append(d.Fixes, Fix{
			ID:          fixID,
			Description: fmt.Sprintf("narrow a parameter type on %s to break the tie", impl.FunctionId.String()),
			Confidence:  e.confidence(fixID, 0.4),
		})
	}

	return d
}

func (e *Engine) buildNoMatch(res resolve.Result, visibleNames []string) Diagnostic {
	d := Diagnostic{
		Code:     "S1102",
		Severity: SeverityError,
		Span:     res.CallSite.SourceSpan,
		Human: HumanMessage{
			Summary: fmt.Sprintf("no applicable method for %q", res.CallSite.FunctionName),
		},
		Machine: MachineData{
			ErrorCategory:   "no_match",
			AffectedSymbols: []string{res.CallSite.FunctionName},
		},
	}

	for _, r := range res.Rejections {
		d.Candidates = append(d.Candidates, CandidateInfo{Implementation: r.Implementation, Rejection: &r})
	}

	suggestions := SuggestNames(res.CallSite.FunctionName, visibleNames, DefaultSuggestConfig())
	if len(suggestions) > 0 {
		d.Hypotheses = append(d.Hypotheses, Hypothesis{
			Category:    HypTypo,
			Probability: suggestions[0].Score,
			Explanation: fmt.Sprintf("%q is close to %q (edit distance %d)",
				res.CallSite.FunctionName, suggestions[0].Name, suggestions[0].Distance),
		})
		for i, s := range suggestions {
			d.Human.Suggestions = append(d.Human.Suggestions, fmt.Sprintf("did you mean %q?", s.Name))
			fixID := fmt.Sprintf("rename-%d", i)
			d.Fixes = append(d.Fixes, Fix{
				ID:          fixID,
				Description: fmt.Sprintf("rename call to %q", s.Name),
				Confidence:  e.confidence(fixID, s.Score),
				Edits: []FixEdit{{
					Span:        res.CallSite.SourceSpan,
					Replacement: s.Name,
				}},
			})
		}
	}

	if e.reg != nil && allArityMismatch(res.Rejections) {
		d.Hypotheses = append(d.Hypotheses, Hypothesis{
			Category:    HypWrongArgumentOrder,
			Probability: 0.3,
			Explanation: "every candidate rejected this call on arity alone; check the argument count and order.",
		})
	}

	if e.reg != nil && hasTypeMismatch(res.Rejections) {
		d.Hypotheses = append(d.Hypotheses, Hypothesis{
			Category:    HypTypeMismatch,
			Probability: 0.5,
			Explanation: typeMismatchExplanation(e.reg, res.Rejections),
		})
		d.TypeFlowChain = buildFlowChain(res.Rejections)
	}

	normalizeHypotheses(d.Hypotheses)
	return d
}

func allArityMismatch(rejections []resolve.Rejection) bool {
	if len(rejections) == 0 {
		return false
	}
	for _, r := range rejections {
		if r.Kind != resolve.WrongArity {
			return false
		}
	}
	return true
}

func hasTypeMismatch(rejections []resolve.Rejection) bool {
	for _, r := range rejections {
		if r.Kind == resolve.TypeMismatchAt {
			return true
		}
	}
	return false
}

func typeMismatchExplanation(reg *registry.Registry, rejections []resolve.Rejection) string {
	var b strings.Builder
	count := 0
	for _, r := range rejections {
		if r.Kind != resolve.TypeMismatchAt {
			continue
		}
		expectedName := typeNameOrUnknown(reg, r.Expected)
		actualName := typeNameOrUnknown(reg, r.Actual)
		if count > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "parameter %d expected %s, got %s", r.ParamIndex, expectedName, actualName)
		count++
		if count >= 3 {
			break
		}
	}
	if count == 0 {
		return "argument types do not match any candidate's parameter types."
	}
	return b.String()
}

func typeNameOrUnknown(reg *registry.Registry, id types.TypeId) string {
	info := reg.TypeInfo(id)
	if info == nil {
		return "<unknown type>"
	}
	return info.Name
}

func buildFlowChain(rejections []resolve.Rejection) []FlowStep {
	var chain []FlowStep
	for _, r := range rejections {
		if r.Kind != resolve.TypeMismatchAt {
			continue
		}
		chain = append(chain, FlowStep{
			Description:  fmt.Sprintf("argument %d", r.ParamIndex),
			ExpectedType: r.Expected,
			ActualType:   r.Actual,
		})
	}
	return chain
}

// confidence blends a base heuristic score with historical acceptance
// data when a fix-learning store is wired in; without one it degrades to
// the heuristic alone.
func (e *Engine) confidence(fixID string, base float64) float64 {
	if e.history == nil {
		return base
	}
	rate := e.history.AcceptanceRate(fixID)
	if rate == 0 {
		return base
	}
	blended := (base + rate) / 2
	if blended > 1.0 {
		blended = 1.0
	}
	return blended
}

// normalizeHypotheses sorts hypotheses by descending probability so the
// JSON projection and terminal renderer both present the most likely
// cause first, matching §4.9's "ranked" requirement.
func normalizeHypotheses(hs []Hypothesis) {
	for i := 1; i < len(hs); i++ {
		for j := i; j > 0 && hs[j].Probability > hs[j-1].Probability; j-- {
			hs[j], hs[j-1] = hs[j-1], hs[j]
		}
	}
}
