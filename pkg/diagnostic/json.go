package diagnostic

import (
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
)

// JSON projects a Diagnostic into the wire schema IDE and AI-agent
// consumers read: errorCode, severity, span, message, hypotheses, fixes.
// Kept as a separate hand-built struct (rather than json tags directly on
// Diagnostic) so internal fields like ConversionCost and the rejection
// pointer can be reshaped independently of the in-process representation.
type JSON struct {
	ErrorCode   string          `json:"errorCode"`
	Severity    string          `json:"severity"`
	Span        JSONSpan        `json:"span"`
	Message     string          `json:"message"`
	Explanation string          `json:"explanation,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Hypotheses  []JSONHypothesis `json:"hypotheses,omitempty"`
	Fixes       []JSONFix       `json:"fixes,omitempty"`
	Candidates  []JSONCandidate `json:"candidates,omitempty"`
	TypeFlow    []JSONFlowStep  `json:"typeFlow,omitempty"`
	Related     []string        `json:"relatedInfo,omitempty"`
}

type JSONSpan struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
}

type JSONHypothesis struct {
	Category    string  `json:"category"`
	Probability float64 `json:"probability"`
	Explanation string  `json:"explanation"`
}

type JSONFixEdit struct {
	Span        JSONSpan `json:"span"`
	Replacement string   `json:"replacement"`
}

type JSONFix struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Confidence  float64       `json:"confidence"`
	Edits       []JSONFixEdit `json:"edits,omitempty"`
}

type JSONCandidate struct {
	FunctionName string `json:"functionName"`
	ModulePath   string `json:"modulePath"`
	RejectReason string `json:"rejectReason,omitempty"`
}

type JSONFlowStep struct {
	Description  string `json:"description"`
	ExpectedType uint32 `json:"expectedType"`
	ActualType   uint32 `json:"actualType"`
}

func spanToJSON(s signature.Span) JSONSpan {
	return JSONSpan{
		File:      s.File,
		StartLine: s.StartLine,
		StartCol:  s.StartCol,
		StartByte: s.StartByte,
		EndByte:   s.EndByte,
	}
}

// ToJSON converts d into its wire projection.
func ToJSON(d Diagnostic) JSON {
	out := JSON{
		ErrorCode:   d.Code,
		Severity:    d.Severity.String(),
		Message:     d.Human.Summary,
		Explanation: d.Human.Explanation,
		Suggestions: d.Human.Suggestions,
		Related:     d.RelatedInfo,
		Span: spanToJSON(d.Span),
	}

	for _, h := range d.Hypotheses {
		out.Hypotheses = append(out.Hypotheses, JSONHypothesis{
			Category:    string(h.Category),
			Probability: h.Probability,
			Explanation: h.Explanation,
		})
	}

	for _, f := range d.Fixes {
		jf := JSONFix{ID: f.ID, Description: f.Description, Confidence: f.Confidence}
		for _, e := range f.Edits {
			jf.Edits = append(jf.Edits, JSONFixEdit{
				Span:        spanToJSON(e.Span),
				Replacement: e.Replacement,
			})
		}
		out.Fixes = append(out.Fixes, jf)
	}

	for _, c := range d.Candidates {
		jc := JSONCandidate{
			FunctionName: c.Implementation.FunctionId.SimpleName,
			ModulePath:   c.Implementation.FunctionId.ModulePath,
		}
		if c.Rejection != nil {
			switch c.Rejection.Kind {
			case resolve.WrongArity:
				jc.RejectReason = "wrong_arity"
			case resolve.TypeMismatchAt:
				jc.RejectReason = "type_mismatch_at_param"
			}
		}
		out.Candidates = append(out.Candidates, jc)
	}

	for _, s := range d.TypeFlowChain {
		out.TypeFlow = append(out.TypeFlow, JSONFlowStep{
			Description:  s.Description,
			ExpectedType: uint32(s.ExpectedType),
			ActualType:   uint32(s.ActualType),
		})
	}

	return out
}
