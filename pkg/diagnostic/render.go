package diagnostic

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// render.go reproduces the teacher's enhanced_errors.go layout (header,
// source snippet with line numbers, caret, suggested fix) but routes
// every color through github.com/fatih/color the way cmd/janusc's parent
// CLI does elsewhere, rather than the hand-rolled ANSI escape constants
// the teacher package defines locally.
var (
	headerColor  = color.New(color.Bold, color.FgRed)
	gutterColor  = color.New(color.FgHiBlack)
	sourceColor  = color.New(color.FgCyan)
	caretColor   = color.New(color.FgRed)
	fixColor     = color.New(color.FgGreen)
	hypothColor  = color.New(color.FgYellow)
	warnColor    = color.New(color.Bold, color.FgYellow)
)

// RenderTerminal renders d as colored text for a terminal, with
// sourceLine optionally supplying the offending line for the snippet
// block (callers without source access may pass "").
func RenderTerminal(d Diagnostic, sourceLine string) string {
	var b strings.Builder

	hc := headerColor
	if d.Severity == SeverityWarning {
		hc = warnColor
	}
	hc.Fprintf(&b, "%s", strings.ToUpper(d.Severity.String()))
	fmt.Fprintf(&b, " [%s]", d.Code)
	if d.Span.File != "" {
		fmt.Fprintf(&b, " in %s", d.Span.File)
	}
	fmt.Fprintf(&b, " at line %d, column %d\n", d.Span.StartLine, d.Span.StartCol)

	fmt.Fprintf(&b, "\n%s\n", d.Human.Summary)

	if sourceLine != "" {
		gutterColor.Fprintf(&b, "  %4d | ", d.Span.StartLine)
		sourceColor.Fprintf(&b, "%s\n", sourceLine)
		if d.Span.StartCol > 0 {
			spaces := strings.Repeat(" ", d.Span.StartCol-1)
			fmt.Fprintf(&b, "       | %s", spaces)
			caretColor.Fprintf(&b, "^ here\n")
		}
	}

	if d.Human.Explanation != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Human.Explanation)
	}

	if len(d.Hypotheses) > 0 {
		b.WriteString("\n")
		hypothColor.Fprintf(&b, "Likely cause")
		b.WriteString(":\n")
		for _, h := range d.Hypotheses {
			fmt.Fprintf(&b, "  (%.0f%%) %s: %s\n", h.Probability*100, h.Category, h.Explanation)
		}
	}

	if len(d.Human.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range d.Human.Suggestions {
			fixColor.Fprintf(&b, "  %s\n", s)
		}
	}

	if d.Human.EducationalNote != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Human.EducationalNote)
	}

	return b.String()
}

// RenderPlain renders d without any ANSI escapes, for log files and
// non-tty consumers.
func RenderPlain(d Diagnostic) string {
	c := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = c }()
	return RenderTerminal(d, "")
}
