// Package diagnostics checks a document for consistency problems: duplicate
// declarations, references to undefined types, a missing final line break,
// and whatever the parser reported.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/varlens/internal/syntax"
)

// Severity uses the LSP numbering, so smaller is more severe.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity accepts the String forms plus "information".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info", "information":
		return SeverityInformation, nil
	case "hint":
		return SeverityHint, nil
	}
	return 0, fmt.Errorf("diagnostics: unknown severity %q", s)
}

// Code identifies the check that produced a diagnostic.
type Code string

const (
	CodeDuplicate      Code = "duplicate-declaration"
	CodeUnknownType    Code = "unknown-type"
	CodeAmbiguousType  Code = "ambiguous-type"
	CodeMissingNewline Code = "missing-trailing-newline"
	CodeSyntax         Code = "syntax"
)

// RuleCode is the code of a finding reported by the named lint rule.
func RuleCode(rule string) Code { return Code("rule:" + rule) }

// Related points at another location relevant to a diagnostic.
type Related struct {
	Span    syntax.Span `json:"span" msgpack:"span"`
	Message string      `json:"message" msgpack:"message"`
}

// Diagnostic is one finding.
type Diagnostic struct {
	Severity Severity    `json:"severity"`
	Code     Code        `json:"code"`
	Span     syntax.Span `json:"span"`
	Message  string      `json:"message"`
	Related  []Related   `json:"related,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Span.Start, d.Severity, d.Message)
}

// Bag accumulates diagnostics, up to an optional limit.
type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag returns a Bag holding at most max items; 0 means no limit.
func NewBag(max int) *Bag {
	return &Bag{max: max}
}

// Add appends d and reports whether it was kept.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Len returns the number of diagnostics held.
func (b *Bag) Len() int { return len(b.items) }

// HasErrors reports whether any diagnostic is an error.
func (b *Bag) HasErrors() bool {
	return HasErrors(b.items)
}

// Items returns the diagnostics. The slice belongs to the Bag.
func (b *Bag) Items() []Diagnostic { return b.items }

// Sort orders by primary start position. Ties keep insertion order.
func (b *Bag) Sort() {
	SortByStart(b.items)
}

// SortByStart stably sorts diagnostics by the start of their primary span.
func SortByStart(items []Diagnostic) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Span.Start.Before(items[j].Span.Start)
	})
}

// HasErrors reports whether any of items is an error.
func HasErrors(items []Diagnostic) bool {
	for _, d := range items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
