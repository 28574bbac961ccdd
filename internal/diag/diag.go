// Package diag defines the diagnostic model shared by every compiler stage:
// a severity, a stable code, the owning unit, an optional source range, and
// human-readable text. The shape deliberately mirrors hcl.Diagnostic so HCL
// diagnostics from the logic section and expression parsing translate
// losslessly.
package diag

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
)

// Severity classifies a diagnostic. Warnings never block artifact
// generation; errors fail the owning unit.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	}
	return "unknown"
}

// Code identifies the kind of problem independently of its message text.
type Code string

const (
	CodeMalformedSection    Code = "malformed-section"
	CodeUnclosedElement     Code = "unclosed-element"
	CodeInvalidSelector     Code = "invalid-selector"
	CodeInvalidDeclaration  Code = "invalid-declaration"
	CodeUnresolvedSymbol    Code = "unresolved-symbol"
	CodeMissingRequiredProp Code = "missing-required-prop"
	CodeCircularDependency  Code = "circular-dependency"
	CodeInvalidDirective    Code = "invalid-directive"
	CodeInvalidExpression   Code = "invalid-expression"
	CodeMalformedMarkup     Code = "malformed-markup"
	CodeInvalidLogic        Code = "invalid-logic"
	CodeDependencyFailed    Code = "dependency-failed"
	CodeUnknownDirective    Code = "unknown-directive"
	CodeUnknownSlot         Code = "unknown-slot"
)

// Diagnostic is one problem report tied to a source unit.
type Diagnostic struct {
	Severity Severity
	Code     Code
	// Unit is the identifier of the source unit the diagnostic belongs to.
	Unit string
	// Subject is the source range the diagnostic points at, when known.
	Subject *hcl.Range
	Summary  string
	Detail   string
}

// Error implements the error interface so a single diagnostic can travel
// through error-returning call paths.
func (d *Diagnostic) Error() string {
	if d.Subject != nil {
		return fmt.Sprintf("%s: %s:%d,%d: %s", d.Severity, d.Unit, d.Subject.Start.Line, d.Subject.Start.Column, d.Summary)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Unit, d.Summary)
}

// List is an ordered collection of diagnostics.
type List []*Diagnostic

// Append adds d to the list and returns the extended list.
func (l List) Append(d *Diagnostic) List {
	if d == nil {
		return l
	}
	return append(l, d)
}

// Extend adds all diagnostics from other and returns the extended list.
func (l List) Extend(other List) List {
	return append(l, other...)
}

// HasErrors reports whether the list contains at least one error-severity
// diagnostic.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (l List) Errors() List {
	var out List
	for _, d := range l {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// ForUnit returns the diagnostics belonging to the given unit.
func (l List) ForUnit(unit string) List {
	var out List
	for _, d := range l {
		if d.Unit == unit {
			out = append(out, d)
		}
	}
	return out
}

// Sort orders the list by unit, then start position, then summary. Sorting
// keeps build reports stable across runs regardless of worker interleaving.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		al, bl := 0, 0
		ac, bc := 0, 0
		if a.Subject != nil {
			al, ac = a.Subject.Start.Line, a.Subject.Start.Column
		}
		if b.Subject != nil {
			bl, bc = b.Subject.Start.Line, b.Subject.Start.Column
		}
		if al != bl {
			return al < bl
		}
		if ac != bc {
			return ac < bc
		}
		return a.Summary < b.Summary
	})
}

// Error implements the error interface for an all-errors summary line.
func (l List) Error() string {
	errs := l.Errors()
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", errs[0].Error(), len(errs)-1)
}

// FromHCL converts native HCL diagnostics (logic section, expressions,
// project config) into a List attributed to the given unit and code.
func FromHCL(unit string, code Code, in hcl.Diagnostics) List {
	var out List
	for _, d := range in {
		sev := Error
		if d.Severity == hcl.DiagWarning {
			sev = Warning
		}
		out = append(out, &Diagnostic{
			Severity: sev,
			Code:     code,
			Unit:     unit,
			Subject:  d.Subject,
			Summary:  d.Summary,
			Detail:   d.Detail,
		})
	}
	return out
}
