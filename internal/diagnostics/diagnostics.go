// Package diagnostics defines the typed, source-located errors and warnings
// produced by every compiler pass.
package diagnostics

import (
	"fmt"

	"github.com/klor-lang/klor/internal/token"
)

// Phase identifies which pass of the pipeline raised a diagnostic.
type Phase string

const (
	PhaseRead        Phase = "read"
	PhaseParse       Phase = "parse"
	PhaseRoleCheck   Phase = "rolecheck"
	PhaseTypeCheck   Phase = "typecheck"
	PhaseInstrument  Phase = "instrument"
	PhaseProjection  Phase = "project"
	PhaseRuntime     Phase = "runtime"
)

// Kind is the closed set of error kinds from §7.
type Kind string

const (
	ParseError          Kind = "ParseError"
	RoleError           Kind = "RoleError"
	TypeError           Kind = "TypeError"
	DefinitionError     Kind = "DefinitionError"
	ProjectionError     Kind = "ProjectionError"
	InstrumentationError Kind = "InstrumentationError"
	RuntimeError        Kind = "RuntimeError"
)

// Severity distinguishes a fatal error from a warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Error is the single diagnostic type produced anywhere in the compiler.
// It always carries the offending source form's position, a human-readable
// reason, and enough structure for tests to assert on the Kind without
// string-matching the message.
type Error struct {
	Kind     Kind
	Phase    Phase
	Severity Severity
	Position token.Position
	Form     string // textual rendering of the offending form, for messages
	Reason   string
}

func (e *Error) Error() string {
	sev := string(e.Severity)
	if sev == "" {
		sev = string(SeverityError)
	}
	if e.Position.IsZero() {
		return fmt.Sprintf("[%s] %s (%s): %s", e.Phase, sev, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: [%s] %s (%s): %s", e.Position, e.Phase, sev, e.Kind, e.Reason)
}

// New builds a fatal diagnostic.
func New(kind Kind, phase Phase, pos token.Position, form, reason string) *Error {
	return &Error{Kind: kind, Phase: phase, Severity: SeverityError, Position: pos, Form: form, Reason: reason}
}

// Newf builds a fatal diagnostic with a formatted reason.
func Newf(kind Kind, phase Phase, pos token.Position, form, format string, args ...interface{}) *Error {
	return New(kind, phase, pos, form, fmt.Sprintf(format, args...))
}

// Warn builds a non-fatal diagnostic.
func Warn(kind Kind, phase Phase, pos token.Position, form, reason string) *Error {
	return &Error{Kind: kind, Phase: phase, Severity: SeverityWarning, Position: pos, Form: form, Reason: reason}
}

// Warnf builds a non-fatal diagnostic with a formatted reason.
func Warnf(kind Kind, phase Phase, pos token.Position, form, format string, args ...interface{}) *Error {
	return Warn(kind, phase, pos, form, fmt.Sprintf(format, args...))
}

// Bag accumulates diagnostics across a compilation run, separating fatal
// errors from warnings so a pipeline stage can continue collecting
// warnings even after an earlier stage has failed.
type Bag struct {
	Errors   []*Error
	Warnings []*Error
}

// Add records a diagnostic in the appropriate bucket based on its severity.
func (b *Bag) Add(e *Error) {
	if e == nil {
		return
	}
	if e.Severity == SeverityWarning {
		b.Warnings = append(b.Warnings, e)
		return
	}
	b.Errors = append(b.Errors, e)
}

// HasErrors reports whether any fatal diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	return len(b.Errors) > 0
}

// First returns the first fatal error, or nil.
func (b *Bag) First() *Error {
	if len(b.Errors) == 0 {
		return nil
	}
	return b.Errors[0]
}
