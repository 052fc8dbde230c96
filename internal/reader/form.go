// Package reader turns source text into generic S-expression Forms —
// the untyped surface syntax the parser (internal/parser) walks to build
// the real AST. Splitting tokenization/bracket-matching from AST
// construction follows a lexer/parser split over a much smaller surface
// grammar than an infix language needs (S-expressions rather than infix
// precedence climbing).
package reader

import (
	"strings"

	"github.com/klor-lang/klor/internal/token"
)

// Form is any piece of surface syntax: an atom or a bracketed sequence.
type Form interface {
	Pos() token.Position
	formNode()
}

type base struct {
	pos token.Position
}

func (b base) Pos() token.Position { return b.pos }

// Symbol is a bare identifier, including operator-shaped ones like => or
// -> used by the role-sugar forms (§6.1).
type Symbol struct {
	base
	Name string
}

func (Symbol) formNode() {}

// Kw is a :keyword atom.
type Kw struct {
	base
	Name string
}

func (Kw) formNode() {}

// Number is a numeric literal, kept as its original text; the parser
// decides int vs. float.
type Number struct {
	base
	Text string
}

func (Number) formNode() {}

// Str is a string literal with escapes already resolved.
type Str struct {
	base
	Value string
}

func (Str) formNode() {}

// List is a parenthesized form: (a b c).
type List struct {
	base
	Elems []Form
}

func (List) formNode() {}

// Vec is a bracketed form: [a b c].
type Vec struct {
	base
	Elems []Form
}

func (Vec) formNode() {}

// SetLit is a brace form: {a b c}.
type SetLit struct {
	base
	Elems []Form
}

func (SetLit) formNode() {}

// String renders a Form back to text, used for error messages.
func String(f Form) string {
	switch v := f.(type) {
	case Symbol:
		return v.Name
	case Kw:
		return ":" + v.Name
	case Number:
		return v.Text
	case Str:
		return `"` + strings.ReplaceAll(v.Value, `"`, `\"`) + `"`
	case List:
		return "(" + joinForms(v.Elems) + ")"
	case Vec:
		return "[" + joinForms(v.Elems) + "]"
	case SetLit:
		return "{" + joinForms(v.Elems) + "}"
	default:
		return "?"
	}
}

func joinForms(fs []Form) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = String(f)
	}
	return strings.Join(parts, " ")
}
