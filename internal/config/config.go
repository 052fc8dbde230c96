// Package config holds the nested compiler configuration from §6.3
// (dynamic-check instrumentation toggles) as a typed value plus a
// process-wide default and a scoped-override stack, the `with-opts` /
// `alter-opts!` forms of the surface language. "Explicit setting beats
// default" precedence, generalized from a pair of process-wide mode
// booleans to a small struct so scopes can nest.
package config

import "github.com/klor-lang/klor/internal/types"

// AgreementVerification selects how (or whether) the dynamic-check
// instrumentation pass (C8) verifies an agreement-typed chor parameter.
type AgreementVerification struct {
	Enabled      bool
	Decentralized bool       // true: pairwise broadcast + local compare
	CentralAt    types.Role // set when neither Off nor Decentralized: centralized at this role
}

// Off reports whether agreement verification is disabled.
func (a AgreementVerification) Off() bool { return !a.Enabled }

// Options is the nested configuration map of §6.3.
type Options struct {
	VerifyAgreement AgreementVerification
	VerifySignature bool
}

// DefaultOptions is the configuration in effect with no overrides: both
// checks off, matching §6.3's documented defaults.
func DefaultOptions() Options {
	return Options{}
}

// Source identifies where an Options came from, for diagnostics.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceFlag    Source = "flag"
	SourceScope   Source = "with-opts"
)

// Registry is the process-wide configuration state: a default value
// (mutated by alter-opts!) and a stack of scoped overrides pushed by
// with-opts. Held by pipeline.Context, rather than bare package-level
// variables, so concurrent compilations never share mutable global
// state (§5, §9).
type Registry struct {
	def   Options
	stack []Options
}

// NewRegistry returns a Registry seeded with the given default.
func NewRegistry(def Options) *Registry {
	return &Registry{def: def}
}

// Current returns the innermost scoped Options, or the default if no
// scope is active.
func (r *Registry) Current() Options {
	if len(r.stack) > 0 {
		return r.stack[len(r.stack)-1]
	}
	return r.def
}

// SetDefault implements `alter-opts!`: replaces the process-wide default
// seen by any compilation not inside a with-opts scope.
func (r *Registry) SetDefault(o Options) {
	r.def = o
}

// Push implements `with-opts`: opens a new configuration scope around a
// set of definitions.
func (r *Registry) Push(o Options) {
	r.stack = append(r.stack, o)
}

// Pop closes the innermost with-opts scope.
func (r *Registry) Pop() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// With runs fn with o pushed as the current scope, always popping
// afterward even if fn panics.
func (r *Registry) With(o Options, fn func()) {
	r.Push(o)
	defer r.Pop()
	fn()
}
