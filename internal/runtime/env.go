package runtime

import (
	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/runtime/value"
)

// Env is the runtime counterpart of ast.Env: a chain of binding frames
// keyed by the *ast.Binding pointer the parser stamped onto every
// ast.Local, not by surface name — the same "process-unique identity,
// not name, resolves a reference" discipline ast.Binding's own doc
// comment describes for the checker, reused here so shadowing a name in
// a nested Let can never read back the outer binding's value.
type Env struct {
	vars   map[*ast.Binding]value.Value
	parent *Env
}

// NewEnv returns an empty top-level environment (a Chor/defchor's
// parameter frame).
func NewEnv() *Env {
	return &Env{vars: make(map[*ast.Binding]value.Value)}
}

// Child opens a new binding frame nested under e, for a Let/Fn/Unpack
// body.
func (e *Env) Child() *Env {
	return &Env{vars: make(map[*ast.Binding]value.Value), parent: e}
}

// Bind records v for binding in this frame.
func (e *Env) Bind(binding *ast.Binding, v value.Value) {
	e.vars[binding] = v
}

// Lookup resolves binding against e, walking outward through parents.
func (e *Env) Lookup(binding *ast.Binding) (value.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[binding]; ok {
			return v, true
		}
	}
	return nil, false
}

// bindBinder destructures v against b into env, recursing through
// nested Tuple-shaped binders (§4.3's "Unpack binder" leaves, also used
// for Chor/Fn parameter lists).
func bindBinder(env *Env, b *ast.Binder, v value.Value) {
	if b == nil {
		return
	}
	if b.IsLeaf() {
		env.Bind(b.Leaf, v)
		return
	}
	tuple, ok := v.(value.Tuple)
	if !ok {
		return
	}
	for i, child := range b.Vec {
		if i < len(tuple.Elems) {
			bindBinder(env, child, tuple.Elems[i])
		}
	}
}
