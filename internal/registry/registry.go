// Package registry implements the definition manager (C7): a
// process-wide table of named choreographic definitions supporting
// forward declaration, self/mutual recursion, and signature-change
// detection. A global symbol table with install/lookup by name and a
// forward-declare-then-fill-in lifecycle, one entry per name shared
// across a whole compilation unit.
//
// §5 requires that concurrent compilation units serialize writes to a
// given name while readers proceed concurrently between writes; a single
// sync.RWMutex over the whole table satisfies that directly since every
// write already touches the map.
package registry

import (
	"fmt"
	"sync"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// Definition is one entry of the registry: a name, its role-parameter
// vector (interpreted positionally, §3.1), its signature, and — once
// compiled — its body.
type Definition struct {
	Name      string
	Roles     []types.Role
	Signature types.Chor
	Body      ast.Node // nil for a forward declaration
	HasBody   bool
}

// Registry is the process-wide (or, in this implementation, per-Context;
// see pipeline.Context and §9's "single context object" note) table of
// definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Lookup returns the definition named name, if any. Safe for concurrent
// use with writers.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// InstallResult reports what Install did, for the caller (the checker,
// normally) to act on.
type InstallResult struct {
	Warning  *diagnostics.Error // signature-change warning, if any
	Rollback func()             // restores the previous entry (or removes it if there was none)
}

// Install registers name's declared signature *before* its body is
// type-checked (§4.7 rule 1, "install-before-analyze"), so that
// self-references and forward mutual references inside the body resolve
// against this signature. If name was already registered with a
// structurally different (non-alpha-equivalent) signature, a warning is
// produced (§4.7 rule 3) but the install still proceeds — redefinition
// with a different signature is a warning, not an error (§6.2).
//
// The returned Rollback must be called if type-checking the body later
// fails, restoring the registry to its pre-Install state, per §7's
// propagation policy ("full rollback" on a fatal compile-time error).
func (r *Registry) Install(pos token.Position, name string, roles []types.Role, sig types.Chor) InstallResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.defs[name]

	var warning *diagnostics.Error
	if existed && !alphaEquivalent(previous.Roles, previous.Signature, roles, sig) {
		warning = diagnostics.Warnf(
			diagnostics.DefinitionError, diagnostics.PhaseTypeCheck, pos, name,
			"signature of %q changed from %s to %s; recompile dependents",
			name, renderSignature(previous.Roles, previous.Signature), renderSignature(roles, sig),
		)
	}

	r.defs[name] = &Definition{Name: name, Roles: roles, Signature: sig}

	return InstallResult{
		Warning: warning,
		Rollback: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if existed {
				r.defs[name] = previous
			} else {
				delete(r.defs, name)
			}
		},
	}
}

// Commit attaches a checked body to an already-Installed definition,
// completing a forward declaration (§4.7 rule 2) or a fresh definition.
func (r *Registry) Commit(name string, body ast.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.defs[name]
	if !ok {
		return fmt.Errorf("registry: commit of unregistered definition %q", name)
	}
	d.Body = body
	d.HasBody = true
	return nil
}

// IsForwardDeclared reports whether name is registered but has no body
// yet.
func (r *Registry) IsForwardDeclared(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return ok && !d.HasBody
}

// alphaEquivalent compares two signatures "after substituting role names
// by position index" (§4.7 rule 3 / §3.1): same arity of role parameters,
// same arity and structure of Chor params/ret/aux once each signature's
// own role vector is renamed to a canonical P0, P1, ... sequence.
func alphaEquivalent(rolesA []types.Role, sigA types.Chor, rolesB []types.Role, sigB types.Chor) bool {
	if len(rolesA) != len(rolesB) {
		return false
	}
	canonA := canonicalize(rolesA, sigA)
	canonB := canonicalize(rolesB, sigB)
	return types.Equal(canonA, canonB)
}

func canonicalize(roles []types.Role, sig types.Chor) types.Type {
	canon := make([]types.Role, len(roles))
	for i := range roles {
		canon[i] = types.Role(fmt.Sprintf("P%d", i))
	}
	sigma := types.SubstituteByPosition(roles, canon)
	return types.Substitute(sig, sigma)
}

// RenderSignature is the exported form of renderSignature, used by
// internal/instrument (to embed a compile-time signature snapshot at
// every Inst call site) and internal/runtime (to re-render the same
// name's current entry at call time for comparison) so both sides of
// that comparison are guaranteed to use the same rendering.
func RenderSignature(roles []types.Role, sig types.Chor) string {
	return renderSignature(roles, sig)
}

func renderSignature(roles []types.Role, sig types.Chor) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return fmt.Sprintf("%v%s", names, sig.String())
}

// FillTopLevelAux resolves an `unspecified` top-level aux set per §4.7
// rule 4: it defaults to every role parameter minus the signature's
// primary roles (those appearing in params/ret). Self-referencing
// definitions must instead give the aux set explicitly — see
// RequireExplicitAuxForSelfReference.
func FillTopLevelAux(roleParams []types.Role, sig types.Chor) types.Chor {
	if !sig.IsAuxUnspecified() {
		return sig
	}
	primary := types.RolesOf(types.Tuple{Elems: append(append([]types.Type{}, sig.Params...), sig.Ret)})
	all := types.NewRoleSet(roleParams...)
	return sig.WithAux(all.Subtract(primary))
}
