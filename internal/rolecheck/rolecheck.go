// Package rolecheck implements the role validator (C4): a post-order
// walk asserting that every explicit role reference in the AST (on
// Narrow, Lifting, Copy and Inst) is a legal, in-scope, non-duplicated
// identifier. The definition's own role-parameter vector is not checked
// here; the parser rejects an empty or duplicated one.
//
// A semantic-analysis pass that walks the parsed tree post-order,
// validating a narrower well-formedness property ahead of full type
// checking.
package rolecheck

import (
	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/types"
)

// Check validates every role reference reachable from n against the
// scope roles, returning every RoleError found (it does not stop at the
// first one, so a single pass surfaces every offending form).
func Check(n ast.Node, scopeRoles []types.Role) []*diagnostics.Error {
	v := &validator{scope: types.NewRoleSet(scopeRoles...)}
	ast.Walk(n, func(node ast.Node) { node.Accept(v) })
	return v.errs
}

type validator struct {
	ast.NoopVisitor
	scope types.RoleSet
	errs  []*diagnostics.Error
}

func (v *validator) validate(n ast.Node, roles []types.Role, form string) {
	seen := make(map[types.Role]bool, len(roles))
	for _, r := range roles {
		if r == "" {
			v.errs = append(v.errs, diagnostics.New(diagnostics.RoleError, diagnostics.PhaseRoleCheck, n.Pos(), form, "role name must not be empty"))
			continue
		}
		if seen[r] {
			v.errs = append(v.errs, diagnostics.Newf(diagnostics.RoleError, diagnostics.PhaseRoleCheck, n.Pos(), form, "duplicate role %q", r))
			continue
		}
		seen[r] = true
		if !v.scope.Contains(r) {
			v.errs = append(v.errs, diagnostics.Newf(diagnostics.RoleError, diagnostics.PhaseRoleCheck, n.Pos(), form, "role %q is not in scope", r))
		}
	}
}

func (v *validator) VisitNarrow(n *ast.Narrow)   { v.validate(n, n.Roles, "narrow") }
func (v *validator) VisitLifting(n *ast.Lifting) { v.validate(n, n.Roles, "lifting") }
func (v *validator) VisitCopy(n *ast.Copy)       { v.validate(n, []types.Role{n.Src, n.Dst}, "copy") }
func (v *validator) VisitInst(n *ast.Inst)       { v.validate(n, n.Roles, "inst") }
