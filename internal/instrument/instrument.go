// Package instrument implements the optional dynamic-check
// instrumentation pass (C8): given a checked top-level chor body it
// synthesizes additional AST rewriting two independent checks —
// agreement verification of agreement-typed parameters, and signature
// verification at every Inst — controlled by internal/config's Options.
// Every synthesized node is built from the same choreographic and host
// primitives (Copy, Narrow, Lifting, If, Throw, Invoke) the surface
// language itself desugars to, so the existing checker and projector
// handle it with no special casing; the caller is expected to re-run
// internal/check over the returned body, per §4.8's "the whole AST is
// re-checked because the synthetic instrumentation may widen
// rmentions."
//
// Built as a macro-expansion pass — fresh ast.Node trees constructed by
// hand rather than text-splicing — against internal/registry for the
// signature snapshot compared at an Inst site.
package instrument

import (
	"fmt"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// Instrument returns a new body for a top-level chor, with agreement and
// signature checks spliced in per opts, grounded on roles/params/body's
// already-checked shape (params' Binder leaves must already carry their
// resolved types, i.e. body has been through a successful check.Check
// pass). The original body/params are not mutated.
func Instrument(roles []types.Role, params []*ast.Binder, body []ast.Node, reg *registry.Registry, opts config.Options) ([]ast.Node, error) {
	out := body
	if opts.VerifySignature {
		rewritten := make([]ast.Node, len(out))
		for i, n := range out {
			rewritten[i] = rewriteInstSites(n, reg)
		}
		out = rewritten
	}
	if opts.VerifyAgreement.Enabled {
		prelude, err := agreementPrelude(roles, params, opts.VerifyAgreement)
		if err != nil {
			return nil, err
		}
		if len(prelude) > 0 {
			out = append(append([]ast.Node{}, prelude...), out...)
		}
	}
	return out, nil
}

// --- agreement verification --------------------------------------------

// agreementPrelude builds one check per leaf parameter binder whose
// declared type is a multi-role agreement (a single-role agreement
// trivially agrees with itself and needs no check).
func agreementPrelude(roles []types.Role, params []*ast.Binder, verify config.AgreementVerification) ([]ast.Node, error) {
	center := verify.CentralAt
	if !verify.Decentralized && center == "" {
		if len(roles) == 0 {
			return nil, diagnostics.Newf(diagnostics.InstrumentationError, diagnostics.PhaseInstrument, token.Position{}, "",
				"centralized agreement verification requires at least one role")
		}
		center = roles[0]
	}
	var out []ast.Node
	for _, p := range params {
		out = append(out, agreementChecksForBinder(p, roles, verify, center)...)
	}
	return out, nil
}

func agreementChecksForBinder(b *ast.Binder, roles []types.Role, verify config.AgreementVerification, center types.Role) []ast.Node {
	if b == nil {
		return nil
	}
	if !b.IsLeaf() {
		var out []ast.Node
		for _, c := range b.Vec {
			out = append(out, agreementChecksForBinder(c, roles, verify, center)...)
		}
		return out
	}
	agree, ok := b.Leaf.Type.(types.Agree)
	if !ok || agree.Roles.Len() < 2 {
		return nil
	}
	pos := b.Leaf.Pos
	if verify.Decentralized {
		var checks []ast.Node
		for _, r := range agree.Roles.Slice() {
			checks = append(checks, centralizedCheck(pos, b.Leaf, agree.Roles.Slice(), r))
		}
		return []ast.Node{ast.NewDo(pos, append(checks, ast.NewNoop(pos)))}
	}
	return []ast.Node{centralizedCheck(pos, b.Leaf, agree.Roles.Slice(), center)}
}

// centralizedCheck builds the classic "everyone sends a copy to center,
// center compares, mismatch throws" protocol for one parameter and one
// designated center role. Repeating this once per candidate center
// (agreementChecksForBinder's decentralized branch) is this compiler's
// reading of §4.8's "(decentralized) pairwise broadcast and each role
// compares locally" — the source text does not pin down the exact wire
// shape of the decentralized variant, so every role gets a turn as the
// comparison point instead of picking one arbitrarily (an Open Question,
// recorded in DESIGN.md).
func centralizedCheck(pos token.Position, param *ast.Binding, roles []types.Role, center types.Role) ast.Node {
	var bindings []ast.LetBinding
	var collected []ast.Node
	for _, r := range roles {
		name := fmt.Sprintf("__agree_%s_at_%s_from_%s", param.Name, center, r)
		leaf := ast.NewBinding(name, pos)
		mine := ast.NewNarrow(pos, []types.Role{r}, ast.NewLocal(pos, param.Name, param))
		var value ast.Node
		if r == center {
			value = mine
		} else {
			value = ast.NewNarrow(pos, []types.Role{center}, ast.NewCopy(pos, r, center, mine))
		}
		bindings = append(bindings, ast.LetBinding{Binder: &ast.Binder{Leaf: leaf}, Value: value})
		collected = append(collected, ast.NewLocal(pos, name, leaf))
	}

	var cmp ast.Node
	if len(collected) == 1 {
		cmp = ast.NewLifting(pos, []types.Role{center}, []ast.Node{ast.NewConst(pos, true)})
	} else {
		cmp = ast.NewLifting(pos, []types.Role{center}, []ast.Node{
			ast.NewInvoke(pos, ast.NewVar(pos, "="), collected),
		})
	}

	errArgs := append([]ast.Node{
		ast.NewConst(pos, param.Name),
		ast.NewConst(pos, string(center)),
	}, collected...)
	thenBranch := ast.NewLifting(pos, []types.Role{center}, []ast.Node{ast.NewConst(pos, nil)})
	elseBranch := ast.NewLifting(pos, []types.Role{center}, []ast.Node{
		ast.NewThrow(pos, ast.NewInvoke(pos, ast.NewVar(pos, "agreement-error"), errArgs)),
	})
	check := ast.NewIf(pos, cmp, thenBranch, elseBranch)
	return ast.NewLet(pos, bindings, []ast.Node{check})
}

// --- signature verification ---------------------------------------------

// rewriteInstSites walks n bottom-up and, at every Invoke whose callee is
// an Inst, prefixes the call with a signature-check effect comparing the
// compile-time signature snapshot (baked in as a rendered string
// constant) against whatever the registry holds for that name at
// run-time, via the host `check-signature!` builtin the runtime package
// supplies.
func rewriteInstSites(n ast.Node, reg *registry.Registry) ast.Node {
	children := n.Children()
	cur := n
	if len(children) > 0 {
		rewritten := make([]ast.Node, len(children))
		for i, c := range children {
			rewritten[i] = rewriteInstSites(c, reg)
		}
		cur = n.WithChildren(rewritten)
	}
	invoke, ok := cur.(*ast.Invoke)
	if !ok {
		return cur
	}
	inst, ok := invoke.Fn.(*ast.Inst)
	if !ok {
		return cur
	}
	def, ok := reg.Lookup(inst.Name)
	if !ok {
		return cur
	}
	pos := inst.Pos()
	rendered := registry.RenderSignature(def.Roles, def.Signature)
	check := ast.NewLifting(pos, inst.Roles, []ast.Node{
		ast.NewInvoke(pos, ast.NewVar(pos, "check-signature!"), []ast.Node{
			ast.NewConst(pos, inst.Name),
			ast.NewConst(pos, rendered),
		}),
	})
	return ast.NewDo(pos, []ast.Node{check, cur})
}
