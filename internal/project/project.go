// Package project implements endpoint projection (C6): given a checked
// AST (every node annotated with its rtype/rmentions by internal/check)
// and a target role, it emits a host-language AST implementing that
// role's endpoint, synthesizing the send/recv actions that realize the
// original choreography's communication and eliding every sub-expression
// the role does not participate in.
//
// A per-node-type dispatch with homomorphic reconstruction of compound
// expressions, the same shape a tree-walking evaluator uses — the
// difference is that this pass rewrites a tree into another tree
// instead of reducing it to a runtime value.
package project

import (
	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// Project returns the host-language form implementing role's endpoint
// for n, which must already be fully type-checked (every reachable node
// has a non-nil Checked()). The result has been through the cleanup pass
// (§4.6).
func Project(n ast.Node, role types.Role) ast.Node {
	return Cleanup(project(n, role))
}

func mentions(role types.Role, n ast.Node) bool {
	ch := n.Checked()
	return ch != nil && ch.RMentions.Contains(role)
}

func hasResult(role types.Role, n ast.Node) bool {
	ch := n.Checked()
	return ch != nil && types.RolesOf(ch.Rtype).Contains(role)
}

func hasResultType(role types.Role, t types.Type) bool {
	if t == nil {
		return false
	}
	return types.RolesOf(t).Contains(role)
}

// asEffect sequences proj purely for its side effects, discarding any
// result it carries, unless it is already the noop sentinel.
func asEffect(pos token.Position, proj ast.Node) ast.Node {
	if _, ok := proj.(*ast.Noop); ok {
		return proj
	}
	return ast.NewDo(pos, []ast.Node{proj, ast.NewNoop(pos)})
}

func projSeq(pos token.Position, nodes []ast.Node, role types.Role) ast.Node {
	if len(nodes) == 0 {
		return ast.NewNoop(pos)
	}
	out := make([]ast.Node, len(nodes))
	for i, n := range nodes {
		out[i] = project(n, role)
	}
	if len(out) == 1 {
		return out[0]
	}
	return ast.NewDo(pos, out)
}

func project(n ast.Node, role types.Role) ast.Node {
	pos := n.Pos()
	if !mentions(role, n) {
		return ast.NewNoop(pos)
	}
	switch v := n.(type) {
	case *ast.Narrow:
		return projectNarrow(v, role)
	case *ast.Lifting:
		return projSeq(pos, v.Body, role)
	case *ast.Copy:
		return projectCopy(v, role)
	case *ast.Pack:
		return projectPack(v, role)
	case *ast.Unpack:
		return projectUnpack(v, role)
	case *ast.ChorNode:
		return projectChor(v, role)
	case *ast.Inst:
		return projectInst(v, role)
	case *ast.AgreeNode:
		return projectAgree(v, role)
	case *ast.If:
		return projectIf(v, role)
	case *ast.Case:
		return projectCase(v, role)
	case *ast.Let:
		return projectLet(v, role)
	case *ast.Do:
		return projectDo(v, role)
	case *ast.Invoke:
		return projectInvoke(v, role)
	default:
		return projectHomomorphic(n, role)
	}
}

func projectNarrow(n *ast.Narrow, role types.Role) ast.Node {
	inner := project(n.Expr, role)
	if hasResult(role, n) {
		return inner
	}
	return asEffect(n.Pos(), inner)
}

func projectCopy(n *ast.Copy, role types.Role) ast.Node {
	pos := n.Pos()
	switch role {
	case n.Src:
		return ast.NewSend(pos, n.Dst, project(n.Expr, role))
	case n.Dst:
		recv := ast.NewRecv(pos, n.Src)
		if mentions(role, n.Expr) {
			return ast.NewDo(pos, []ast.Node{project(n.Expr, role), recv})
		}
		return recv
	default:
		return asEffect(pos, project(n.Expr, role))
	}
}

func projectPack(n *ast.Pack, role types.Role) ast.Node {
	pos := n.Pos()
	var effects, kept []ast.Node
	for _, e := range n.Exprs {
		if !mentions(role, e) {
			continue
		}
		p := project(e, role)
		if hasResult(role, e) {
			kept = append(kept, p)
		} else {
			effects = append(effects, p)
		}
	}
	vec := ast.NewPack(pos, kept)
	if len(effects) == 0 {
		return vec
	}
	return ast.NewDo(pos, append(effects, vec))
}

// filterBinder returns a copy of b retaining only the leaves whose
// declared type has a result for role, dropping empty sub-vectors; it
// returns nil if nothing of b survives.
func filterBinder(b *ast.Binder, role types.Role) *ast.Binder {
	if b == nil {
		return nil
	}
	if b.IsLeaf() {
		if hasResultType(role, b.Leaf.Type) {
			return b
		}
		return nil
	}
	var kept []*ast.Binder
	for _, c := range b.Vec {
		if fc := filterBinder(c, role); fc != nil {
			kept = append(kept, fc)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &ast.Binder{Vec: kept}
}

func projectUnpack(n *ast.Unpack, role types.Role) ast.Node {
	pos := n.Pos()
	binder := filterBinder(n.Binder, role)
	init := project(n.Init, role)
	body := projSeq(pos, n.Body, role)
	if binder == nil {
		if mentions(role, n.Init) {
			return ast.NewDo(pos, []ast.Node{init, body})
		}
		return body
	}
	return ast.NewUnpack(pos, binder, init, []ast.Node{body})
}

// FilterParams projects a definition's parameter list down to the
// binders role actually receives, the same rule projectChor applies to
// a nested choreography literal's own Params — exported so
// internal/runtime can compute a top-level defchor's per-role parameter
// list without duplicating filterBinder's recursion.
func FilterParams(params []*ast.Binder, role types.Role) []*ast.Binder {
	var out []*ast.Binder
	for _, p := range params {
		if fp := filterBinder(p, role); fp != nil {
			out = append(out, fp)
		}
	}
	return out
}

func projectChor(n *ast.ChorNode, role types.Role) ast.Node {
	pos := n.Pos()
	params := FilterParams(n.Params, role)
	body := []ast.Node{projSeq(pos, n.Body, role)}
	// The resulting ChorNode is a first-class function value in the host
	// language; internal/runtime wraps it in a Closure that pins the
	// caller's transport configuration (§4.6, §6.4) when the value is
	// actually invoked, rather than at projection time.
	return ast.NewChorNode(pos, true, n.Name, n.Signature, params, body, n.LoopID)
}

func projectInst(n *ast.Inst, role types.Role) ast.Node {
	idx := -1
	for i, r := range n.Roles {
		if r == role {
			idx = i
			break
		}
	}
	return ast.NewMakeProjection(n.Pos(), n.Name, role, idx, n.Roles)
}

func projectAgree(n *ast.AgreeNode, role types.Role) ast.Node {
	pos := n.Pos()
	resultIdx := -1
	for i, e := range n.Exprs {
		if hasResult(role, e) {
			resultIdx = i
			break
		}
	}
	var effects []ast.Node
	for i, e := range n.Exprs {
		if i == resultIdx || !mentions(role, e) {
			continue
		}
		effects = append(effects, project(e, role))
	}
	if resultIdx == -1 {
		return ast.NewDo(pos, append(effects, ast.NewNoop(pos)))
	}
	result := project(n.Exprs[resultIdx], role)
	if len(effects) == 0 {
		return result
	}
	return ast.NewDo(pos, append(effects, result))
}

func projectIf(n *ast.If, role types.Role) ast.Node {
	pos := n.Pos()
	if hasResult(role, n.Test) && (mentions(role, n.Then) || mentions(role, n.Else)) {
		return ast.NewIf(pos, project(n.Test, role), project(n.Then, role), project(n.Else, role))
	}
	return asEffect(pos, project(n.Test, role))
}

func projectCase(n *ast.Case, role types.Role) ast.Node {
	pos := n.Pos()
	anyBranch := false
	for _, cl := range n.Clauses {
		if mentions(role, cl.Expr) {
			anyBranch = true
			break
		}
	}
	if n.Default != nil && mentions(role, n.Default) {
		anyBranch = true
	}
	if !(hasResult(role, n.Test) && anyBranch) {
		return asEffect(pos, project(n.Test, role))
	}
	clauses := make([]ast.CaseClause, len(n.Clauses))
	for i, cl := range n.Clauses {
		clauses[i] = ast.CaseClause{Consts: cl.Consts, Expr: project(cl.Expr, role)}
	}
	var def ast.Node
	if n.Default != nil {
		def = project(n.Default, role)
	}
	return &ast.Case{Test: project(n.Test, role), Clauses: clauses, Default: def}
}

func projectLet(n *ast.Let, role types.Role) ast.Node {
	pos := n.Pos()
	var bindings []ast.LetBinding
	for _, b := range n.Bindings {
		if !mentions(role, b.Value) {
			continue
		}
		bindings = append(bindings, ast.LetBinding{Binder: b.Binder, Value: project(b.Value, role)})
	}
	body := []ast.Node{projSeq(pos, n.Body, role)}
	if len(bindings) == 0 {
		return body[0]
	}
	return ast.NewLet(pos, bindings, body)
}

func projectDo(n *ast.Do, role types.Role) ast.Node {
	pos := n.Pos()
	var out []ast.Node
	for i, e := range n.Exprs {
		if !mentions(role, e) && i != len(n.Exprs)-1 {
			continue
		}
		out = append(out, project(e, role))
	}
	if len(out) == 0 {
		return ast.NewNoop(pos)
	}
	if len(out) == 1 {
		return out[0]
	}
	return ast.NewDo(pos, out)
}

func projectInvoke(n *ast.Invoke, role types.Role) ast.Node {
	pos := n.Pos()
	if !mentions(role, n.Fn) {
		// role has no part in the call itself (it is not one of the
		// Agree function's roles, nor one of an Inst's concrete roles);
		// any contribution it makes is confined to evaluating arguments
		// for effect, in their textual order.
		var effects []ast.Node
		for _, a := range n.Args {
			if mentions(role, a) {
				effects = append(effects, project(a, role))
			}
		}
		if len(effects) == 0 {
			return ast.NewNoop(pos)
		}
		return ast.NewDo(pos, append(effects, ast.NewNoop(pos)))
	}
	fnProj := project(n.Fn, role)
	if _, ok := rtypeOf(n.Fn).(types.Chor); ok {
		var effects, args []ast.Node
		for _, a := range n.Args {
			if !mentions(role, a) {
				continue
			}
			p := project(a, role)
			if hasResult(role, a) {
				args = append(args, p)
			} else {
				effects = append(effects, p)
			}
		}
		invoke := ast.NewInvoke(pos, fnProj, args)
		if len(effects) == 0 {
			return invoke
		}
		return ast.NewDo(pos, append(effects, invoke))
	}
	// An Agree-typed callee: role is one of its roles, so per the
	// checker's subset rule every argument is agreement-typed over at
	// least role too — no per-argument filtering needed.
	args := make([]ast.Node, len(n.Args))
	for i, a := range n.Args {
		args[i] = project(a, role)
	}
	return ast.NewInvoke(pos, fnProj, args)
}

func rtypeOf(n ast.Node) types.Type {
	if ch := n.Checked(); ch != nil {
		return ch.Rtype
	}
	return nil
}

// projectHomomorphic handles every node whose projection is "project
// every child, keep the same shape" per §4.6's closing rule for Fn,
// collection literals and host interop: their checker rule already
// requires every child to share the node's own agreement type, so no
// child can mention role without the others also doing so.
func projectHomomorphic(n ast.Node, role types.Role) ast.Node {
	children := n.Children()
	if len(children) == 0 {
		return n
	}
	proj := make([]ast.Node, len(children))
	for i, c := range children {
		proj[i] = project(c, role)
	}
	return n.WithChildren(proj)
}
