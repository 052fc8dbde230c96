// Package check implements the bidirectional type checker (C5). It runs
// post-order over the AST, extending the typing environment as
// bindings are introduced, and annotates every node with its
// choreographic type (rtype) and the set of roles that participate in
// its evaluation (rmentions), per §4.5.
//
// A type-switch dispatch over ast.Node, threading a typing environment
// and accumulating diagnostics as it walks; the bidirectional split
// between declared function signatures and inferred bodies is this
// package's Chor-signature-checks / everything-else-infers rule.
package check

import (
	"fmt"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/types"
)

// Checker threads the definition registry (for Inst lookups) and an
// error bag through a single-pass post-order check.
type Checker struct {
	Registry *registry.Registry
	errs     []*diagnostics.Error
}

// New returns a Checker resolving Inst references against reg.
func New(reg *registry.Registry) *Checker {
	return &Checker{Registry: reg}
}

// Errors returns every TypeError/DefinitionError collected so far.
func (c *Checker) Errors() []*diagnostics.Error { return c.errs }

func (c *Checker) fail(kind diagnostics.Kind, n ast.Node, format string, args ...interface{}) {
	c.errs = append(c.errs, diagnostics.Newf(kind, diagnostics.PhaseTypeCheck, n.Pos(), fmt.Sprintf("%T", n), format, args...))
}

func (c *Checker) typeErr(n ast.Node, format string, args ...interface{}) {
	c.fail(diagnostics.TypeError, n, format, args...)
}

// Check infers/checks n under env, annotates it (and every descendant)
// via ast.SetChecked, and returns its rtype. On any contract violation
// it records a diagnostic and returns a best-effort placeholder type so
// the walk can continue collecting further errors in sibling subtrees.
func (c *Checker) Check(n ast.Node, env *ast.Env) types.Type {
	rtype, mentions := c.infer(n, env)
	ast.SetChecked(n, rtype, mentions, env)
	return rtype
}

func rtypeOf(n ast.Node) types.Type {
	if ch := n.Checked(); ch != nil {
		return ch.Rtype
	}
	return nil
}

func mentionsOf(n ast.Node) types.RoleSet {
	if ch := n.Checked(); ch != nil {
		return ch.RMentions
	}
	return types.RoleSet{}
}

func (c *Checker) infer(n ast.Node, env *ast.Env) (types.Type, types.RoleSet) {
	switch v := n.(type) {
	case *ast.Narrow:
		return c.checkNarrow(v, env)
	case *ast.Lifting:
		return c.checkLifting(v, env)
	case *ast.Copy:
		return c.checkCopy(v, env)
	case *ast.Pack:
		return c.checkPack(v, env)
	case *ast.Unpack:
		return c.checkUnpack(v, env)
	case *ast.ChorNode:
		return c.checkChor(v, env)
	case *ast.Inst:
		return c.checkInst(v, env)
	case *ast.AgreeNode:
		return c.checkAgree(v, env)
	case *ast.If:
		return c.checkIf(v, env)
	case *ast.Case:
		return c.checkCase(v, env)
	case *ast.Invoke:
		return c.checkInvoke(v, env)
	case *ast.Let:
		return c.checkLet(v, env)
	case *ast.Do:
		return c.checkDo(v, env)
	case *ast.Fn:
		return c.checkFn(v.Body, env)
	case *ast.FnMethod:
		return c.checkFn(v.Body, env)
	case *ast.VectorNode:
		return c.checkCollection(v, v.Elems, env)
	case *ast.SetNode:
		return c.checkCollection(v, v.Elems, env)
	case *ast.MapNode:
		return c.checkMap(v, env)
	case *ast.Local:
		t := v.Binding.Type
		if t == nil {
			t = types.Agree{Roles: env.Mask}
		}
		// Unlike Var/Const, a Local's declared type can diverge from the
		// ambient mask (e.g. a parameter bound under one role set,
		// referenced deeper inside a Lifting for another): rmentions
		// follows the general roles_of(rtype) rule, not the mask, or a
		// Copy/Narrow reading the Local downstream would see the wrong
		// source roles.
		return t, types.RolesOf(t)
	case *ast.Var:
		// A bare Var is a host-global reference (e.g. a Clojure-style
		// `inc`), mask-typed exactly like Const (§4.5). The registry's
		// choreography namespace is independent of the host's var
		// namespace, so there is no name collision to detect here: a
		// choreography can only ever be referenced through Inst, which
		// the parser already enforces by construction (the `(name
		// [roles] args...)` sugar is the only surface form that produces
		// an Inst node).
		return types.Agree{Roles: env.Mask}, env.Mask
	case *ast.Const:
		return types.Agree{Roles: env.Mask}, env.Mask
	case *ast.Quote:
		return types.Agree{Roles: env.Mask}, env.Mask
	case *ast.Throw:
		c.Check(v.Expr, env)
		return types.Agree{Roles: env.Mask}, env.Mask
	case *ast.Try:
		return c.checkTry(v, env)
	default:
		// Remaining host-interop variants (New/InstanceCall/.../WithMeta)
		// are purely structural: check every child for effect, and take
		// on the current mask's agreement type, matching the homogeneous
		// rule given to Fn/collections in §4.5.
		mentions := types.RoleSet{}
		for _, child := range n.Children() {
			c.Check(child, env)
			mentions = mentions.Union(mentionsOf(child))
		}
		if mentions.Len() == 0 {
			mentions = env.Mask
		}
		return types.Agree{Roles: env.Mask}, mentions
	}
}

// --- choreographic variants ---------------------------------------------

func (c *Checker) checkNarrow(n *ast.Narrow, env *ast.Env) (types.Type, types.RoleSet) {
	exprType := c.Check(n.Expr, env)
	roles := types.NewRoleSet(n.Roles...)
	agree, ok := exprType.(types.Agree)
	if !ok {
		c.typeErr(n, "narrow requires an agreement-typed expression, got %s", exprType)
		return types.Agree{Roles: roles}, roles
	}
	if !roles.IsSubsetOf(agree.Roles) {
		c.typeErr(n, "narrow roles %s are not a subset of %s", roles, agree.Roles)
	}
	out := types.Agree{Roles: roles}
	mentions := roles.Union(mentionsOf(n.Expr))
	return out, mentions
}

func (c *Checker) checkLifting(n *ast.Lifting, env *ast.Env) (types.Type, types.RoleSet) {
	childEnv := ast.NewChildEnv(env)
	childEnv.Mask = types.NewRoleSet(n.Roles...)
	var last types.Type
	mentions := types.RoleSet{}
	for _, b := range n.Body {
		last = c.Check(b, childEnv)
		mentions = mentions.Union(mentionsOf(b))
	}
	if last == nil {
		last = types.Agree{Roles: childEnv.Mask}
	}
	// Lifting's own declared roles are always mentioned (§4.5's "a pure
	// Lifting does not by itself mention" carve-out is about roles_of its
	// own rtype, which may not equal its declared roles — it is not a
	// license to drop real communication performed inside its body, e.g.
	// an explicit Copy/Narrow nested under a Lifting for unrelated roles
	// still has to surface here or projection would silently drop it).
	return last, types.NewRoleSet(n.Roles...).Union(mentions)
}

func (c *Checker) checkCopy(n *ast.Copy, env *ast.Env) (types.Type, types.RoleSet) {
	exprType := c.Check(n.Expr, env)
	agree, ok := exprType.(types.Agree)
	if !ok {
		c.typeErr(n, "copy requires an agreement-typed expression, got %s", exprType)
		return types.Agree{Roles: types.NewRoleSet(n.Src, n.Dst)}, types.NewRoleSet(n.Src, n.Dst)
	}
	if !agree.Roles.Contains(n.Src) {
		c.typeErr(n, "copy source %q is not among the expression's roles %s", n.Src, agree.Roles)
	}
	if agree.Roles.Contains(n.Dst) {
		c.typeErr(n, "copy destination %q already holds the expression's value", n.Dst)
	}
	out := types.Agree{Roles: agree.Roles.Union(types.NewRoleSet(n.Dst))}
	mentions := out.Roles.Union(mentionsOf(n.Expr))
	return out, mentions
}

func (c *Checker) checkPack(n *ast.Pack, env *ast.Env) (types.Type, types.RoleSet) {
	elems := make([]types.Type, len(n.Exprs))
	mentions := types.RoleSet{}
	for i, e := range n.Exprs {
		elems[i] = c.Check(e, env)
		mentions = mentions.Union(mentionsOf(e))
	}
	return types.Tuple{Elems: elems}, mentions
}

func (c *Checker) checkUnpack(n *ast.Unpack, env *ast.Env) (types.Type, types.RoleSet) {
	initType := c.Check(n.Init, env)
	tuple, ok := initType.(types.Tuple)
	if !ok {
		c.typeErr(n, "unpack requires a tuple-typed initializer, got %s", initType)
	} else if err := bindBinder(n.Binder, tuple); err != nil {
		c.typeErr(n, "%s", err)
	}
	var last types.Type
	mentions := mentionsOf(n.Init)
	for _, b := range n.Body {
		last = c.Check(b, env)
		mentions = mentions.Union(mentionsOf(b))
	}
	if last == nil {
		last = types.Agree{Roles: env.Mask}
	}
	return last, mentions
}

// bindBinder assigns each leaf of binder the Tuple element type at its
// recorded position path (§4.3/§4.5).
func bindBinder(b *ast.Binder, t types.Type) error {
	if b.IsLeaf() {
		elem, err := elementAt(t, b.Path)
		if err != nil {
			return err
		}
		b.Leaf.Type = elem
		return nil
	}
	for _, child := range b.Vec {
		if err := bindBinder(child, t); err != nil {
			return err
		}
	}
	return nil
}

func elementAt(t types.Type, path []int) (types.Type, error) {
	cur := t
	for _, idx := range path {
		tuple, ok := cur.(types.Tuple)
		if !ok {
			return nil, fmt.Errorf("binder position path %v does not match tuple shape of %s", path, t)
		}
		if idx < 0 || idx >= len(tuple.Elems) {
			return nil, fmt.Errorf("binder position %d out of range in %s", idx, t)
		}
		cur = tuple.Elems[idx]
	}
	return cur, nil
}

func (c *Checker) checkChor(n *ast.ChorNode, env *ast.Env) (types.Type, types.RoleSet) {
	sigExpr, ok := n.Signature.(*ast.TypeExpr)
	if !ok {
		c.typeErr(n, "chor node has no parsed signature")
		return types.Agree{Roles: env.Mask}, env.Mask
	}
	sig, ok := sigExpr.Type.(types.Chor)
	if !ok {
		c.typeErr(n, "chor signature must be an arrow type")
		return types.Agree{Roles: env.Mask}, env.Mask
	}
	return c.CheckBody(n, sig, n.Params, n.Body, env)
}

// CheckBody implements the shared Chor-body contract of §4.5 (arity,
// per-parameter declared types, body-vs-return-type equality, and
// computed aux = body.rmentions minus primary roles): it is used both
// for a nested `chor` literal's body and, by the pipeline driver, for a
// top-level defchor's body, since both have exactly the same shape
// (signature, parameter binders, body expressions) without a defchor
// having to be wrapped in an ast.ChorNode of its own.
func (c *Checker) CheckBody(errNode ast.Node, sig types.Chor, params []*ast.Binder, body []ast.Node, env *ast.Env) (types.Type, types.RoleSet) {
	if len(params) != len(sig.Params) {
		c.typeErr(errNode, "chor declares %d parameters but signature has %d", len(params), len(sig.Params))
	}
	bodyEnv := ast.NewChildEnv(env)
	for i, p := range params {
		if i < len(sig.Params) {
			assignBinderType(p, sig.Params[i])
		}
	}
	var bodyType types.Type
	for _, b := range body {
		bodyType = c.Check(b, bodyEnv)
	}
	if bodyType == nil {
		bodyType = types.Agree{Roles: bodyEnv.Mask}
	}
	if !types.Equal(bodyType, sig.Ret) {
		c.typeErr(errNode, "chor body type %s does not match declared return type %s", bodyType, sig.Ret)
	}

	primary := types.RolesOf(types.Tuple{Elems: append(append([]types.Type{}, sig.Params...), sig.Ret)})
	computedAux := types.RoleSet{}
	if len(body) > 0 {
		computedAux = mentionsOf(body[len(body)-1]).Subtract(primary)
	}
	finalSig := types.Normalize(types.NewChor(sig.Params, sig.Ret, computedAux)).(types.Chor)
	// The Chor node's own mentions are its primary + computed aux roles;
	// it is a value, not itself a communication action, so it mentions
	// exactly the roles its signature names.
	mentions := primary.Union(computedAux)
	return finalSig, mentions
}

func assignBinderType(b *ast.Binder, t types.Type) {
	if b.IsLeaf() {
		b.Leaf.Type = t
		return
	}
	tuple, ok := t.(types.Tuple)
	if !ok || len(tuple.Elems) != len(b.Vec) {
		return
	}
	for i, child := range b.Vec {
		assignBinderType(child, tuple.Elems[i])
	}
}

func (c *Checker) checkInst(n *ast.Inst, env *ast.Env) (types.Type, types.RoleSet) {
	def, ok := c.Registry.Lookup(n.Name)
	if !ok {
		c.fail(diagnostics.DefinitionError, n, "undefined choreography %q", n.Name)
		return types.Agree{Roles: types.NewRoleSet(n.Roles...)}, types.NewRoleSet(n.Roles...)
	}
	if len(def.Roles) != len(n.Roles) {
		c.typeErr(n, "inst of %q expects %d roles, got %d", n.Name, len(def.Roles), len(n.Roles))
		return types.Agree{Roles: types.NewRoleSet(n.Roles...)}, types.NewRoleSet(n.Roles...)
	}
	sigma := types.SubstituteByPosition(def.Roles, n.Roles)
	instantiated := types.Substitute(def.Signature, sigma)
	return instantiated, types.NewRoleSet(n.Roles...)
}

func (c *Checker) checkAgree(n *ast.AgreeNode, env *ast.Env) (types.Type, types.RoleSet) {
	union := types.RoleSet{}
	mentions := types.RoleSet{}
	for _, e := range n.Exprs {
		t := c.Check(e, env)
		agree, ok := t.(types.Agree)
		if !ok {
			c.typeErr(n, "agree! operands must be agreement-typed, got %s", t)
			continue
		}
		if !union.Disjoint(agree.Roles) {
			c.typeErr(n, "agree! operands must have disjoint role sets, overlap at %s", agree.Roles)
		}
		union = union.Union(agree.Roles)
		mentions = mentions.Union(mentionsOf(e))
	}
	return types.Agree{Roles: union}, mentions.Union(union)
}

func (c *Checker) checkIf(n *ast.If, env *ast.Env) (types.Type, types.RoleSet) {
	testType := c.Check(n.Test, env)
	agree, ok := testType.(types.Agree)
	if !ok {
		c.typeErr(n, "if guard must be agreement-typed, got %s", testType)
		agree = types.Agree{Roles: env.Mask}
	}
	thenType := c.Check(n.Then, env)
	elseType := c.Check(n.Else, env)
	if !types.Equal(thenType, elseType) {
		c.typeErr(n, "if branches must share a type: %s vs %s", thenType, elseType)
	}
	branchMentions := mentionsOf(n.Then).Union(mentionsOf(n.Else))
	if !branchMentions.IsSubsetOf(agree.Roles) {
		c.typeErr(n, "branch roles %s exceed guard's knowledge %s (knowledge of choice)", branchMentions, agree.Roles)
	}
	mentions := mentionsOf(n.Test).Union(branchMentions)
	return thenType, mentions
}

func (c *Checker) checkCase(n *ast.Case, env *ast.Env) (types.Type, types.RoleSet) {
	testType := c.Check(n.Test, env)
	agree, ok := testType.(types.Agree)
	if !ok {
		c.typeErr(n, "case guard must be agreement-typed, got %s", testType)
		agree = types.Agree{Roles: env.Mask}
	}
	var resultType types.Type
	mentions := mentionsOf(n.Test)
	for _, cl := range n.Clauses {
		for _, cst := range cl.Consts {
			c.Check(cst, env)
		}
		t := c.Check(cl.Expr, env)
		if resultType == nil {
			resultType = t
		} else if !types.Equal(resultType, t) {
			c.typeErr(n, "case arms must share a type: %s vs %s", resultType, t)
		}
		if !mentionsOf(cl.Expr).IsSubsetOf(agree.Roles) {
			c.typeErr(n, "case arm roles exceed guard's knowledge (knowledge of choice)")
		}
		mentions = mentions.Union(mentionsOf(cl.Expr))
	}
	if n.Default != nil {
		t := c.Check(n.Default, env)
		if resultType != nil && !types.Equal(resultType, t) {
			c.typeErr(n, "case default must share the arms' type: %s vs %s", resultType, t)
		}
		mentions = mentions.Union(mentionsOf(n.Default))
	}
	if resultType == nil {
		resultType = types.Agree{Roles: agree.Roles}
	}
	return resultType, mentions
}

func (c *Checker) checkInvoke(n *ast.Invoke, env *ast.Env) (types.Type, types.RoleSet) {
	fnType := c.Check(n.Fn, env)
	mentions := mentionsOf(n.Fn)
	switch fn := fnType.(type) {
	case types.Agree:
		for _, a := range n.Args {
			at := c.Check(a, env)
			mentions = mentions.Union(mentionsOf(a))
			aAgree, ok := at.(types.Agree)
			if !ok {
				c.typeErr(n, "argument to an agreement-typed function must itself be agreement-typed, got %s", at)
				continue
			}
			if !fn.Roles.IsSubsetOf(aAgree.Roles) {
				c.typeErr(n, "argument agreement %s does not cover function's roles %s", aAgree.Roles, fn.Roles)
			}
		}
		return fn, mentions
	case types.Chor:
		if len(n.Args) != len(fn.Params) {
			c.typeErr(n, "invoke expects %d arguments, got %d", len(fn.Params), len(n.Args))
		}
		for i, a := range n.Args {
			at := c.Check(a, env)
			mentions = mentions.Union(mentionsOf(a))
			if i < len(fn.Params) && !types.Equal(at, fn.Params[i]) {
				c.typeErr(n, "argument %d has type %s, expected %s", i, at, fn.Params[i])
			}
		}
		return fn.Ret, mentions
	default:
		c.typeErr(n, "cannot invoke a value of type %s", fnType)
		for _, a := range n.Args {
			c.Check(a, env)
			mentions = mentions.Union(mentionsOf(a))
		}
		return types.Agree{Roles: env.Mask}, mentions
	}
}

func (c *Checker) checkLet(n *ast.Let, env *ast.Env) (types.Type, types.RoleSet) {
	letEnv := ast.NewChildEnv(env)
	mentions := types.RoleSet{}
	for _, b := range n.Bindings {
		t := c.Check(b.Value, letEnv)
		mentions = mentions.Union(mentionsOf(b.Value))
		assignBinderType(b.Binder, t)
	}
	var last types.Type
	for _, b := range n.Body {
		last = c.Check(b, letEnv)
		mentions = mentions.Union(mentionsOf(b))
	}
	if last == nil {
		last = types.Agree{Roles: env.Mask}
	}
	return last, mentions
}

func (c *Checker) checkDo(n *ast.Do, env *ast.Env) (types.Type, types.RoleSet) {
	var last types.Type
	mentions := types.RoleSet{}
	for _, e := range n.Exprs {
		last = c.Check(e, env)
		mentions = mentions.Union(mentionsOf(e))
	}
	if last == nil {
		last = types.Agree{Roles: env.Mask}
	}
	return last, mentions
}

func (c *Checker) checkFn(body []ast.Node, env *ast.Env) (types.Type, types.RoleSet) {
	fnEnv := ast.NewChildEnv(env)
	want := types.Agree{Roles: env.Mask}
	for _, b := range body {
		t := c.Check(b, fnEnv)
		if !types.Equal(t, want) {
			c.typeErr(b, "fn body expressions must have the current mask's agreement type %s, got %s", want, t)
		}
	}
	return want, env.Mask
}

func (c *Checker) checkCollection(n ast.Node, elems []ast.Node, env *ast.Env) (types.Type, types.RoleSet) {
	want := types.Agree{Roles: env.Mask}
	mentions := env.Mask
	for _, e := range elems {
		t := c.Check(e, env)
		if !types.Equal(t, want) {
			c.typeErr(e, "collection elements must have the current mask's agreement type %s, got %s", want, t)
		}
		mentions = mentions.Union(mentionsOf(e))
	}
	return want, mentions
}

func (c *Checker) checkMap(n *ast.MapNode, env *ast.Env) (types.Type, types.RoleSet) {
	want := types.Agree{Roles: env.Mask}
	mentions := env.Mask
	for _, p := range n.Pairs {
		kt := c.Check(p.Key, env)
		vt := c.Check(p.Val, env)
		if !types.Equal(kt, want) || !types.Equal(vt, want) {
			c.typeErr(n, "map entries must have the current mask's agreement type %s", want)
		}
		mentions = mentions.Union(mentionsOf(p.Key)).Union(mentionsOf(p.Val))
	}
	return want, mentions
}

// CheckDefinition checks a top-level defchor's body against its declared
// signature and role-parameter vector, returning the aux-resolved Chor
// type to install in the registry. body must be non-empty (forward
// declarations never reach the checker).
func (c *Checker) CheckDefinition(roles []types.Role, sig types.Chor, params []*ast.Binder, body []ast.Node) types.Chor {
	env := &ast.Env{Roles: roles, Mask: types.NewRoleSet(roles...), Locals: map[string]*ast.Binding{}}
	rtype, _ := c.CheckBody(body[0], sig, params, body, env)
	return rtype.(types.Chor)
}

func (c *Checker) checkTry(n *ast.Try, env *ast.Env) (types.Type, types.RoleSet) {
	mentions := types.RoleSet{}
	var last types.Type
	for _, b := range n.Body {
		last = c.Check(b, env)
		mentions = mentions.Union(mentionsOf(b))
	}
	for _, cat := range n.Catches {
		catchEnv := ast.NewChildEnv(env)
		for _, b := range cat.Body {
			c.Check(b, catchEnv)
			mentions = mentions.Union(mentionsOf(b))
		}
	}
	for _, b := range n.Finally {
		c.Check(b, env)
		mentions = mentions.Union(mentionsOf(b))
	}
	if last == nil {
		last = types.Agree{Roles: env.Mask}
	}
	return last, mentions
}
