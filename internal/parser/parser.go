// Package parser builds the choreographic AST (internal/ast) from
// reader.Forms (C3). It knows the role-sugar desugarings of §6.1, the
// chor*/defchor signature-adjustment rule of §4.3, gives every Chor a
// fresh loop id and threads the lexical environment. It records no
// tail/non-tail context.
//
// A recursive-descent parser: it receives a flat token/form stream and
// an environment, and dispatches to one parse function per syntactic
// form, producing ast.Node values with source positions attached
// throughout.
package parser

import (
	"fmt"
	"strconv"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// perr builds a ParseError-kind diagnostic naming the offending form, per
// §7: the parser never guesses, it raises a precise error.
func perr(pos token.Position, form, reason string, args ...interface{}) error {
	return diagnostics.Newf(diagnostics.ParseError, diagnostics.PhaseParse, pos, form, reason, args...)
}

var klorSpecials = map[string]bool{
	"narrow": true, "lifting": true, "copy": true, "pack": true,
	"unpack*": true, "chor*": true, "inst": true, "agree!": true,
}

// Parser turns Forms into AST nodes against a (possibly nested)
// ast.Env. One Parser is used for an entire compilation unit and holds
// only the file name; the environment is passed explicitly to each parse
// function. Loop ids come from a package-level counter (see newLoopID),
// and no tail-position context is tracked.
type Parser struct {
	file string
}

// New returns a Parser attributing diagnostics to file.
func New(file string) *Parser {
	return &Parser{file: file}
}

// TopLevelDef is one parsed `defchor` form, ready for installation in
// the registry (internal/registry).
type TopLevelDef struct {
	Pos     token.Position
	Name    string
	Roles   []types.Role
	Sig     types.Chor
	Params  []*ast.Binder
	Body    []ast.Node // nil for a forward declaration
	HasBody bool
}

// ParseTopLevel parses every `(defchor ...)` form at the top of a
// compilation unit.
func (p *Parser) ParseTopLevel(forms []reader.Form) ([]TopLevelDef, error) {
	var defs []TopLevelDef
	for _, f := range forms {
		list, ok := f.(reader.List)
		if !ok || len(list.Elems) == 0 {
			return nil, perr(f.Pos(), reader.String(f), "expected a top-level (defchor ...) form")
		}
		head, ok := list.Elems[0].(reader.Symbol)
		if !ok || head.Name != "defchor" {
			return nil, perr(f.Pos(), reader.String(f), "expected 'defchor', found %s", reader.String(list.Elems[0]))
		}
		def, err := p.parseDefchor(list)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// parseDefchor handles `(defchor Name [Role+] Signature [Param*] Expr*)`
// per §6.2.
func (p *Parser) parseDefchor(list reader.List) (TopLevelDef, error) {
	elems := list.Elems
	if len(elems) < 4 {
		return TopLevelDef{}, perr(list.Pos(), reader.String(list), "defchor requires name, role vector and signature")
	}
	nameSym, ok := elems[1].(reader.Symbol)
	if !ok {
		return TopLevelDef{}, perr(elems[1].Pos(), reader.String(elems[1]), "defchor name must be a symbol")
	}
	roleVec, ok := elems[2].(reader.Vec)
	if !ok {
		return TopLevelDef{}, perr(elems[2].Pos(), reader.String(elems[2]), "defchor role list must be a vector")
	}
	roles, err := parseRoleVec(roleVec)
	if err != nil {
		return TopLevelDef{}, err
	}

	sigSurface, err := toSurface(elems[3])
	if err != nil {
		return TopLevelDef{}, err
	}
	sigType, err := types.Parse(sigSurface)
	if err != nil {
		return TopLevelDef{}, perr(elems[3].Pos(), reader.String(elems[3]), "%s", err)
	}
	sig, ok := sigType.(types.Chor)
	if !ok {
		return TopLevelDef{}, perr(elems[3].Pos(), reader.String(elems[3]), "defchor signature must be an arrow type")
	}
	// Top-level aux is preserved as written (§4.3); only nested Chor
	// types inside params/ret get their unspecified aux defaulted here.
	sig = adjustNestedAux(sig)

	env := &ast.Env{Roles: roles, Mask: types.NewRoleSet(roles...), Locals: make(map[string]*ast.Binding)}

	rest := elems[4:]
	if len(rest) == 0 {
		// forward declaration without a parameter vector
		return TopLevelDef{Pos: list.Pos(), Name: nameSym.Name, Roles: roles, Sig: sig}, nil
	}
	paramVec, ok := rest[0].(reader.Vec)
	if !ok {
		return TopLevelDef{}, perr(rest[0].Pos(), reader.String(rest[0]), "defchor parameter list must be a vector")
	}
	params := make([]*ast.Binder, len(paramVec.Elems))
	for i, pf := range paramVec.Elems {
		b, err := p.parseBinder(pf, nil, env)
		if err != nil {
			return TopLevelDef{}, err
		}
		params[i] = b
	}

	bodyForms := rest[1:]
	def := TopLevelDef{
		Pos: list.Pos(), Name: nameSym.Name, Roles: roles, Sig: sig, Params: params,
	}
	if len(bodyForms) == 0 {
		return def, nil // forward declaration
	}

	body, err := p.parseBody(bodyForms, env)
	if err != nil {
		return TopLevelDef{}, err
	}
	def.Body = body
	def.HasBody = true
	return def, nil
}

// parseBody parses a sequence of expressions in order. Every expression
// is parsed the same way; the last one is not marked as a tail position.
func (p *Parser) parseBody(forms []reader.Form, env *ast.Env) ([]ast.Node, error) {
	out := make([]ast.Node, len(forms))
	for i, f := range forms {
		n, err := p.parseExpr(f, env)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// parseExpr dispatches a single Form to the right node constructor.
func (p *Parser) parseExpr(f reader.Form, env *ast.Env) (ast.Node, error) {
	switch v := f.(type) {
	case reader.Number:
		return p.parseNumber(v)
	case reader.Str:
		return ast.NewConst(v.Pos(), v.Value), nil
	case reader.Kw:
		return ast.NewConst(v.Pos(), keyword(v.Name)), nil
	case reader.Symbol:
		return p.resolveSymbol(v, env)
	case reader.Vec:
		return p.parseVector(v, env)
	case reader.SetLit:
		return p.parseSet(v, env)
	case reader.List:
		return p.parseList(v, env)
	default:
		return nil, perr(f.Pos(), reader.String(f), "unrecognized form")
	}
}

func (p *Parser) parseNumber(n reader.Number) (ast.Node, error) {
	if i, err := strconv.ParseInt(n.Text, 10, 64); err == nil {
		return ast.NewConst(n.Pos(), i), nil
	}
	f, err := strconv.ParseFloat(n.Text, 64)
	if err != nil {
		return nil, perr(n.Pos(), n.Text, "malformed number literal")
	}
	return ast.NewConst(n.Pos(), f), nil
}

// keyword is the internal representation of a :kw literal.
type keyword string

// resolveSymbol turns a bare symbol into a Local (bound name), a Var
// (unbound global/definition reference), or a role-qualified lifting
// sugar `Role/name`.
func (p *Parser) resolveSymbol(sym reader.Symbol, env *ast.Env) (ast.Node, error) {
	name := sym.Name
	if b, ok := env.Lookup(name); ok {
		return ast.NewLocal(sym.Pos(), name, b), nil
	}
	// Role '/' Name sugar: (lifting [Role] Name)
	if idx := indexByte(name, '/'); idx >= 0 {
		roleName, rest := name[:idx], name[idx+1:]
		if env.HasRole(types.Role(roleName)) {
			inner, err := p.resolveSymbol(reader.Symbol{Name: rest}, env)
			if err != nil {
				return nil, err
			}
			return ast.NewLifting(sym.Pos(), []types.Role{types.Role(roleName)}, []ast.Node{inner}), nil
		}
	}
	return ast.NewVar(sym.Pos(), name), nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func (p *Parser) parseVector(v reader.Vec, env *ast.Env) (ast.Node, error) {
	elems, err := p.parseBody(v.Elems, env)
	if err != nil {
		return nil, err
	}
	return &ast.VectorNode{Elems: elems}, nil
}

func (p *Parser) parseSet(s reader.SetLit, env *ast.Env) (ast.Node, error) {
	elems, err := p.parseBody(s.Elems, env)
	if err != nil {
		return nil, err
	}
	return &ast.SetNode{Elems: elems}, nil
}

func (p *Parser) parseList(list reader.List, env *ast.Env) (ast.Node, error) {
	if len(list.Elems) == 0 {
		return nil, perr(list.Pos(), "()", "empty list is not a legal expression")
	}
	head := list.Elems[0]

	if sym, ok := head.(reader.Symbol); ok {
		// A role name in call position desugars to Lifting (§6.1).
		if env.HasRole(types.Role(sym.Name)) {
			body, err := p.parseBody(list.Elems[1:], env)
			if err != nil {
				return nil, err
			}
			return ast.NewLifting(list.Pos(), []types.Role{types.Role(sym.Name)}, body), nil
		}
		// A=>B / A->B operator sugar.
		if src, dst, ok := splitCopyOperator(sym.Name, "=>"); ok && env.HasRole(src) && env.HasRole(dst) {
			return p.parseCopySugar(list, src, dst, env)
		}
		if src, dst, ok := splitCopyOperator(sym.Name, "->"); ok && env.HasRole(src) && env.HasRole(dst) {
			copyNode, err := p.parseCopySugar(list, src, dst, env)
			if err != nil {
				return nil, err
			}
			return ast.NewNarrow(list.Pos(), []types.Role{dst}, copyNode), nil
		}
		if klorSpecials[sym.Name] {
			return p.parseSpecial(list, sym.Name, env)
		}
		switch sym.Name {
		case "let":
			return p.parseLet(list, env)
		case "do":
			return p.parseDo(list, env)
		case "if":
			return p.parseIf(list, env)
		case "chor":
			return p.parseChorLiteral(list, env)
		case "quote":
			if len(list.Elems) != 2 {
				return nil, perr(list.Pos(), reader.String(list), "quote takes exactly one form")
			}
			return &ast.Quote{Form: list.Elems[1]}, nil
		case "throw":
			if len(list.Elems) != 2 {
				return nil, perr(list.Pos(), reader.String(list), "throw takes exactly one expression")
			}
			expr, err := p.parseExpr(list.Elems[1], env)
			if err != nil {
				return nil, err
			}
			return &ast.Throw{Expr: expr}, nil
		}
	}

	// Role-vector-prefixed invoke sugar: (name [roles] args...) desugars
	// to (Invoke (Inst name roles) args...) (§4.3).
	if sym, ok := head.(reader.Symbol); ok && len(list.Elems) >= 2 {
		if roleVec, ok := list.Elems[1].(reader.Vec); ok && allRoleSymbols(roleVec, env) {
			roles, err := parseRoleVec(roleVec)
			if err != nil {
				return nil, err
			}
			inst := ast.NewInst(head.Pos(), sym.Name, roles)
			args, err := p.parseBody(list.Elems[2:], env)
			if err != nil {
				return nil, err
			}
			return ast.NewInvoke(list.Pos(), inst, args), nil
		}
	}

	// Plain invoke: (fn args...).
	fn, err := p.parseExpr(head, env)
	if err != nil {
		return nil, err
	}
	args, err := p.parseBody(list.Elems[1:], env)
	if err != nil {
		return nil, err
	}
	return ast.NewInvoke(list.Pos(), fn, args), nil
}

func allRoleSymbols(v reader.Vec, env *ast.Env) bool {
	if len(v.Elems) == 0 {
		return false
	}
	for _, e := range v.Elems {
		sym, ok := e.(reader.Symbol)
		if !ok || !env.HasRole(types.Role(sym.Name)) {
			return false
		}
	}
	return true
}

// splitCopyOperator recognizes a symbol of the shape "A<sep>B" where A
// and B are bare names, e.g. "Buyer=>Seller".
func splitCopyOperator(name, sep string) (src, dst types.Role, ok bool) {
	idx := indexSubstr(name, sep)
	if idx <= 0 || idx+len(sep) >= len(name) {
		return "", "", false
	}
	return types.Role(name[:idx]), types.Role(name[idx+len(sep):]), true
}

func indexSubstr(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func (p *Parser) parseCopySugar(list reader.List, src, dst types.Role, env *ast.Env) (ast.Node, error) {
	if len(list.Elems) != 2 {
		return nil, perr(list.Pos(), reader.String(list), "copy sugar takes exactly one argument expression")
	}
	arg, err := p.parseExpr(list.Elems[1], env)
	if err != nil {
		return nil, err
	}
	return ast.NewCopy(list.Pos(), src, dst, arg), nil
}

func (p *Parser) parseSpecial(list reader.List, name string, env *ast.Env) (ast.Node, error) {
	switch name {
	case "narrow":
		roles, body, err := p.parseRoleHeaded(list, env)
		if err != nil {
			return nil, err
		}
		if len(body) != 1 {
			return nil, perr(list.Pos(), reader.String(list), "narrow takes exactly one expression")
		}
		return ast.NewNarrow(list.Pos(), roles, body[0]), nil

	case "lifting":
		roles, body, err := p.parseRoleHeaded(list, env)
		if err != nil {
			return nil, err
		}
		return ast.NewLifting(list.Pos(), roles, body), nil

	case "copy":
		if len(list.Elems) != 3 {
			return nil, perr(list.Pos(), reader.String(list), "copy requires [src dst] and one expression")
		}
		roleVec, ok := list.Elems[1].(reader.Vec)
		if !ok || len(roleVec.Elems) != 2 {
			return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "copy role list must be exactly [src dst]")
		}
		roles, err := parseRoleVec(roleVec)
		if err != nil {
			return nil, err
		}
		arg, err := p.parseExpr(list.Elems[2], env)
		if err != nil {
			return nil, err
		}
		return ast.NewCopy(list.Pos(), roles[0], roles[1], arg), nil

	case "pack":
		if len(list.Elems) < 2 {
			return nil, perr(list.Pos(), reader.String(list), "pack requires at least one expression")
		}
		exprs, err := p.parseBody(list.Elems[1:], env)
		if err != nil {
			return nil, err
		}
		return ast.NewPack(list.Pos(), exprs), nil

	case "unpack*":
		return p.parseUnpack(list, env)

	case "chor*":
		return p.parseChorStar(list, env)

	case "inst":
		if len(list.Elems) != 3 {
			return nil, perr(list.Pos(), reader.String(list), "inst requires a name and a role vector")
		}
		nameSym, ok := list.Elems[1].(reader.Symbol)
		if !ok {
			return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "inst name must be a symbol")
		}
		roleVec, ok := list.Elems[2].(reader.Vec)
		if !ok {
			return nil, perr(list.Elems[2].Pos(), reader.String(list.Elems[2]), "inst role list must be a vector")
		}
		roles, err := parseRoleVec(roleVec)
		if err != nil {
			return nil, err
		}
		return ast.NewInst(list.Pos(), nameSym.Name, roles), nil

	case "agree!":
		if len(list.Elems) < 2 {
			return nil, perr(list.Pos(), reader.String(list), "agree! requires at least one expression")
		}
		exprs, err := p.parseBody(list.Elems[1:], env)
		if err != nil {
			return nil, err
		}
		return ast.NewAgreeNode(list.Pos(), exprs), nil
	}
	return nil, perr(list.Pos(), reader.String(list), "unimplemented special form %q", name)
}

// parseRoleHeaded parses the common "(kw [Role+] Expr*)" shape shared by
// narrow and lifting.
func (p *Parser) parseRoleHeaded(list reader.List, env *ast.Env) ([]types.Role, []ast.Node, error) {
	if len(list.Elems) < 2 {
		return nil, nil, perr(list.Pos(), reader.String(list), "expected a role vector")
	}
	roleVec, ok := list.Elems[1].(reader.Vec)
	if !ok {
		return nil, nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "expected a role vector")
	}
	roles, err := parseRoleVec(roleVec)
	if err != nil {
		return nil, nil, err
	}
	body, err := p.parseBody(list.Elems[2:], env)
	if err != nil {
		return nil, nil, err
	}
	return roles, body, nil
}

func (p *Parser) parseUnpack(list reader.List, env *ast.Env) (ast.Node, error) {
	if len(list.Elems) < 2 {
		return nil, perr(list.Pos(), reader.String(list), "unpack* requires a [binder init] vector")
	}
	spec, ok := list.Elems[1].(reader.Vec)
	if !ok || len(spec.Elems) != 2 {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "unpack* requires exactly [binder init]")
	}
	init, err := p.parseExpr(spec.Elems[1], env)
	if err != nil {
		return nil, err
	}
	binder, err := p.parseBinder(spec.Elems[0], nil, env)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(list.Elems[2:], env)
	if err != nil {
		return nil, err
	}
	return ast.NewUnpack(list.Pos(), binder, init, body), nil
}

// parseBinder builds a (possibly nested) Binder, installing every leaf
// binding into env and recording its position path (§4.3).
func (p *Parser) parseBinder(f reader.Form, path []int, env *ast.Env) (*ast.Binder, error) {
	switch v := f.(type) {
	case reader.Symbol:
		b := ast.NewBinding(v.Name, v.Pos())
		env.Locals[v.Name] = b
		return &ast.Binder{Leaf: b, Path: append([]int{}, path...)}, nil
	case reader.Vec:
		children := make([]*ast.Binder, len(v.Elems))
		for i, el := range v.Elems {
			childPath := append(append([]int{}, path...), i)
			child, err := p.parseBinder(el, childPath, env)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return &ast.Binder{Vec: children, Path: append([]int{}, path...)}, nil
	default:
		return nil, perr(f.Pos(), reader.String(f), "binder must be a symbol or a vector of binders")
	}
}

func (p *Parser) parseChorLiteral(list reader.List, env *ast.Env) (ast.Node, error) {
	// (chor Type [params...] body...): an anonymous first-class
	// choreography value. Per E5, any nested Chor type here must give
	// its aux explicitly (no defaulting for non-top-level Chor types).
	if len(list.Elems) < 3 {
		return nil, perr(list.Pos(), reader.String(list), "chor requires a signature and a parameter vector")
	}
	sigSurface, err := toSurface(list.Elems[1])
	if err != nil {
		return nil, err
	}
	sigType, err := types.Parse(sigSurface)
	if err != nil {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "%s", err)
	}
	sig, ok := sigType.(types.Chor)
	if !ok {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "chor signature must be an arrow type")
	}
	if sig.IsAuxUnspecified() {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "nested chor signature must give its aux set explicitly")
	}

	paramVec, ok := list.Elems[2].(reader.Vec)
	if !ok {
		return nil, perr(list.Elems[2].Pos(), reader.String(list.Elems[2]), "chor parameter list must be a vector")
	}
	bodyEnv := ast.NewChildEnv(env)
	params := make([]*ast.Binder, len(paramVec.Elems))
	for i, pf := range paramVec.Elems {
		b, err := p.parseBinder(pf, nil, bodyEnv)
		if err != nil {
			return nil, err
		}
		params[i] = b
	}
	body, err := p.parseBody(list.Elems[3:], bodyEnv)
	if err != nil {
		return nil, err
	}
	sigNode := ast.NewTypeExpr(list.Elems[1].Pos(), sig)
	return ast.NewChorNode(list.Pos(), true, "", sigNode, params, body, newLoopID()), nil
}

// parseChorStar handles the `chor*` signature-adjustment special form
// (§4.3): any nested Chor type in the signature with unspecified aux is
// rewritten to aux={} before storage, while the top level is preserved
// verbatim.
func (p *Parser) parseChorStar(list reader.List, env *ast.Env) (ast.Node, error) {
	if len(list.Elems) < 3 {
		return nil, perr(list.Pos(), reader.String(list), "chor* requires a signature and a parameter vector")
	}
	sigSurface, err := toSurface(list.Elems[1])
	if err != nil {
		return nil, err
	}
	sigType, err := types.Parse(sigSurface)
	if err != nil {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "%s", err)
	}
	sig, ok := sigType.(types.Chor)
	if !ok {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "chor* signature must be an arrow type")
	}
	sig = adjustNestedAux(sig)

	paramVec, ok := list.Elems[2].(reader.Vec)
	if !ok {
		return nil, perr(list.Elems[2].Pos(), reader.String(list.Elems[2]), "chor* parameter list must be a vector")
	}
	bodyEnv := ast.NewChildEnv(env)
	params := make([]*ast.Binder, len(paramVec.Elems))
	for i, pf := range paramVec.Elems {
		b, err := p.parseBinder(pf, nil, bodyEnv)
		if err != nil {
			return nil, err
		}
		params[i] = b
	}
	body, err := p.parseBody(list.Elems[3:], bodyEnv)
	if err != nil {
		return nil, err
	}
	sigNode := ast.NewTypeExpr(list.Elems[1].Pos(), sig)
	return ast.NewChorNode(list.Pos(), true, "", sigNode, params, body, newLoopID()), nil
}

// adjustNestedAux rewrites every Chor appearing strictly inside sig's
// params/ret (not sig itself) so that an unspecified aux becomes {}.
func adjustNestedAux(sig types.Chor) types.Chor {
	fix := func(t types.Type) types.Type {
		return types.Postwalk(t, func(inner types.Type) types.Type {
			if c, ok := inner.(types.Chor); ok && c.IsAuxUnspecified() {
				return c.WithAux(types.RoleSet{})
			}
			return inner
		})
	}
	params := make([]types.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = fix(p)
	}
	ret := fix(sig.Ret)
	if sig.IsAuxUnspecified() {
		return types.NewChorUnspecifiedAux(params, ret)
	}
	return types.NewChor(params, ret, sig.Aux())
}

func (p *Parser) parseLet(list reader.List, env *ast.Env) (ast.Node, error) {
	if len(list.Elems) < 2 {
		return nil, perr(list.Pos(), reader.String(list), "let requires a binding vector")
	}
	bindVec, ok := list.Elems[1].(reader.Vec)
	if !ok || len(bindVec.Elems)%2 != 0 {
		return nil, perr(list.Elems[1].Pos(), reader.String(list.Elems[1]), "let bindings must be a vector of binder/expr pairs")
	}
	letEnv := ast.NewChildEnv(env)
	var bindings []ast.LetBinding
	for i := 0; i < len(bindVec.Elems); i += 2 {
		value, err := p.parseExpr(bindVec.Elems[i+1], letEnv)
		if err != nil {
			return nil, err
		}
		binder, err := p.parseBinder(bindVec.Elems[i], nil, letEnv)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.LetBinding{Binder: binder, Value: value})
	}
	body, err := p.parseBody(list.Elems[2:], letEnv)
	if err != nil {
		return nil, err
	}
	return ast.NewLet(list.Pos(), bindings, body), nil
}

func (p *Parser) parseDo(list reader.List, env *ast.Env) (ast.Node, error) {
	exprs, err := p.parseBody(list.Elems[1:], env)
	if err != nil {
		return nil, err
	}
	return ast.NewDo(list.Pos(), exprs), nil
}

func (p *Parser) parseIf(list reader.List, env *ast.Env) (ast.Node, error) {
	if len(list.Elems) != 4 {
		return nil, perr(list.Pos(), reader.String(list), "if requires exactly test, then and else")
	}
	test, err := p.parseExpr(list.Elems[1], env)
	if err != nil {
		return nil, err
	}
	then, err := p.parseExpr(list.Elems[2], env)
	if err != nil {
		return nil, err
	}
	els, err := p.parseExpr(list.Elems[3], env)
	if err != nil {
		return nil, err
	}
	return ast.NewIf(list.Pos(), test, then, els), nil
}

// parseRoleVec reads a vector of role-name symbols, rejecting
// duplicates and non-symbol elements. Full scope validation (that every
// role is actually in env.Roles) is the role validator's job (C4); the
// parser only enforces syntactic shape.
func parseRoleVec(v reader.Vec) ([]types.Role, error) {
	if len(v.Elems) == 0 {
		return nil, perr(v.Pos(), reader.String(v), "role vector must not be empty")
	}
	seen := make(map[types.Role]bool, len(v.Elems))
	roles := make([]types.Role, len(v.Elems))
	for i, el := range v.Elems {
		sym, ok := el.(reader.Symbol)
		if !ok {
			return nil, perr(el.Pos(), reader.String(el), "role vector elements must be symbols")
		}
		r := types.Role(sym.Name)
		if seen[r] {
			return nil, perr(el.Pos(), reader.String(el), "duplicate role %q", sym.Name)
		}
		seen[r] = true
		roles[i] = r
	}
	return roles, nil
}

// toSurface converts a reader.Form naming a type expression into a
// types.Surface, per the EBNF of §6.1.
func toSurface(f reader.Form) (types.Surface, error) {
	switch v := f.(type) {
	case reader.Symbol:
		return types.Surface{Atom: v.Name}, nil
	case reader.SetLit:
		elems := make([]types.Surface, len(v.Elems))
		for i, el := range v.Elems {
			s, err := toSurface(el)
			if err != nil {
				return types.Surface{}, err
			}
			elems[i] = s
		}
		return types.Surface{Set: elems}, nil
	case reader.Vec:
		elems := make([]types.Surface, len(v.Elems))
		for i, el := range v.Elems {
			s, err := toSurface(el)
			if err != nil {
				return types.Surface{}, err
			}
			elems[i] = s
		}
		return types.Surface{Vector: elems}, nil
	case reader.List:
		return toArrowSurface(v)
	default:
		return types.Surface{}, perr(f.Pos(), reader.String(f), "not a type expression")
	}
}

func toArrowSurface(list reader.List) (types.Surface, error) {
	if len(list.Elems) == 0 {
		return types.Surface{}, perr(list.Pos(), reader.String(list), "empty type form")
	}
	head, ok := list.Elems[0].(reader.Symbol)
	if !ok || head.Name != "->" {
		return types.Surface{}, perr(list.Pos(), reader.String(list), "type list must begin with '->'")
	}
	rest := list.Elems[1:]

	barIdx := -1
	for i, el := range rest {
		if sym, ok := el.(reader.Symbol); ok && sym.Name == "|" {
			barIdx = i
			break
		}
	}

	var typeForms, tailForms []reader.Form
	arrow := &types.ArrowForm{}
	if barIdx >= 0 {
		typeForms = rest[:barIdx]
		tailForms = rest[barIdx+1:]
		arrow.HasTail = true
	} else {
		typeForms = rest
	}
	if len(typeForms) == 0 {
		return types.Surface{}, perr(list.Pos(), reader.String(list), "arrow type requires at least a return type")
	}
	for _, tf := range typeForms[:len(typeForms)-1] {
		s, err := toSurface(tf)
		if err != nil {
			return types.Surface{}, err
		}
		arrow.Params = append(arrow.Params, s)
	}
	ret, err := toSurface(typeForms[len(typeForms)-1])
	if err != nil {
		return types.Surface{}, err
	}
	arrow.Ret = ret

	for _, tf := range tailForms {
		s, err := toSurface(tf)
		if err != nil {
			return types.Surface{}, err
		}
		arrow.Tail = append(arrow.Tail, s)
	}
	return types.Surface{Arrow: arrow}, nil
}

var loopCounter int

// newLoopID installs a fresh loop identity at each Chor, per §4.3, so a
// later pass can attach Recur to the correct enclosing loop point.
// Counter-based rather than uuid-based since loop ids are scoped to a
// single parse and never compared across compilation units.
func newLoopID() string {
	loopCounter++
	return fmt.Sprintf("loop$%d", loopCounter)
}
