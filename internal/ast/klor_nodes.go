package ast

import (
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// Narrow restricts an agreement to a subset of its roles: (narrow [B] e).
type Narrow struct {
	base
	Roles []types.Role
	Expr  Node
}

// Lifting sets the active mask used to give literals and host values an
// agreement type: (lifting [A B] body...).
type Lifting struct {
	base
	Roles []types.Role
	Body  []Node
}

// Copy is the primitive communication action: it extends an agreement by
// one role, src sending its copy to dst. (copy [A B] e).
type Copy struct {
	base
	Src, Dst types.Role
	Expr     Node
}

// Pack constructs a tuple from its element expressions: (pack e1 e2 ...).
type Pack struct {
	base
	Exprs []Node
}

// Unpack destructures a tuple: (unpack [binder init] body...). Binder may
// be a nested vector of symbols; Bindings lists every leaf in order.
type Unpack struct {
	base
	Binder *Binder
	Init   Node
	Body   []Node
}

// ChorNode is an anonymous choreography literal: (chor name? Type [params] body...).
// Local is true when this Chor has no attached registry name (an
// anonymous, first-class choreography value rather than a top-level
// defchor body).
type ChorNode struct {
	base
	Local     bool
	Name      string // non-empty only when this is a defchor body
	Signature Node   // a TypeExpr holding the declared Chor type
	Params    []*Binder
	Body      []Node
	LoopID    string
}

// TypeExpr wraps a parsed types.Type so it can sit in a Node-typed field
// (ChorNode.Signature) without the checker needing a separate parallel
// tree for signatures.
type TypeExpr struct {
	base
	Type types.Type
}

func NewTypeExpr(pos token.Position, t types.Type) *TypeExpr {
	return &TypeExpr{base: base{position: pos}, Type: t}
}

func (n *TypeExpr) Children() []Node                { return nil }
func (n *TypeExpr) WithChildren(cs []Node) Node     { cp := *n; return &cp }
func (n *TypeExpr) Accept(v Visitor)                { v.VisitTypeExpr(n) }

// Inst instantiates a named choreography with concrete roles: (inst name [A B]).
type Inst struct {
	base
	Name  string
	Roles []types.Role
}

// AgreeNode asserts agreement without communicating: (agree! e1 e2 ...).
type AgreeNode struct {
	base
	Exprs []Node
}

// --- constructors -----------------------------------------------------

func NewNarrow(pos token.Position, roles []types.Role, expr Node) *Narrow {
	return &Narrow{base: base{position: pos}, Roles: roles, Expr: expr}
}

func NewLifting(pos token.Position, roles []types.Role, body []Node) *Lifting {
	return &Lifting{base: base{position: pos}, Roles: roles, Body: body}
}

func NewCopy(pos token.Position, src, dst types.Role, expr Node) *Copy {
	return &Copy{base: base{position: pos}, Src: src, Dst: dst, Expr: expr}
}

func NewPack(pos token.Position, exprs []Node) *Pack {
	return &Pack{base: base{position: pos}, Exprs: exprs}
}

func NewUnpack(pos token.Position, binder *Binder, init Node, body []Node) *Unpack {
	return &Unpack{base: base{position: pos}, Binder: binder, Init: init, Body: body}
}

func NewChorNode(pos token.Position, local bool, name string, sig Node, params []*Binder, body []Node, loopID string) *ChorNode {
	return &ChorNode{base: base{position: pos}, Local: local, Name: name, Signature: sig, Params: params, Body: body, LoopID: loopID}
}

func NewInst(pos token.Position, name string, roles []types.Role) *Inst {
	return &Inst{base: base{position: pos}, Name: name, Roles: roles}
}

func NewAgreeNode(pos token.Position, exprs []Node) *AgreeNode {
	return &AgreeNode{base: base{position: pos}, Exprs: exprs}
}

// --- Node interface -----------------------------------------------------

func (n *Narrow) Accept(v Visitor) { v.VisitNarrow(n) }
func (n *Narrow) Children() []Node { return []Node{n.Expr} }
func (n *Narrow) WithChildren(c []Node) Node {
	cp := *n
	cp.Expr = c[0]
	return &cp
}

func (n *Lifting) Accept(v Visitor) { v.VisitLifting(n) }
func (n *Lifting) Children() []Node { return n.Body }
func (n *Lifting) WithChildren(c []Node) Node {
	cp := *n
	cp.Body = c
	return &cp
}

func (n *Copy) Accept(v Visitor) { v.VisitCopy(n) }
func (n *Copy) Children() []Node { return []Node{n.Expr} }
func (n *Copy) WithChildren(c []Node) Node {
	cp := *n
	cp.Expr = c[0]
	return &cp
}

func (n *Pack) Accept(v Visitor) { v.VisitPack(n) }
func (n *Pack) Children() []Node { return n.Exprs }
func (n *Pack) WithChildren(c []Node) Node {
	cp := *n
	cp.Exprs = c
	return &cp
}

func (n *Unpack) Accept(v Visitor) { v.VisitUnpack(n) }
func (n *Unpack) Children() []Node {
	out := make([]Node, 0, 1+len(n.Body))
	out = append(out, n.Init)
	out = append(out, n.Body...)
	return out
}
func (n *Unpack) WithChildren(c []Node) Node {
	cp := *n
	cp.Init = c[0]
	cp.Body = c[1:]
	return &cp
}

func (n *ChorNode) Accept(v Visitor) { v.VisitChor(n) }
func (n *ChorNode) Children() []Node { return n.Body }
func (n *ChorNode) WithChildren(c []Node) Node {
	cp := *n
	cp.Body = c
	return &cp
}

func (n *Inst) Accept(v Visitor)           { v.VisitInst(n) }
func (n *Inst) Children() []Node           { return nil }
func (n *Inst) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *AgreeNode) Accept(v Visitor) { v.VisitAgree(n) }
func (n *AgreeNode) Children() []Node { return n.Exprs }
func (n *AgreeNode) WithChildren(c []Node) Node {
	cp := *n
	cp.Exprs = c
	return &cp
}
