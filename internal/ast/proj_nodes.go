package ast

import (
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// The variants in this file are not produced by the parser — they are
// synthesized by the projector (C6) as it rewrites a checked choreography
// into one host-language program per role, and consumed only by the
// emitter (C9) and the runtime it targets. Keeping them as ordinary
// ast.Node variants, rather than a parallel "projected IR" type, lets the
// emitter (§4.9 "walks the projected AST") reuse the same Children/
// WithChildren/cleanup machinery the rest of the compiler already has.

// Noop is the projection sentinel: "this role has no part in this
// sub-expression" (§4.6, §6.4).
type Noop struct {
	base
}

func NewNoop(pos token.Position) *Noop { return &Noop{base: base{position: pos}} }

func (n *Noop) Accept(v Visitor)           { v.VisitNoop(n) }
func (n *Noop) Children() []Node           { return nil }
func (n *Noop) WithChildren(c []Node) Node { cp := *n; return &cp }

// Send is the projected form of a Copy on its source role: transmit
// Value to Dst over the runtime transport, then yield Value (copy's
// local continuation is the sent value itself — a send expression
// evaluates to its payload).
type Send struct {
	base
	Dst   types.Role
	Value Node
}

func NewSend(pos token.Position, dst types.Role, value Node) *Send {
	return &Send{base: base{position: pos}, Dst: dst, Value: value}
}

func (n *Send) Accept(v Visitor) { v.VisitSend(n) }
func (n *Send) Children() []Node { return []Node{n.Value} }
func (n *Send) WithChildren(c []Node) Node {
	cp := *n
	cp.Value = c[0]
	return &cp
}

// Recv is the projected form of a Copy on its destination role: block
// for a value sent by Src.
type Recv struct {
	base
	Src types.Role
}

func NewRecv(pos token.Position, src types.Role) *Recv {
	return &Recv{base: base{position: pos}, Src: src}
}

func (n *Recv) Accept(v Visitor)           { v.VisitRecv(n) }
func (n *Recv) Children() []Node           { return nil }
func (n *Recv) WithChildren(c []Node) Node { cp := *n; return &cp }

// MakeProjection is the projected form of Inst: construct a callable
// bound to the named choreography's role R, carrying the index mapping
// from the instantiation's concrete roles to the definition's declared
// role parameters (§4.6 "make projection call").
type MakeProjection struct {
	base
	Name       string
	Role       types.Role
	RoleIndex  int
	IndexOfDst []types.Role // the instantiation's concrete role vector, positional
}

func NewMakeProjection(pos token.Position, name string, role types.Role, roleIndex int, roles []types.Role) *MakeProjection {
	return &MakeProjection{base: base{position: pos}, Name: name, Role: role, RoleIndex: roleIndex, IndexOfDst: roles}
}

func (n *MakeProjection) Accept(v Visitor)           { v.VisitMakeProjection(n) }
func (n *MakeProjection) Children() []Node           { return nil }
func (n *MakeProjection) WithChildren(c []Node) Node { cp := *n; return &cp }
