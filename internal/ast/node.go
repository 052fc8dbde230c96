// Package ast defines the choreographic AST (C2): a tagged tree of node
// variants, an ordered children view for traversal, a deep-update
// operation, and the per-node environment. Node shapes follow a
// Node/Visitor split, narrowed from a general-purpose host language to
// the fixed set of choreographic and host-passthrough variants this
// compiler needs.
package ast

import (
	"github.com/google/uuid"

	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

// Node is the interface every AST variant implements.
type Node interface {
	Pos() token.Position
	// Children returns this node's ordered child-AST fields, for
	// post-order traversal by the role validator, type checker and
	// projector.
	Children() []Node
	// WithChildren returns a shallow copy of this node with its children
	// replaced by newChildren (same order/count as Children()). Used by
	// the instrumentation pass (C8) to splice synthesized subtrees in
	// without disturbing the rest of the tree.
	WithChildren(newChildren []Node) Node
	Accept(v Visitor)

	// Checked annotates this node, in place, with the type and role-set
	// computed by the checker (C5). Populated after a successful
	// TypeCheck pass; nil/empty before.
	Checked() *Checked
}

// Checked holds the post-checking annotations every node carries per
// §3.3: its choreographic type, the roles that participate in its
// evaluation, and the environment active at this point in the tree.
type Checked struct {
	Rtype     types.Type
	RMentions types.RoleSet
	Env       *Env
}

// base is embedded by every concrete node and implements the bookkeeping
// shared by all variants (position + checked annotations).
type base struct {
	position token.Position
	checked  *Checked
}

func (b *base) Pos() token.Position { return b.position }
func (b *base) Checked() *Checked    { return b.checked }

// SetChecked is called by the type checker to record the inferred type,
// mentioned roles and environment for a node.
func SetChecked(n Node, rtype types.Type, mentions types.RoleSet, env *Env) {
	if b, ok := n.(interface{ setChecked(*Checked) }); ok {
		b.setChecked(&Checked{Rtype: rtype, RMentions: mentions, Env: env})
	}
}

func (b *base) setChecked(c *Checked) { b.checked = c }

// Env is the per-node lexical environment described in §3.4: the role
// scope in effect, the local bindings visible here (with their type once
// checked), and the current lifting mask.
type Env struct {
	Roles  []types.Role
	Locals map[string]*Binding
	Mask   types.RoleSet
	Parent *Env
}

// NewChildEnv derives a new environment for a nested scope, inheriting
// roles and mask from the parent unless overridden by the caller.
func NewChildEnv(parent *Env) *Env {
	return &Env{
		Roles:  parent.Roles,
		Locals: make(map[string]*Binding),
		Mask:   parent.Mask,
		Parent: parent,
	}
}

// Lookup resolves a name against this environment, walking up to parents.
func (e *Env) Lookup(name string) (*Binding, bool) {
	for env := e; env != nil; env = env.Parent {
		if b, ok := env.Locals[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// HasRole reports whether r is in scope.
func (e *Env) HasRole(r types.Role) bool {
	for _, role := range e.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Binding is a named local binding. It carries a stable unique name (set
// at parse time, see NewBinding) in addition to its surface name, so
// that renaming or shadowing never confuses two distinct bindings.
type Binding struct {
	Name       string // surface name as written
	UniqueName string // process-unique, assigned at parse time
	Type       types.Type
	Pos        token.Position
}

// NewBinding creates a Binding for a freshly parsed name, stamping it
// with a process-unique suffix (a v4 uuid) so that two bindings sharing
// a surface name are never confused downstream.
func NewBinding(name string, pos token.Position) *Binding {
	return &Binding{
		Name:       name,
		UniqueName: name + "$" + uuid.NewString(),
		Pos:        pos,
	}
}

// Binder is a (possibly nested) destructuring pattern appearing in an
// Unpack binder or a Chor parameter list: either a single Binding (a
// leaf) or a vector of sub-Binders.
type Binder struct {
	Leaf *Binding
	Vec  []*Binder
	// Path records this binder's position within its enclosing Unpack
	// binder, so the checker can read off the corresponding Tuple
	// element type (§4.3 "Unpack binder").
	Path []int
}

// IsLeaf reports whether this Binder is a single binding rather than a
// nested vector.
func (b *Binder) IsLeaf() bool { return b.Leaf != nil }

// Leaves returns every leaf Binding in this Binder, in left-to-right
// order.
func (b *Binder) Leaves() []*Binding {
	if b.IsLeaf() {
		return []*Binding{b.Leaf}
	}
	var out []*Binding
	for _, child := range b.Vec {
		out = append(out, child.Leaves()...)
	}
	return out
}
