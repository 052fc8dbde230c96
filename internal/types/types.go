// Package types implements the three-constructor choreographic type system
// (C1): Agree, Tuple and Chor, plus parse/render/roles_of/normalize/
// substitute/postwalk over them. Types are immutable values; every
// operation returns a new Type rather than mutating in place.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a participant identifier.
type Role string

// Type is the closed interface implemented by Agree, Tuple and Chor.
type Type interface {
	String() string
	isType()
}

// RoleSet is an ordered, duplicate-free set of roles. Order matters only
// for deterministic rendering; set equality ignores it.
type RoleSet struct {
	order []Role
	set   map[Role]bool
}

// NewRoleSet builds a RoleSet from a slice, deduplicating but preserving
// first-seen order.
func NewRoleSet(roles ...Role) RoleSet {
	rs := RoleSet{set: make(map[Role]bool, len(roles))}
	for _, r := range roles {
		rs.Add(r)
	}
	return rs
}

// Add inserts a role if not already present.
func (rs *RoleSet) Add(r Role) {
	if rs.set == nil {
		rs.set = make(map[Role]bool)
	}
	if rs.set[r] {
		return
	}
	rs.set[r] = true
	rs.order = append(rs.order, r)
}

// Contains reports whether r is a member.
func (rs RoleSet) Contains(r Role) bool {
	return rs.set[r]
}

// Len returns the number of distinct roles.
func (rs RoleSet) Len() int { return len(rs.order) }

// Slice returns the roles in insertion order.
func (rs RoleSet) Slice() []Role {
	out := make([]Role, len(rs.order))
	copy(out, rs.order)
	return out
}

// Union returns a new RoleSet containing the roles of both sets, ordered
// by rs's order followed by any new roles from other.
func (rs RoleSet) Union(other RoleSet) RoleSet {
	out := NewRoleSet(rs.order...)
	for _, r := range other.order {
		out.Add(r)
	}
	return out
}

// Subtract returns a new RoleSet with every role of other removed.
func (rs RoleSet) Subtract(other RoleSet) RoleSet {
	out := RoleSet{set: make(map[Role]bool)}
	for _, r := range rs.order {
		if !other.Contains(r) {
			out.Add(r)
		}
	}
	return out
}

// IsSubsetOf reports whether every role in rs is also in other.
func (rs RoleSet) IsSubsetOf(other RoleSet) bool {
	for _, r := range rs.order {
		if !other.Contains(r) {
			return false
		}
	}
	return true
}

// Disjoint reports whether rs and other share no role.
func (rs RoleSet) Disjoint(other RoleSet) bool {
	for _, r := range rs.order {
		if other.Contains(r) {
			return false
		}
	}
	return true
}

// Equal reports set equality, ignoring order.
func (rs RoleSet) Equal(other RoleSet) bool {
	if rs.Len() != other.Len() {
		return false
	}
	return rs.IsSubsetOf(other)
}

// sorted returns the roles sorted lexicographically, used only for
// deterministic String() rendering.
func (rs RoleSet) sorted() []Role {
	out := append([]Role{}, rs.order...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (rs RoleSet) String() string {
	parts := make([]string, 0, rs.Len())
	for _, r := range rs.sorted() {
		parts = append(parts, string(r))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Agree is the agreement type: a value simultaneously held, identically,
// by every role in Roles. |Roles| >= 1 is an invariant enforced at
// construction by the parser/checker, not by this type itself.
type Agree struct {
	Roles RoleSet
}

func (Agree) isType() {}
func (a Agree) String() string {
	return a.Roles.String()
}

// Tuple is a positional, heterogeneous product type. len(Elems) >= 1.
type Tuple struct {
	Elems []Type
}

func (Tuple) isType() {}
func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// AuxUnspecified is an empty RoleSet. It does not mark an aux set as
// unresolved: NewChor with it yields a resolved, empty aux set; an
// unresolved aux is built with NewChorUnspecifiedAux.
var AuxUnspecified = RoleSet{}

// chorAux distinguishes "explicitly unspecified" from "empty aux set"
// since both have Len() == 0.
type chorAux struct {
	set         RoleSet
	unspecified bool
}

// Chor is the type of a first-class choreography value.
type Chor struct {
	Params []Type
	Ret    Type
	aux    chorAux
}

func (Chor) isType() {}

// NewChor builds a Chor type with a concrete (possibly empty) aux set.
func NewChor(params []Type, ret Type, aux RoleSet) Chor {
	return Chor{Params: params, Ret: ret, aux: chorAux{set: aux}}
}

// NewChorUnspecifiedAux builds a Chor type whose aux set has not been
// resolved yet (only legal transiently, in freshly parsed user input).
func NewChorUnspecifiedAux(params []Type, ret Type) Chor {
	return Chor{Params: params, Ret: ret, aux: chorAux{unspecified: true}}
}

// IsAuxUnspecified reports whether this Chor's aux set is still unresolved.
func (c Chor) IsAuxUnspecified() bool { return c.aux.unspecified }

// Aux returns the (possibly empty) resolved aux role set. Calling this on
// a Chor whose aux is still unspecified returns the empty set; callers
// must check IsAuxUnspecified first.
func (c Chor) Aux() RoleSet { return c.aux.set }

// WithAux returns a copy of c with its aux set replaced by aux (now
// resolved).
func (c Chor) WithAux(aux RoleSet) Chor {
	c.aux = chorAux{set: aux}
	return c
}

func (c Chor) String() string {
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		parts[i] = p.String()
	}
	auxStr := ""
	if c.aux.unspecified {
		auxStr = " | ?"
	} else if c.aux.set.Len() == 1 && c.aux.set.sorted()[0] == "0" {
		auxStr = " | 0"
	} else if c.aux.set.Len() > 0 {
		roles := make([]string, 0, c.aux.set.Len())
		for _, r := range c.aux.set.sorted() {
			roles = append(roles, string(r))
		}
		auxStr = " | " + strings.Join(roles, " ")
	}
	return fmt.Sprintf("(-> %s %s%s)", strings.Join(parts, " "), c.Ret.String(), auxStr)
}

// Equal reports structural equality after normalizing both sides.
func Equal(a, b Type) bool {
	return Normalize(a).String() == Normalize(b).String()
}
