package types

// RolesOf returns every role transitively contained in t, including aux
// roles of nested Chor types.
func RolesOf(t Type) RoleSet {
	out := RoleSet{set: make(map[Role]bool)}
	collectRoles(t, &out)
	return out
}

func collectRoles(t Type, out *RoleSet) {
	switch v := t.(type) {
	case Agree:
		for _, r := range v.Roles.Slice() {
			out.Add(r)
		}
	case Tuple:
		for _, e := range v.Elems {
			collectRoles(e, out)
		}
	case Chor:
		for _, p := range v.Params {
			collectRoles(p, out)
		}
		collectRoles(v.Ret, out)
		if !v.IsAuxUnspecified() {
			for _, r := range v.Aux().Slice() {
				out.Add(r)
			}
		}
	}
}

// Postwalk applies f to every type reachable from t, child-first, and
// rebuilds the tree from the results. This is the generic traversal
// helper named in §4.1.
func Postwalk(t Type, f func(Type) Type) Type {
	switch v := t.(type) {
	case Agree:
		return f(v)
	case Tuple:
		elems := make([]Type, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = Postwalk(e, f)
		}
		return f(Tuple{Elems: elems})
	case Chor:
		params := make([]Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = Postwalk(p, f)
		}
		ret := Postwalk(v.Ret, f)
		nc := Chor{Params: params, Ret: ret, aux: v.aux}
		return f(nc)
	default:
		return f(t)
	}
}

// Normalize recursively subtracts each nested Chor's primary roles (its
// params' and return's roles) from its own aux set, per §3.2. Normalize
// is idempotent (§8, property 1).
func Normalize(t Type) Type {
	return Postwalk(t, func(n Type) Type {
		c, ok := n.(Chor)
		if !ok || c.IsAuxUnspecified() {
			return n
		}
		primary := RoleSet{set: make(map[Role]bool)}
		for _, p := range c.Params {
			collectRoles(p, &primary)
		}
		collectRoles(c.Ret, &primary)
		return c.WithAux(c.Aux().Subtract(primary))
	})
}

// Subst maps role names to their replacement role.
type Subst map[Role]Role

func (s Subst) apply(r Role) Role {
	if replacement, ok := s[r]; ok {
		return replacement
	}
	return r
}

func (s Subst) applySet(rs RoleSet) RoleSet {
	out := RoleSet{set: make(map[Role]bool)}
	for _, r := range rs.Slice() {
		out.Add(s.apply(r))
	}
	return out
}

// Substitute replaces every role in t according to sigma, including roles
// nested inside aux sets (§4.1).
func Substitute(t Type, sigma Subst) Type {
	switch v := t.(type) {
	case Agree:
		return Agree{Roles: sigma.applySet(v.Roles)}
	case Tuple:
		elems := make([]Type, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = Substitute(e, sigma)
		}
		return Tuple{Elems: elems}
	case Chor:
		params := make([]Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = Substitute(p, sigma)
		}
		ret := Substitute(v.Ret, sigma)
		if v.IsAuxUnspecified() {
			return NewChorUnspecifiedAux(params, ret)
		}
		return NewChor(params, ret, sigma.applySet(v.Aux()))
	default:
		return t
	}
}

// SubstituteByPosition builds a Subst mapping each role in `from` to the
// role at the same position in `to` (used to instantiate a definition's
// role parameters at an Inst site, and to compare signatures positionally
// for alpha-equivalence per §3.1).
func SubstituteByPosition(from, to []Role) Subst {
	s := make(Subst, len(from))
	for i := range from {
		if i < len(to) {
			s[from[i]] = to[i]
		}
	}
	return s
}
