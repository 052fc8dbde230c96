package types

import (
	"fmt"
)

// BadType is returned by Parse when the surface representation is
// malformed (empty set, empty tuple, missing "->", an aux set mixing
// roles with "0", or a duplicate aux role).
type BadType struct {
	Reason string
}

func (e *BadType) Error() string { return fmt.Sprintf("bad type: %s", e.Reason) }

// Surface is the parsed-but-not-yet-typed surface representation a reader
// produces for a type expression: an atom (role name), a set literal
// ({A B}), a vector literal ([T1 T2 ...]), or an arrow list
// (-> T1 T2 ... Tn | aux).
//
// This mirrors the reader's generic Form shape so internal/parser can
// hand a type sub-form straight to types.Parse without re-lexing it.
type Surface struct {
	Atom   string     // non-empty for a role atom
	Set    []Surface  // non-nil for a {..} set literal
	Vector []Surface  // non-nil for a [..] vector literal
	Arrow  *ArrowForm // non-nil for a (-> ...) list
}

// ArrowForm is the parsed shape of "(-> T* T | tail)".
type ArrowForm struct {
	Params []Surface
	Ret    Surface
	// Tail is everything after "|", if present: either a single "0"
	// atom, one-or-more role atoms, or absent entirely (unspecified aux).
	HasTail bool
	Tail    []Surface
}

// Parse converts a Surface form into a structured Type, per §4.1:
// parse fails with BadType when the shape is malformed.
func Parse(s Surface) (Type, error) {
	switch {
	case s.Atom != "":
		return Agree{Roles: NewRoleSet(Role(s.Atom))}, nil

	case s.Set != nil:
		if len(s.Set) == 0 {
			return nil, &BadType{Reason: "agreement set must not be empty"}
		}
		rs := RoleSet{set: make(map[Role]bool)}
		for _, el := range s.Set {
			if el.Atom == "" {
				return nil, &BadType{Reason: "agreement set elements must be role atoms"}
			}
			if rs.Contains(Role(el.Atom)) {
				return nil, &BadType{Reason: fmt.Sprintf("duplicate role %q in agreement set", el.Atom)}
			}
			rs.Add(Role(el.Atom))
		}
		return Agree{Roles: rs}, nil

	case s.Vector != nil:
		if len(s.Vector) == 0 {
			return nil, &BadType{Reason: "tuple type must not be empty"}
		}
		elems := make([]Type, len(s.Vector))
		for i, el := range s.Vector {
			t, err := Parse(el)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return Tuple{Elems: elems}, nil

	case s.Arrow != nil:
		return parseArrow(*s.Arrow)

	default:
		return nil, &BadType{Reason: "empty type form"}
	}
}

func parseArrow(a ArrowForm) (Type, error) {
	params := make([]Type, len(a.Params))
	for i, p := range a.Params {
		t, err := Parse(p)
		if err != nil {
			return nil, err
		}
		params[i] = t
	}
	ret, err := Parse(a.Ret)
	if err != nil {
		return nil, err
	}

	if !a.HasTail {
		return NewChorUnspecifiedAux(params, ret), nil
	}

	if len(a.Tail) == 0 {
		return nil, &BadType{Reason: "aux tail after '|' must not be empty"}
	}
	if len(a.Tail) == 1 && a.Tail[0].Atom == "0" {
		return NewChor(params, ret, RoleSet{}), nil
	}
	aux := RoleSet{set: make(map[Role]bool)}
	sawZero := false
	for _, el := range a.Tail {
		if el.Atom == "" {
			return nil, &BadType{Reason: "aux role list must contain only role atoms or a lone '0'"}
		}
		if el.Atom == "0" {
			sawZero = true
			continue
		}
		if aux.Contains(Role(el.Atom)) {
			return nil, &BadType{Reason: fmt.Sprintf("duplicate aux role %q", el.Atom)}
		}
		aux.Add(Role(el.Atom))
	}
	if sawZero && aux.Len() > 0 {
		return nil, &BadType{Reason: "aux tail must not mix '0' with role names"}
	}
	return NewChor(params, ret, aux), nil
}

// Render is the inverse of Parse: it renders a Type back to a Surface
// form, such that Parse(Render(T)) == T for any well-formed T (§8,
// property 1).
func Render(t Type) Surface {
	switch v := t.(type) {
	case Agree:
		if v.Roles.Len() == 1 {
			return Surface{Atom: string(v.Roles.Slice()[0])}
		}
		set := make([]Surface, 0, v.Roles.Len())
		for _, r := range v.Roles.sorted() {
			set = append(set, Surface{Atom: string(r)})
		}
		return Surface{Set: set}

	case Tuple:
		vec := make([]Surface, len(v.Elems))
		for i, e := range v.Elems {
			vec[i] = Render(e)
		}
		return Surface{Vector: vec}

	case Chor:
		params := make([]Surface, len(v.Params))
		for i, p := range v.Params {
			params[i] = Render(p)
		}
		arrow := &ArrowForm{Params: params, Ret: Render(v.Ret)}
		if v.IsAuxUnspecified() {
			arrow.HasTail = false
		} else if v.Aux().Len() == 0 {
			arrow.HasTail = true
			arrow.Tail = []Surface{{Atom: "0"}}
		} else {
			arrow.HasTail = true
			for _, r := range v.Aux().sorted() {
				arrow.Tail = append(arrow.Tail, Surface{Atom: string(r)})
			}
		}
		return Surface{Arrow: arrow}

	default:
		panic(fmt.Sprintf("types.Render: unhandled type %T", t))
	}
}
