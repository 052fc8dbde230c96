package types

import "testing"

func atom(r string) Surface { return Surface{Atom: r} }

func TestParseRenderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s    Surface
	}{
		{"single role", atom("A")},
		{"agreement set", Surface{Set: []Surface{atom("A"), atom("B")}}},
		{"tuple", Surface{Vector: []Surface{atom("A"), atom("B")}}},
		{
			"chor with aux",
			Surface{Arrow: &ArrowForm{
				Params:  []Surface{atom("A")},
				Ret:     atom("A"),
				HasTail: true,
				Tail:    []Surface{atom("B")},
			}},
		},
		{
			"chor with zero aux",
			Surface{Arrow: &ArrowForm{
				Params:  []Surface{atom("A")},
				Ret:     atom("A"),
				HasTail: true,
				Tail:    []Surface{atom("0")},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ty, err := Parse(tt.s)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			rendered := Render(ty)
			ty2, err := Parse(rendered)
			if err != nil {
				t.Fatalf("re-Parse: %v", err)
			}
			if !Equal(ty, ty2) {
				t.Errorf("round trip mismatch: %s != %s", ty, ty2)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		s    Surface
	}{
		{"empty set", Surface{Set: []Surface{}}},
		{"empty tuple", Surface{Vector: []Surface{}}},
		{"duplicate role in set", Surface{Set: []Surface{atom("A"), atom("A")}}},
		{
			"duplicate aux role",
			Surface{Arrow: &ArrowForm{
				Params: []Surface{atom("A")}, Ret: atom("A"),
				HasTail: true, Tail: []Surface{atom("B"), atom("B")},
			}},
		},
		{
			"aux mixes 0 and role",
			Surface{Arrow: &ArrowForm{
				Params: []Surface{atom("A")}, Ret: atom("A"),
				HasTail: true, Tail: []Surface{atom("0"), atom("B")},
			}},
		},
		{
			"empty aux tail",
			Surface{Arrow: &ArrowForm{
				Params: []Surface{atom("A")}, Ret: atom("A"),
				HasTail: true, Tail: []Surface{},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.s)
			if err == nil {
				t.Fatalf("expected BadType error, got none")
			}
			if _, ok := err.(*BadType); !ok {
				t.Fatalf("expected *BadType, got %T", err)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inner := NewChor([]Type{Agree{Roles: NewRoleSet("A")}}, Agree{Roles: NewRoleSet("A")}, NewRoleSet("A", "B"))
	outer := NewChor([]Type{inner}, inner, NewRoleSet("B", "C"))

	once := Normalize(outer)
	twice := Normalize(once)
	if !Equal(once, twice) {
		t.Errorf("normalize not idempotent: %s != %s", once, twice)
	}

	// Nested Chor's primary roles (A) must be subtracted from its aux.
	outerChor := once.(Chor)
	innerChor := outerChor.Params[0].(Chor)
	if innerChor.Aux().Contains("A") {
		t.Errorf("expected primary role A removed from nested aux, got %s", innerChor.Aux())
	}
	if !innerChor.Aux().Contains("B") {
		t.Errorf("expected non-primary aux role B preserved, got %s", innerChor.Aux())
	}
}

func TestSubstitutePreservesShape(t *testing.T) {
	ty := NewChor(
		[]Type{Agree{Roles: NewRoleSet("A")}},
		Agree{Roles: NewRoleSet("A", "B")},
		NewRoleSet("C"),
	)
	sigma := Subst{"A": "X", "B": "Y", "C": "Z"}
	out := Substitute(ty, sigma)

	got := RolesOf(out)
	want := NewRoleSet("X", "Y", "Z")
	if !got.Equal(want) {
		t.Errorf("RolesOf(substitute(T, sigma)) = %s, want %s", got, want)
	}
}

func TestSubstituteByPositionAlphaEquivalence(t *testing.T) {
	sigA := NewChor([]Type{Agree{Roles: NewRoleSet("A")}}, Agree{Roles: NewRoleSet("A")}, RoleSet{})
	sigma := SubstituteByPosition([]Role{"A"}, []Role{"P"})
	renamed := Substitute(sigA, sigma)
	sigB := NewChor([]Type{Agree{Roles: NewRoleSet("P")}}, Agree{Roles: NewRoleSet("P")}, RoleSet{})

	if !Equal(renamed, sigB) {
		t.Errorf("alpha-renamed signature mismatch: %s != %s", renamed, sigB)
	}
}
