package registry

import (
	"testing"

	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

func agree(roles ...types.Role) types.Type { return types.Agree{Roles: types.NewRoleSet(roles...)} }

func TestInstallThenCommit(t *testing.T) {
	r := New()
	sig := types.NewChor([]types.Type{agree("A")}, agree("A"), types.RoleSet{})
	res := r.Install(token.Position{}, "inc", []types.Role{"A"}, sig)
	if res.Warning != nil {
		t.Fatalf("first install should not warn, got %v", res.Warning)
	}

	if err := r.Commit("inc", nil); err != nil {
		t.Fatalf("commit: %v", err)
	}
	d, ok := r.Lookup("inc")
	if !ok || !d.HasBody {
		t.Fatalf("expected committed definition, got %+v ok=%v", d, ok)
	}
}

func TestInstallRollback(t *testing.T) {
	r := New()
	sig := types.NewChor([]types.Type{agree("A")}, agree("A"), types.RoleSet{})
	r.Install(token.Position{}, "inc", []types.Role{"A"}, sig)
	r.Commit("inc", nil)

	sig2 := types.NewChor([]types.Type{agree("A"), agree("A")}, agree("A"), types.RoleSet{})
	res := r.Install(token.Position{}, "inc", []types.Role{"A"}, sig2)
	res.Rollback()

	d, _ := r.Lookup("inc")
	if len(d.Signature.Params) != 1 {
		t.Fatalf("rollback should have restored the 1-param signature, got %d params", len(d.Signature.Params))
	}
}

func TestSignatureChangeWarns(t *testing.T) {
	r := New()
	sig := types.NewChor([]types.Type{agree("A")}, agree("A"), types.RoleSet{})
	r.Install(token.Position{}, "f", []types.Role{"A"}, sig)
	r.Commit("f", nil)

	sig2 := types.NewChor([]types.Type{agree("A"), agree("A")}, agree("A"), types.RoleSet{})
	res := r.Install(token.Position{}, "f", []types.Role{"A"}, sig2)
	if res.Warning == nil {
		t.Fatalf("expected signature-change warning")
	}
	if res.Warning.Kind != diagnostics.DefinitionError {
		t.Errorf("expected DefinitionError kind, got %s", res.Warning.Kind)
	}
}

func TestAlphaEquivalentSignatureDoesNotWarn(t *testing.T) {
	r := New()
	sigA := types.NewChor([]types.Type{agree("A")}, agree("A"), types.RoleSet{})
	r.Install(token.Position{}, "f", []types.Role{"A"}, sigA)
	r.Commit("f", nil)

	sigB := types.NewChor([]types.Type{agree("X")}, agree("X"), types.RoleSet{})
	res := r.Install(token.Position{}, "f", []types.Role{"X"}, sigB)
	if res.Warning != nil {
		t.Errorf("alpha-equivalent redefinition should not warn, got %v", res.Warning)
	}
}

func TestFillTopLevelAux(t *testing.T) {
	sig := types.NewChorUnspecifiedAux([]types.Type{agree("A")}, agree("A"))
	filled := FillTopLevelAux([]types.Role{"A", "B"}, sig)
	if filled.IsAuxUnspecified() {
		t.Fatalf("expected aux resolved")
	}
	if !filled.Aux().Equal(types.NewRoleSet("B")) {
		t.Errorf("expected aux={B}, got %s", filled.Aux())
	}
}
