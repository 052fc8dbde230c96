package instrument

import (
	"testing"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/check"
	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/registry"
)

func parseAndCheck(t *testing.T, reg *registry.Registry, src string) (parser.TopLevelDef, *check.Checker) {
	t.Helper()
	forms, err := reader.New("t.klor", src).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defs, err := parser.New("t.klor").ParseTopLevel(forms)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	def := defs[0]
	// Install before checking and commit afterwards, as internal/driver
	// does, so a later definition checked against reg can Inst this one.
	reg.Install(def.Pos, def.Name, def.Roles, registry.FillTopLevelAux(def.Roles, def.Sig))
	c := check.New(reg)
	c.CheckDefinition(def.Roles, def.Sig, def.Params, def.Body)
	if len(c.Errors()) != 0 {
		t.Fatalf("unexpected type errors before instrumentation: %v", c.Errors())
	}
	reg.Commit(def.Name, def.Body[0])
	return def, c
}

// TestAgreementCentralizedReTypechecks verifies that injecting a
// centralized agreement check ahead of a Diffie-Hellman-shaped body
// (whose g/p parameters are multi-role agreements) produces a body the
// checker still accepts, re-run from scratch exactly as §4.8 requires.
func TestAgreementCentralizedReTypechecks(t *testing.T) {
	reg := registry.New()
	def, _ := parseAndCheck(t, reg, `(defchor k [A B] (-> #{A B} #{A B} A B #{A B}) [g p sa sb]
		(agree!
			(A (modpow (B->A (B (modpow g sb p))) sa p))
			(B (modpow (A->B (A (modpow g sa p))) sb p))))`)

	opts := config.Options{VerifyAgreement: config.AgreementVerification{Enabled: true, CentralAt: "A"}}
	newBody, err := Instrument(def.Roles, def.Params, def.Body, reg, opts)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if len(newBody) <= len(def.Body) {
		t.Fatalf("expected instrumentation to prepend checks, got %d exprs (was %d)", len(newBody), len(def.Body))
	}

	// The two agreement-typed parameters (g, p) each contribute one
	// prelude check; sa/sb are single-role and must not.
	if len(newBody)-len(def.Body) != 2 {
		t.Fatalf("expected exactly 2 prelude checks (for g and p), got %d", len(newBody)-len(def.Body))
	}
	for _, n := range newBody[:2] {
		if _, ok := n.(*ast.Let); !ok {
			t.Fatalf("expected each prelude check to be a Let, got %#v", n)
		}
	}

	reg2 := registry.New()
	c2 := check.New(reg2)
	c2.CheckDefinition(def.Roles, def.Sig, def.Params, newBody)
	if len(c2.Errors()) != 0 {
		t.Fatalf("instrumented body failed re-check: %v", c2.Errors())
	}
}

// TestAgreementDecentralizedReTypechecks exercises the decentralized
// variant (one centralized-style check per candidate center).
func TestAgreementDecentralizedReTypechecks(t *testing.T) {
	reg := registry.New()
	def, _ := parseAndCheck(t, reg, `(defchor k [A B] (-> #{A B} #{A B} A B #{A B}) [g p sa sb]
		(agree!
			(A (modpow (B->A (B (modpow g sb p))) sa p))
			(B (modpow (A->B (A (modpow g sa p))) sb p))))`)

	opts := config.Options{VerifyAgreement: config.AgreementVerification{Enabled: true, Decentralized: true}}
	newBody, err := Instrument(def.Roles, def.Params, def.Body, reg, opts)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if len(newBody) != len(def.Body)+2 {
		t.Fatalf("expected 2 prelude checks (for g and p), got %d extra", len(newBody)-len(def.Body))
	}
	for _, n := range newBody[:2] {
		do, ok := n.(*ast.Do)
		if !ok || len(do.Exprs) != 3 {
			t.Fatalf("expected each decentralized check to be a 2-center Do plus trailing noop, got %#v", n)
		}
	}

	reg2 := registry.New()
	c2 := check.New(reg2)
	c2.CheckDefinition(def.Roles, def.Sig, def.Params, newBody)
	if len(c2.Errors()) != 0 {
		t.Fatalf("instrumented body failed re-check: %v", c2.Errors())
	}
}

// TestSignatureVerificationWrapsInstSites checks that every Invoke of a
// registry-backed Inst gets a leading signature-check effect, and that
// the rewritten body still type-checks.
func TestSignatureVerificationWrapsInstSites(t *testing.T) {
	reg := registry.New()
	parseAndCheck(t, reg, `(defchor callee [A B] (-> A B) [x] (A->B x))`)
	caller, _ := parseAndCheck(t, reg, `(defchor caller [A B] (-> A B) [y] (callee [A B] y))`)

	opts := config.Options{VerifySignature: true}
	newBody, err := Instrument(caller.Roles, caller.Params, caller.Body, reg, opts)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if len(newBody) != len(caller.Body) {
		t.Fatalf("signature verification must rewrite in place, not add top-level statements")
	}
	do, ok := newBody[0].(*ast.Do)
	if !ok || len(do.Exprs) != 2 {
		t.Fatalf("expected the Inst call site rewritten to Do{check, call}, got %#v", newBody[0])
	}
	if _, ok := do.Exprs[0].(*ast.Lifting); !ok {
		t.Fatalf("expected the leading check to be a Lifting wrapping check-signature!, got %#v", do.Exprs[0])
	}

	reg2 := registry.New()
	parseAndCheck(t, reg2, `(defchor callee [A B] (-> A B) [x] (A->B x))`)
	c2 := check.New(reg2)
	c2.CheckDefinition(caller.Roles, caller.Sig, caller.Params, newBody)
	if len(c2.Errors()) != 0 {
		t.Fatalf("instrumented body failed re-check: %v", c2.Errors())
	}
}
