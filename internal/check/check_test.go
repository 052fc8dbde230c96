package check

import (
	"testing"

	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/types"
)

func parseAndCheck(t *testing.T, src string) (types.Chor, *Checker) {
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
	c := New(registry.New())
	sig := c.CheckDefinition(def.Roles, def.Sig, def.Params, def.Body)
	return sig, c
}

func TestIncrementTypeChecks(t *testing.T) {
	_, c := parseAndCheck(t, `(defchor inc [A B] (-> A A) [x] (B->A (B (inc (A->B x)))))`)
	if len(c.Errors()) != 0 {
		t.Fatalf("expected no type errors, got %v", c.Errors())
	}
}

func TestKnowledgeOfChoiceAccepted(t *testing.T) {
	// E4, positive case.
	_, c := parseAndCheck(t, `(defchor dec [A B] (-> #{A B} A) [x] (if x (A 1) (A 2)))`)
	if len(c.Errors()) != 0 {
		t.Fatalf("expected knowledge-of-choice example to type-check, got %v", c.Errors())
	}
}

func TestKnowledgeOfChoiceViolationRejected(t *testing.T) {
	// E4, negative case: guard narrowed to a single role is not
	// agreement-typed across both branch participants.
	_, c := parseAndCheck(t, `(defchor dec [A B] (-> #{A B} A) [x] (if (narrow [A] x) (A 1) (B->A (B 2))))`)
	if len(c.Errors()) == 0 {
		t.Fatalf("expected a TypeError for knowledge-of-choice violation")
	}
}

func TestCopyConservativeSrcNotInRoles(t *testing.T) {
	// Property 4: Copy{src,dst,e} with src not in roles_of(e.rtype) is a
	// TypeError.
	_, c := parseAndCheck(t, `(defchor f [A B C] (-> A A) [x] (C->B x))`)
	if len(c.Errors()) == 0 {
		t.Fatalf("expected a TypeError: C is not among x's roles")
	}
}

func TestInstArityMismatch(t *testing.T) {
	reg := registry.New()
	forms, err := reader.New("t.klor", `(defchor inc [A B] (-> A A) [x] (B->A (B (inc (A->B x)))))`).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defs, err := parser.New("t.klor").ParseTopLevel(forms)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	def := defs[0]
	c := New(reg)
	sig := c.CheckDefinition(def.Roles, def.Sig, def.Params, def.Body)
	reg.Install(def.Pos, def.Name, def.Roles, sig)
	reg.Commit(def.Name, def.Body[0])

	callerForms, err := reader.New("t2.klor", `(defchor wrong [A B C] (-> A A) [x] (inst inc [A B C]))`).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	callerDefs, err := parser.New("t2.klor").ParseTopLevel(callerForms)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	caller := callerDefs[0]
	c2 := New(reg)
	c2.CheckDefinition(caller.Roles, caller.Sig, caller.Params, caller.Body)
	if len(c2.Errors()) == 0 {
		t.Fatalf("expected arity-mismatch TypeError at inst")
	}
}
