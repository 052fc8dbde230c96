package parser

import (
	"testing"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/reader"
)

func parseOneDefchor(t *testing.T, src string) TopLevelDef {
	t.Helper()
	forms, err := reader.New("t.klor", src).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defs, err := New("t.klor").ParseTopLevel(forms)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 defchor, got %d", len(defs))
	}
	return defs[0]
}

func TestParseIncrementExample(t *testing.T) {
	// E1, §8.
	def := parseOneDefchor(t, `(defchor inc [A B] (-> A A) [x] (B->A (B (inc (A->B x)))))`)
	if def.Name != "inc" || len(def.Roles) != 2 {
		t.Fatalf("unexpected def: %+v", def)
	}
	if !def.HasBody || len(def.Body) != 1 {
		t.Fatalf("expected a 1-expr body, got %+v", def.Body)
	}
	narrow, ok := def.Body[0].(*ast.Narrow)
	if !ok {
		t.Fatalf("expected top expr to desugar to Narrow, got %T", def.Body[0])
	}
	if len(narrow.Roles) != 1 || narrow.Roles[0] != "A" {
		t.Errorf("expected B->A to narrow to [A], got %v", narrow.Roles)
	}
	copyNode, ok := narrow.Expr.(*ast.Copy)
	if !ok {
		t.Fatalf("expected narrow's inner expr to be Copy, got %T", narrow.Expr)
	}
	if copyNode.Src != "B" || copyNode.Dst != "A" {
		t.Errorf("expected copy B->A, got %s->%s", copyNode.Src, copyNode.Dst)
	}
}

func TestParseForwardDeclaration(t *testing.T) {
	def := parseOneDefchor(t, `(defchor m2 [A B] (-> A [A B]))`)
	if def.HasBody {
		t.Fatalf("expected forward declaration with no body")
	}
}

func TestParseChorLiteralRequiresExplicitAux(t *testing.T) {
	// E5: omitting the nested chor's aux must fail.
	_, err := New("t.klor").ParseTopLevel(mustRead(t, `(defchor compose [A B C] (-> (-> B C) (-> A B) (-> A C | B)) [g f]
		(chor (-> A C) [x] (g (f x))))`))
	if err == nil {
		t.Fatalf("expected a ParseError for a nested chor signature with unspecified aux")
	}
}

func TestParseDiffieHellmanAgreement(t *testing.T) {
	def := parseOneDefchor(t, `(defchor k [A B] (-> #{A B} #{A B} A B #{A B}) [g p sa sb]
		(agree!
			(A (modpow (B->A (B (modpow g sb p))) sa p))
			(B (modpow (A->B (A (modpow g sa p))) sb p))))`)
	if _, ok := def.Body[0].(*ast.AgreeNode); !ok {
		t.Fatalf("expected top expr to be AgreeNode, got %T", def.Body[0])
	}
}

func mustRead(t *testing.T, src string) []reader.Form {
	t.Helper()
	forms, err := reader.New("t.klor", src).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	return forms
}
