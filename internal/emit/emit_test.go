package emit

import (
	"strings"
	"testing"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/check"
	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/project"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

func checkedIncrement(t *testing.T) ast.Node {
	t.Helper()
	forms, err := reader.New("t.klor", `(defchor inc [A B] (-> A A) [x] (B->A (B (inc (A->B x)))))`).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defs, err := parser.New("t.klor").ParseTopLevel(forms)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	def := defs[0]
	c := check.New(registry.New())
	c.CheckDefinition(def.Roles, def.Sig, def.Params, def.Body)
	if len(c.Errors()) != 0 {
		t.Fatalf("expected no type errors, got %v", c.Errors())
	}
	return def.Body[0]
}

// TestEmitIncrementRoleA renders role A's projected endpoint back to
// surface syntax and checks it reads as a plain send-then-receive.
func TestEmitIncrementRoleA(t *testing.T) {
	body := checkedIncrement(t)
	projA := project.Project(body, types.Role("A"))

	out := New(DefaultOptions()).Emit(projA)
	if !strings.Contains(out, `(send! "B" x)`) {
		t.Fatalf("expected a send! to B carrying x, got %q", out)
	}
	if !strings.Contains(out, `(recv! "B")`) {
		t.Fatalf("expected a recv! from B, got %q", out)
	}
}

// TestEmitIncrementRoleB renders role B's endpoint and checks the
// invoke-of-inc / send-back shape survives re-serialization.
func TestEmitIncrementRoleB(t *testing.T) {
	body := checkedIncrement(t)
	projB := project.Project(body, types.Role("B"))

	out := New(DefaultOptions()).Emit(projB)
	if !strings.Contains(out, `(recv! "A")`) {
		t.Fatalf("expected a recv! from A, got %q", out)
	}
	if !strings.Contains(out, "(inc ") {
		t.Fatalf("expected the host inc call to survive emission, got %q", out)
	}
	if !strings.Contains(out, `(send! "A"`) {
		t.Fatalf("expected a send! back to A, got %q", out)
	}
}

// TestEmitElidesSingletonDo checks the ElideSingletonDo option collapses
// a single-expression Do instead of round-tripping a redundant wrapper.
func TestEmitElidesSingletonDo(t *testing.T) {
	var pos token.Position
	do := ast.NewDo(pos, []ast.Node{ast.NewConst(pos, 5)})

	elided := New(Options{ElideSingletonDo: true}).Emit(do)
	if elided != "5" {
		t.Fatalf("expected the singleton do to elide to its sole expression, got %q", elided)
	}

	kept := New(Options{ElideSingletonDo: false}).Emit(do)
	if kept != "(do 5)" {
		t.Fatalf("expected the do wrapper to survive with elision off, got %q", kept)
	}
}
