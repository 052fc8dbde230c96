package rolecheck

import (
	"testing"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

func parseDef(t *testing.T, src string) (ast.Node, []types.Role) {
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
	return def.Body[0], def.Roles
}

func TestValidIncrementHasNoRoleErrors(t *testing.T) {
	body, roles := parseDef(t, `(defchor inc [A B] (-> A A) [x] (B->A (B (inc (A->B x)))))`)
	if errs := Check(body, roles); len(errs) != 0 {
		t.Fatalf("expected no role errors, got %v", errs)
	}
}

func TestDuplicateRoleInCopyIsRejected(t *testing.T) {
	copyNode := ast.NewCopy(token.Position{}, "A", "A", ast.NewVar(token.Position{}, "x"))
	if errs := Check(copyNode, []types.Role{"A", "B"}); len(errs) == 0 {
		t.Fatalf("expected a RoleError for duplicate src/dst")
	}
}

func TestOutOfScopeRoleIsRejected(t *testing.T) {
	n := ast.NewNarrow(token.Position{}, []types.Role{"C"}, ast.NewVar(token.Position{}, "x"))
	errs := Check(n, []types.Role{"A", "B"})
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(errs), errs)
	}
}
